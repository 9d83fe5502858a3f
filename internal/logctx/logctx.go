package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with request-scoped attributes stored on the
// context by the With* helpers below.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if sd, ok := ctx.Value(subjectDataKey{}).(*SubjectData); ok {
		r.AddAttrs(slog.Group("auth",
			slog.String("sub", sd.Subject),
			slog.String("permission", sd.Permission),
		))
	}

	if dd, ok := ctx.Value(drinkDataKey{}).(*DrinkData); ok {
		r.AddAttrs(slog.Group("drink",
			slog.Int64("id", dd.ID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

// RequestID returns the id recorded by WithRequestData, if any.
func RequestID(ctx context.Context) string {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd.RequestID
	}
	return ""
}

type subjectDataKey struct{}

// SubjectData identifies the authorized caller of a request.
type SubjectData struct {
	Subject    string
	Permission string
}

func WithSubjectData(ctx context.Context, data *SubjectData) context.Context {
	return context.WithValue(ctx, subjectDataKey{}, data)
}

type drinkDataKey struct{}

type DrinkData struct {
	ID int64
}

func WithDrinkData(ctx context.Context, data *DrinkData) context.Context {
	return context.WithValue(ctx, drinkDataKey{}, data)
}
