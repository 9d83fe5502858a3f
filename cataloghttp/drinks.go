package cataloghttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ggoodman/drinks-catalog-go/auth"
	"github.com/ggoodman/drinks-catalog-go/catalog"
	"github.com/ggoodman/drinks-catalog-go/internal/logctx"
)

// withSubject tags the request context with the authorized caller for
// downstream code and logging.
func withSubject(ctx context.Context, id *auth.Identity, permission string) context.Context {
	ctx = auth.WithIdentity(ctx, id)
	return logctx.WithSubjectData(ctx, &logctx.SubjectData{Subject: id.UserID(), Permission: permission})
}

// handleListDrinks serves the public listing with ingredient names hidden.
func (h *Handler) handleListDrinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	drinks, err := h.store.List(ctx)
	if err != nil {
		h.writeStoreError(w, r, "drinks.list", err)
		return
	}
	out := make([]catalog.ShortDrink, 0, len(drinks))
	for _, d := range drinks {
		out = append(out, d.Short())
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "drinks": out})
	h.log.InfoContext(ctx, "drinks.list.ok", slog.Int("count", len(out)))
}

func (h *Handler) handleListDrinksDetail(w http.ResponseWriter, r *http.Request) {
	id := h.authorize(w, r, PermGetDrinksDetail)
	if id == nil {
		return
	}
	ctx := withSubject(r.Context(), id, PermGetDrinksDetail)
	drinks, err := h.store.List(ctx)
	if err != nil {
		h.writeStoreError(w, r.WithContext(ctx), "drinks.detail", err)
		return
	}
	out := make([]catalog.Drink, 0, len(drinks))
	for _, d := range drinks {
		out = append(out, d.Long())
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "drinks": out})
	h.log.InfoContext(ctx, "drinks.detail.ok", slog.Int("count", len(out)))
}

func (h *Handler) handleCreateDrink(w http.ResponseWriter, r *http.Request) {
	id := h.authorize(w, r, PermPostDrinks)
	if id == nil {
		return
	}
	r = r.WithContext(withSubject(r.Context(), id, PermPostDrinks))

	var d catalog.Drink
	if !h.decodeJSON(w, r, &d) {
		return
	}
	created, err := h.store.Create(r.Context(), d)
	if err != nil {
		h.writeStoreError(w, r, "drinks.create", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "drinks": []catalog.Drink{created.Long()}})
	ctx := logctx.WithDrinkData(r.Context(), &logctx.DrinkData{ID: created.ID})
	h.log.InfoContext(ctx, "drinks.create.ok")
}

func (h *Handler) handleUpdateDrink(w http.ResponseWriter, r *http.Request) {
	id := h.authorize(w, r, PermPatchDrinks)
	if id == nil {
		return
	}
	drinkID, ok := pathID(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound)
		return
	}
	r = r.WithContext(logctx.WithDrinkData(withSubject(r.Context(), id, PermPatchDrinks), &logctx.DrinkData{ID: drinkID}))

	var u catalog.Update
	if !h.decodeJSON(w, r, &u) {
		return
	}
	if u.Empty() {
		writeJSONError(w, http.StatusBadRequest)
		h.log.InfoContext(r.Context(), "drinks.update.empty")
		return
	}
	updated, err := h.store.Update(r.Context(), drinkID, u)
	if err != nil {
		h.writeStoreError(w, r, "drinks.update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "drinks": []catalog.Drink{updated.Long()}})
	h.log.InfoContext(r.Context(), "drinks.update.ok")
}

func (h *Handler) handleDeleteDrink(w http.ResponseWriter, r *http.Request) {
	id := h.authorize(w, r, PermDeleteDrinks)
	if id == nil {
		return
	}
	drinkID, ok := pathID(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound)
		return
	}
	r = r.WithContext(logctx.WithDrinkData(withSubject(r.Context(), id, PermDeleteDrinks), &logctx.DrinkData{ID: drinkID}))

	if err := h.store.Delete(r.Context(), drinkID); err != nil {
		h.writeStoreError(w, r, "drinks.delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "delete": drinkID})
	h.log.InfoContext(r.Context(), "drinks.delete.ok")
}
