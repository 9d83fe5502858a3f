package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggoodman/drinks-catalog-go/auth"
	"github.com/ggoodman/drinks-catalog-go/cataloghttp"
	"github.com/ggoodman/drinks-catalog-go/internal/config"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides CATALOG_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := cfg.Logger(os.Stderr)
	metrics := cataloghttp.NewMetrics()

	gate, err := newGate(ctx, cfg,
		auth.WithLogger(log),
		auth.WithDecisionHook(metrics.ObserveDecision),
		auth.WithFetchHook(metrics.ObserveKeyFetch),
	)
	if err != nil {
		return fmt.Errorf("build authorization gate: %w", err)
	}
	if cfg.Auth.JWKSFile != "" {
		go func() {
			if err := gate.WatchKeyFile(ctx, cfg.Auth.JWKSFile); err != nil {
				log.ErrorContext(ctx, "auth.keys.watch.fail", slog.String("err", err.Error()))
			}
		}()
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	opts := []cataloghttp.Option{
		cataloghttp.WithLogger(log),
		cataloghttp.WithMetrics(metrics),
		cataloghttp.WithRealm(cfg.Realm),
	}
	if cfg.PublicURL != "" {
		opts = append(opts, cataloghttp.WithProtectedResource(cfg.PublicURL, gate.SecurityConfig()))
	}
	h, err := cataloghttp.New(store, gate, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "http.listen", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("http.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
