package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"eyecare-intake/internal/consultation"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := wireApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			go runReaper(ctx, a.service, a.cfg.Sessions.CleanupInterval, a.cfg.Sessions.MaxAge, a.logger)

			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           newRouter(a),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server starting", "addr", srv.Addr, "version", version)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", healthHandler(a))

	h := consultation.NewHandler(a.service, a.stt, knowledgeWriter(a), a.logger).
		WithQuestionnaire(a.questionnaire)
	if a.tts != nil {
		h.WithSynthesizer(a.tts)
	}
	r.Route("/api", func(r chi.Router) {
		consultation.RegisterRoutes(r, h)
	})
	return r
}

func knowledgeWriter(a *app) consultation.KnowledgeWriter {
	if a.knowledge == nil {
		return nil
	}
	return a.knowledge
}

func healthHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": version,
			"services": map[string]bool{
				"llm":       a.cfg.LLM.APIKey != "",
				"knowledge": a.knowledge != nil,
				"stt":       a.stt != nil,
				"tts":       a.tts != nil,
				"telegram":  a.cfg.Telegram.Enabled(),
			},
		})
	}
}

// runReaper drops idle sessions until ctx is cancelled.
func runReaper(ctx context.Context, svc consultation.Service, every, maxAge time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Reap(ctx, maxAge); err != nil {
				logger.Error("session cleanup failed", "error", err)
			}
		}
	}
}
