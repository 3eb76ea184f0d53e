// internal/server/server.go

// Package server assembles the HTTP surface of the circulation desk.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"loandesk/internal/audit"
	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/httpx"
	"loandesk/internal/logger"
	"loandesk/internal/membership"
)

// Services are the handlers' collaborators.
type Services struct {
	Catalog     catalog.Service
	Membership  membership.Service
	Circulation circulation.Service
	Audit       audit.Source
	Policy      circulation.Policy
}

// NewRouter mounts every endpoint on a chi router.
func NewRouter(svc Services, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpx.Logging(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	catalog.NewHandler(svc.Catalog).Routes(r)
	membership.NewHandler(svc.Membership).Routes(r)
	circulation.NewHandler(svc.Circulation).Routes(r)
	audit.NewHandler(svc.Audit, svc.Policy.MaxActiveLoans, log).Routes(r)

	return r
}

// Run serves handler on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func Run(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, log *logger.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
