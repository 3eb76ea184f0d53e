// cmd/circulation/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/config"
	"loandesk/internal/logger"
	"loandesk/internal/membership"
	"loandesk/internal/seed"
	"loandesk/internal/server"
	"loandesk/internal/store"
	"loandesk/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("circulation desk stopped", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "loandesk-circulation", cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	s, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	clk, err := cfg.NewClock()
	if err != nil {
		return err
	}

	catalogSvc := catalog.NewService(s, log)
	membershipSvc := membership.NewService(s, log, cfg.MemberRegistrationsPerMinute)
	circulationSvc := circulation.NewService(s, clk, cfg.Policy, log)

	if cfg.SeedFile != "" {
		if _, err := seed.LoadFile(ctx, cfg.SeedFile, catalogSvc, s, log); err != nil {
			return err
		}
	}

	log.Info("circulation desk starting",
		"addr", cfg.Addr(),
		"store", cfg.StoreBackend,
		"today", clk.Today().String(),
		"loan_period_days", cfg.Policy.LoanPeriodDays,
		"max_active_loans", cfg.Policy.MaxActiveLoans,
		"daily_late_fee", cfg.Policy.DailyLateFee.String(),
	)

	handler := server.NewRouter(server.Services{
		Catalog:     catalogSvc,
		Membership:  membershipSvc,
		Circulation: circulationSvc,
		Audit:       s,
		Policy:      cfg.Policy,
	}, log)
	return server.Run(ctx, cfg.Addr(), handler, cfg.ShutdownTimeout, log)
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func(), error) {
	if cfg.StoreBackend != config.BackendPostgres {
		return store.NewMemory(), func() {}, nil
	}

	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := pg.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
	return pg, closeFn, nil
}
