// cmd/drill/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"loandesk/internal/audit"
	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/clients"
	"loandesk/internal/config"
	"loandesk/internal/drill"
	"loandesk/internal/logger"
	"loandesk/internal/membership"
	"loandesk/internal/store"
	"loandesk/internal/telemetry"
)

func main() {
	concurrency := flag.Int("concurrency", 32, "goroutines per experiment")
	target := flag.String("target", "", "base URL of a running desk; empty drills an in-process desk built from the environment")
	members := flag.Int("members", drill.DefaultPoolSize, "drill members registered up front and shared by all experiments")
	flag.Parse()

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

	if *target != "" {
		err = runRemote(*target, log, *members, *concurrency)
	} else {
		err = run(cfg, log, *members, *concurrency)
	}
	if err != nil {
		log.Fatal("drill failed", "error", err)
	}
	log.Info("all drills passed")
}

func run(cfg *config.Config, log *logger.Logger, poolSize, concurrency int) error {
	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "loandesk-drill", cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	var s store.Store = store.NewMemory()
	if cfg.StoreBackend == config.BackendPostgres {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		s = pg
	}

	clk, err := cfg.NewClock()
	if err != nil {
		return err
	}

	desk := drill.Desk{
		Catalog:     catalog.NewService(s, log),
		Membership:  membership.NewService(s, log, 0),
		Circulation: circulation.NewService(s, clk, cfg.Policy, log),
	}
	if desk.Members, err = drill.RegisterPool(ctx, desk.Membership, poolSize); err != nil {
		return err
	}

	engine := drill.NewEngine(audit.Checker{Source: s, MaxActiveLoans: cfg.Policy.MaxActiveLoans}, log)
	engine.Register(drill.Standard(desk, concurrency)...)
	return engine.RunAll(ctx)
}

// runRemote drills a desk over HTTP. Member registration on the target is
// rate limited, so only the pool is registered; poolSize must fit its burst.
func runRemote(target string, log *logger.Logger, poolSize, concurrency int) error {
	ctx := context.Background()
	hc := &http.Client{Timeout: 30 * time.Second}
	circ := clients.NewCirculationClient(target, hc)
	desk := drill.Desk{
		Catalog:     clients.NewCatalogClient(target, hc),
		Membership:  clients.NewMembershipClient(target, hc),
		Circulation: circ,
	}
	members, err := drill.RegisterPool(ctx, desk.Membership, poolSize)
	if err != nil {
		return err
	}
	desk.Members = members

	engine := drill.NewEngine(circ, log)
	engine.Register(drill.Standard(desk, concurrency)...)
	return engine.RunAll(ctx)
}
