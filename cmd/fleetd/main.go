// Command fleetd starts the fleet coordination core's composition
// root and runs its background maintenance workers until signalled to
// stop. It exposes no transport of its own (spec §1): this binary is
// the in-process Service plus the process lifecycle around it, for an
// HTTP/CLI shell (out of scope here) to embed or front.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/v1truv1us/fleettools-sub010/internal/config"
	"github.com/v1truv1us/fleettools-sub010/internal/coordinator"
	"github.com/v1truv1us/fleettools-sub010/internal/emit"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	adapter, err := openStore(cfg)
	if err != nil {
		log.Printf("store: %v", err)
		return 2
	}
	defer adapter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := adapter.Init(ctx); err != nil {
		log.Printf("init: %v", err)
		return 2
	}
	if err := adapter.SelfTest(ctx); err != nil {
		log.Printf("self-test: %v", err)
		return 2
	}

	emitter := emit.NewLog(os.Stdout, true)
	svc := coordinator.New(cfg, adapter, emitter)

	log.Printf("fleetd: schema v%d, db=%s, auto_resume=%v", store.SchemaVersion, storeDescription(cfg), cfg.AutoResume)
	svc.RunBackgroundWorkers(ctx)
	return 0
}

// openStore picks SQLite or MySQL per spec §6's DB_* environment
// variables (config.UsesExternalStore decides which).
func openStore(cfg config.Config) (store.Adapter, error) {
	if cfg.UsesExternalStore() {
		return store.NewMySQLStore(store.MySQLConfig{
			Host:     cfg.DBHost,
			User:     cfg.DBUser,
			Password: cfg.DBPass,
		})
	}
	return store.NewSQLiteStore(cfg.DBPath)
}

func storeDescription(cfg config.Config) string {
	if cfg.UsesExternalStore() {
		return cfg.DBHost
	}
	return cfg.DBPath
}
