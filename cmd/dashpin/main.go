package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dashpin-lab/dashpin/internal/admin"
	corecfg "github.com/dashpin-lab/dashpin/internal/core/config"
	"github.com/dashpin-lab/dashpin/internal/core/storage/postgres"
	"github.com/dashpin-lab/dashpin/internal/migrations"
	"github.com/dashpin-lab/dashpin/internal/retention"
	"github.com/dashpin-lab/dashpin/internal/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "dashpin.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// The reporting store never fails construction: a missing or unreachable
	// database leaves it disabled and the process runs on regardless.
	store := postgres.New(cfg.Database)
	defer store.Close()

	if store.Enabled() {
		if err := migrations.RunMigrations(store.DB(), cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			store.Close() // os.Exit skips the deferred close
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Retention.Enabled && store.Enabled() {
		sched := retention.NewScheduler(store, nil, cfg.Retention.PurgeInterval, cfg.Retention.SaveInterval)
		g.Go(func() error { return sched.Start(gctx) })
	} else {
		slog.Info("Retention scheduler disabled",
			"retention_enabled", cfg.Retention.Enabled,
			"storage_enabled", store.Enabled())
	}

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), store.DB(), cfg.Server.Mode)
	admin.NewService(store).RegisterRoutes(srv.Engine)

	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
