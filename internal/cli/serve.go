package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/strategist/internal/dedup"
	"github.com/lazypower/strategist/internal/learned"
	"github.com/lazypower/strategist/internal/logging"
	"github.com/lazypower/strategist/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := newEngine(ctx, cfg, db, learned.NewFeed(cfg.Learned), log)
	if err != nil {
		return err
	}
	eng.StartRefresh(ctx)
	defer eng.Stop()

	sel, err := newSelector(cfg, log)
	if err != nil {
		return err
	}

	filter := dedup.New(cfg.Dedup, dedup.WithLogger(logging.Component(log, "dedup")))
	filter.StartSweeper()
	defer filter.Stop()

	srv := server.New(db, VersionString(),
		server.WithEngine(eng),
		server.WithSelector(sel),
		server.WithFilter(filter),
		server.WithConservativeDays(cfg.Selector.ConservativeDays),
		server.WithLogger(logging.Component(log, "server")),
	)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("db", db.Path).
			Str("plan", cfg.Entitlement.Plan).
			Bool("learned_feed", cfg.Learned.URL != "").
			Msg("strategist serving")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	return httpServer.Shutdown(shutdownCtx)
}
