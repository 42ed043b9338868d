// Package main is the entry point for the casino bot core.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/config"
	"discord-casino-bot/internal/game"
	"discord-casino-bot/internal/handler"
	"discord-casino-bot/internal/pkg/db"
	"discord-casino-bot/internal/repository"
	"discord-casino-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Privileged.UserID == 0 {
		log.Warn().Msg("No privileged user configured; admin grants are disabled")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := db.MigrateUp(&cfg.Database); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(dbPool.Pool)
	entryRepo := repository.NewLedgerEntryRepository(dbPool.Pool)

	// Conservation audit: the entry log and the account balances must agree.
	// A mismatch means a settlement was left unreconciled.
	totalBalances, err := accountRepo.TotalBalance(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to audit account balances")
	}
	totalEntries, err := entryRepo.SumAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to audit ledger entries")
	}
	if totalBalances != totalEntries {
		log.Warn().
			Int64("balances", totalBalances).
			Int64("entries", totalEntries).
			Msg("Ledger drift detected, manual reconciliation needed")
	}

	// Initialize ledger service
	ledger := service.NewLedgerService(
		accountRepo,
		cfg.Daily.Reward,
		cfg.Daily.CooldownHours,
		service.RetryPolicy{
			MaxRetries:      cfg.Settlement.MaxRetries,
			InitialInterval: cfg.Settlement.InitialInterval,
		},
	)

	// Initialize session registry and idle sweeper
	registry := game.NewRegistry(cfg.Session.IdleTimeout)
	go registry.RunSweeper(ctx, cfg.Session.SweepInterval)

	// The dispatcher is the surface the platform adapter calls with parsed
	// action intents. The adapter itself lives outside this repository.
	dispatcher := handler.NewDispatcher(cfg, ledger, registry)

	log.Info().
		Int("action_kinds", len(dispatcher.ActionKinds())).
		Dur("idle_timeout", cfg.Session.IdleTimeout).
		Dur("sweep_interval", cfg.Session.SweepInterval).
		Msg("Casino bot core ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info().Str("signal", sig.String()).Msg("Shutting down")
	cancel()

	// Final sweep so outstanding wagers are force-settled before exit.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	registry.SweepAll(shutdownCtx)
}
