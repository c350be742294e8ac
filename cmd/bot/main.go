package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/huligan-sport/wb-price-bot/internal/bot"
	"github.com/huligan-sport/wb-price-bot/internal/config"
	"github.com/huligan-sport/wb-price-bot/internal/scheduler"
	"github.com/huligan-sport/wb-price-bot/internal/storage"
	"github.com/huligan-sport/wb-price-bot/internal/telegram"
	"github.com/huligan-sport/wb-price-bot/internal/tracker"
	"github.com/huligan-sport/wb-price-bot/internal/util"
	"github.com/huligan-sport/wb-price-bot/internal/wb"
)

func main() {
	slog.Info("Starting Wildberries price tracker bot...")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *storage.Store
	err = util.Retry(ctx, 3, time.Second, func() error {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		var connectErr error
		store, connectErr = storage.New(connectCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.UsersCollection)
		return connectErr
	})
	if err != nil {
		slog.Error("Critical error connecting to MongoDB", "error", err)
		os.Exit(1)
	}

	tg, err := telegram.New(cfg.TelegramToken)
	if err != nil {
		slog.Error("Critical error initializing Telegram client", "error", err)
		os.Exit(1)
	}

	resolver := wb.New(wb.LoadHostCache(cfg.HostCacheFile), wb.Config{
		ProbeTimeout: cfg.ProbeTimeout,
		FetchTimeout: cfg.FetchTimeout,
	})

	tr := tracker.New(store, resolver, tg, cfg.MaxProductsPerUser, cfg.OperationCooldown)
	sched := scheduler.New(store, tg, tr, cfg.DefaultInterval)
	tr.SetJobDeriver(sched)

	if err := sched.Rederive(ctx); err != nil {
		slog.Error("Initial job derivation failed", "error", err)
	}
	sched.Start()

	b := bot.New(tg, tr)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(runCtx)
	})
	g.Go(func() error {
		<-runCtx.Done()
		slog.Info("Shutting down gracefully...")
		tg.StopPolling()
		return nil
	})

	slog.Info("Bot is running")
	if err := g.Wait(); err != nil {
		slog.Error("Bot stopped with error", "error", err)
	}

	sched.Stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		slog.Error("Error closing MongoDB connection", "error", err)
	}
	slog.Info("Bot stopped.")
}
