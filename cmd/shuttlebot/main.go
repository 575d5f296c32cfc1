package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shuttlekit/shuttlebot/internal/admin"
	"github.com/shuttlekit/shuttlebot/internal/bot"
	"github.com/shuttlekit/shuttlebot/internal/config"
	"github.com/shuttlekit/shuttlebot/internal/shuttle"
	"github.com/shuttlekit/shuttlebot/internal/store"
)

func main() {
	cfg := config.Load()

	log := slog.Default()
	log.Info("starting shuttlebot",
		"base_url", cfg.ShuttleBaseURL,
		"default_model", cfg.DefaultModel,
		"admin_listen", cfg.AdminListenAddr,
	)

	if cfg.ShuttleAPIKey == "" {
		log.Error("SHUTTLEAI_API_KEY is required")
		os.Exit(1)
	}
	if cfg.DiscordToken == "" {
		log.Error("DISCORD_TOKEN is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client := shuttle.NewClient(cfg.ShuttleBaseURL, cfg.ShuttleAPIKey, cfg.DefaultModel, cfg.RequestTimeout)
	defer client.Close()

	chatBot, err := bot.New(bot.Config{
		Token:             cfg.DiscordToken,
		RequestTimeout:    cfg.RequestTimeout,
		MaxHistory:        cfg.MaxHistory,
		RateLimitMessages: cfg.RateLimitMessages,
		RateLimitInterval: cfg.RateLimitInterval,
		RateLimitBlock:    cfg.RateLimitBlock,
	}, client, st, log)
	if err != nil {
		log.Error("failed to create bot", "error", err)
		os.Exit(1)
	}
	if err := chatBot.Start(); err != nil {
		log.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	adminSrv := admin.New(cfg.AdminListenAddr, st)
	adminErr := make(chan error, 1)
	go func() {
		if err := adminSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			adminErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down...")
	case err := <-adminErr:
		log.Error("admin server error", "error", err)
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutCtx); err != nil {
		log.Error("admin shutdown error", "error", err)
	}
	if err := chatBot.Stop(); err != nil {
		log.Error("bot shutdown error", "error", err)
	}

	log.Info("stopped")
}
