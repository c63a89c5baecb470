package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg-banshare/internal/bot"
	"tg-banshare/internal/config"
	"tg-banshare/internal/crash"
	"tg-banshare/internal/handler"
	"tg-banshare/internal/logger"
	"tg-banshare/internal/service"
	"tg-banshare/internal/storage"
)

func main() {
	// log the stack of any panic before exiting
	defer crash.RecoverWithStackAndExit("main")

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer logger.Sync()

	db, err := storage.Initialize(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	guildRepo := storage.NewGuildRepository(db)
	banRepo := storage.NewBanRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	botService, server, err := bot.Initialize(ctx, cfg, handler.GetDetailedStatus)
	if err != nil {
		logger.Fatalf("Failed to initialize bot: %v", err)
	}

	reasons := bot.NewReasonLedger()
	platform := bot.NewPlatform(botService.Bot, botService.Self.ID, reasons, cfg.Fanout)

	coordinator := service.NewCoordinator(guildRepo, banRepo, platform, platform, cfg.Fanout.Concurrency)
	bans := service.NewBanService(guildRepo, banRepo, coordinator, cfg.AppName)
	guilds := service.NewGuildService(guildRepo)
	confirmer := service.NewConfirmer(banRepo, platform, platform, cfg.AppName)

	h := handler.New(botService, bans, guilds, confirmer, platform, reasons)
	h.SetupMessageHandlers(botService.Handler)
	handler.StartStatusMonitoring(ctx, 10*time.Minute)

	crash.SafeGoroutine("http-server", func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	})

	// Give server time to start
	time.Sleep(500 * time.Millisecond)
	logger.Infof("HTTP server is ready, starting bot handler...")

	crash.SafeGoroutine("bot-handler", botService.Start)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	cancel()
	botService.Stop()

	// Gracefully shutdown server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
	}

	logger.Infof("Server gracefully stopped")
}
