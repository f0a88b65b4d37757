package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ideaforge-io/ideaforge/internal/api"
	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/config"
	"github.com/ideaforge-io/ideaforge/internal/ideas"
	"github.com/ideaforge-io/ideaforge/internal/llm"
	"github.com/ideaforge-io/ideaforge/internal/session"
	"github.com/ideaforge-io/ideaforge/internal/usagelog"
)

func main() {
	logger := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warn("ideaforge: .env file not loaded", "error", err)
	} else {
		logger.Info("ideaforge: environment loaded from .env")
	}

	addr := flag.String("addr", "", "listen address (overrides IDEAFORGE_ADDR)")
	logFile := flag.String("log-file", "", "local usage log path (overrides IDEAFORGE_LOG_FILE)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("ideaforge: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*addr); trimmed != "" {
		cfg.Addr = trimmed
	}
	if trimmed := strings.TrimSpace(*logFile); trimmed != "" {
		cfg.LogFile = trimmed
	}
	logger.Info("ideaforge: startup initiated", "addr", cfg.Addr, "log_file", cfg.LogFile)

	provider := llm.NewProvider()
	logger.Info("ideaforge: provider ready", "provider", provider.Name())
	gateway := llm.NewGateway(provider, cfg.GatewayMaxAttempts, cfg.GatewayBaseDelay)
	service := ideas.NewService(gateway)

	store, err := usagelog.NewStore(cfg)
	if err != nil {
		logger.Error("ideaforge: usage log store init failed", "error", err)
		fmt.Println("usage log error:", err)
		os.Exit(1)
	}
	manager := session.NewManager(store, cfg.IdleThreshold, cfg.SweepInterval, cfg.FlushInterval)
	seedCtx, cancelSeed := context.WithTimeout(ctx, 30*time.Second)
	seeded, err := store.Load(seedCtx)
	cancelSeed()
	if err != nil {
		logger.Warn("ideaforge: usage log seed failed, starting empty", "error", err)
	} else {
		manager.Seed(seeded)
		logger.Info("ideaforge: usage log seeded", "records", len(seeded))
	}
	go manager.Run(ctx)

	server, err := api.NewServer(service, manager)
	if err != nil {
		logger.Error("ideaforge: server init failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ideaforge: listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("ideaforge: shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ideaforge: server failed", "error", err)
			fmt.Println("server error:", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ideaforge: http shutdown incomplete", "error", err)
	}
	manager.Close(shutdownCtx)
	logger.Info("ideaforge: shutdown complete")
}
