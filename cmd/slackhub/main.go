package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slackhub/slackhub/internal/core"
	"github.com/slackhub/slackhub/internal/creds"
	"github.com/slackhub/slackhub/internal/db"
	mcpsvr "github.com/slackhub/slackhub/internal/mcp"
	slackclient "github.com/slackhub/slackhub/internal/slack"
	"github.com/slackhub/slackhub/internal/tail"
)

var (
	version   = ""
	gitCommit = ""
	buildTime = ""
)

func main() {
	// Logs go to stderr: in stdio mode stdout carries the MCP protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := core.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	var provider creds.Provider
	switch cfg.Transport {
	case core.TransportStdio:
		provider = creds.Static{Creds: creds.Credentials{
			Token:     cfg.WebToken,
			Cookie:    cfg.CookieToken,
			UserAgent: cfg.UserAgent,
		}}
	case core.TransportHTTP:
		provider = creds.PerRequest{DefaultUserAgent: cfg.UserAgent}
	}

	var store core.Recorder
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			logger.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		store = database
		logger.Info("audit persistence enabled")
	}

	slack := slackclient.NewClient(provider, cfg.APIBase, logger)
	audit := core.NewAuditService(slack, store, cfg.LogsChannelID, logger)
	server := mcpsvr.NewServer(slack, audit, tail.Options{BytesPerLine: cfg.TailBytesPerLine}, cfg.ListenAddr, version, logger)

	logger.Info("starting",
		"transport", string(cfg.Transport),
		"version", version,
		"git_commit", gitCommit,
		"build_time", buildTime,
	)

	if cfg.Transport == core.TransportStdio {
		if err := server.ServeStdio(); err != nil {
			logger.Error("stdio server error", "err", err)
			os.Exit(1)
		}
		return
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	server.Shutdown(ctx)
	logger.Info("shutdown complete")
}
