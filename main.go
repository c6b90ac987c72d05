package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/room4-2/auralis/app"
	"github.com/room4-2/auralis/config"
	"github.com/room4-2/auralis/functions"
	"github.com/room4-2/auralis/gemini"
	"github.com/room4-2/auralis/logging"
	"github.com/room4-2/auralis/server"
	"github.com/room4-2/auralis/session"
)

type runner interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Fatal("failed to create gemini client", zap.Error(err))
	}

	backend := app.Open(ctx, cfg, logger)
	searcher := backend.Searcher(client)

	sessionManager := session.NewManager(cfg, client, functions.Tools(),
		app.ToolHandlers(backend.Store, searcher), logger.Named("session"))
	go sessionManager.StartCleanupRoutine(ctx)

	var servers []runner
	switch cfg.ServerType {
	case "websocket":
		servers = append(servers, server.NewServerWebsocket(cfg, sessionManager,
			server.NewCalendarHandler(backend.Store, logger.Named("calendar")), backend.Store, logger))
	case "twilio":
		servers = append(servers, server.NewServerWebsocketTwilio(cfg, sessionManager, backend.Store, logger))
	case "both":
		servers = append(servers,
			server.NewServerWebsocket(cfg, sessionManager,
				server.NewCalendarHandler(backend.Store, logger.Named("calendar")), backend.Store, logger),
			server.NewServerWebsocketTwilio(cfg, sessionManager, backend.Store, logger))
	default:
		logger.Fatal("unknown server type", zap.String("server_type", cfg.ServerType))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv runner) {
			errCh <- srv.Start()
		}(srv)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}
	sessionManager.Shutdown(shutdownCtx)
	backend.Close(shutdownCtx)

	logger.Info("server stopped")
}
