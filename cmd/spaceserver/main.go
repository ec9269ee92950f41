// Package main provides the space server binary: a WebSocket endpoint that
// relays presence, movement, and chat between occupants of shared 2D spaces.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/Agnish1611/Omniverse/internal/config"
	"github.com/Agnish1611/Omniverse/internal/observability"
	"github.com/Agnish1611/Omniverse/internal/server"
	"github.com/Agnish1611/Omniverse/internal/space"
	"github.com/Agnish1611/Omniverse/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	dispatchBuffer := flag.Int("dispatch-buffer", 256, "dispatcher event queue capacity")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting space server",
		zap.String("addr", cfg.WebSocket.Addr()),
		zap.String("path", cfg.WebSocket.Path),
	)

	registry := space.NewRegistry(logger)
	dispatcher := space.NewDispatcher(*dispatchBuffer, logger)

	settings := space.Settings{
		SpawnX:           cfg.Space.SpawnX,
		SpawnY:           cfg.Space.SpawnY,
		DefaultCharacter: cfg.Space.DefaultCharacter,
	}
	acceptor := ws.NewAcceptor(cfg.WebSocket, settings, dispatcher, registry, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("dispatcher", dispatcher)
	lifecycle.Add("websocket", acceptor)

	logger.Info("space server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
