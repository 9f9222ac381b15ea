package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gosplash/config"
	"gosplash/pkg/console"
	"gosplash/pkg/logger"
	"gosplash/pkg/network"
	"gosplash/server"
)

const version = "1.0.0"

func main() {
	log := logger.New()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Error("FATAL: Failed to load config.json", "error", err)
		os.Exit(1)
	}

	log = logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))

	console.PrintBanner(version, network.GetLocalIP(), cfg.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := server.New(cfg, log)
	if err != nil {
		log.Error("FATAL: Failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := s.Start(); err != nil {
			log.Error("Server failed to start", "error", err)
		}
	}()

	<-ctx.Done()
	s.Shutdown(context.Background())
}
