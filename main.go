package main

import (
	"context"
	"log"

	"gosplash/config"
	"gosplash/pkg/logger"
	"gosplash/server"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	s, err := server.New(cfg, logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel)))
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer s.Shutdown(context.Background())

	if err := s.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
