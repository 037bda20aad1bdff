package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"log-onboarding-engine/internal/config"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.GetGlobalLogger().Fatal("Failed to load configuration", err)
	}

	logging.InitGlobalLogger(&logging.LoggerConfig{
		Level:     cfg.Log.Level,
		Component: "server",
		Output:    cfg.Log.Output,
		Format:    cfg.Log.Format,
	})
	logger := logging.GetGlobalLogger()

	srv, resources, err := server.NewFromConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize server", err)
	}
	defer resources.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", err)
	}
}
