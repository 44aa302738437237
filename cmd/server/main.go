// Package main provides the entry point for the promptatlas server
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/promptatlas/promptatlas/internal/api"
	"github.com/promptatlas/promptatlas/internal/collector"
	"github.com/promptatlas/promptatlas/internal/store"
	"github.com/promptatlas/promptatlas/pkg/config"
	"github.com/promptatlas/promptatlas/pkg/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logging.SetupLogger(&cfg.Logging); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}

	guideStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open guide store")
	}
	defer guideStore.Close()

	orchestrator := collector.NewPipeline(cfg, guideStore)
	handlers := api.NewHandlers(orchestrator, guideStore, cfg.Collector.Entities)

	app := fiber.New(fiber.Config{
		AppName:               "Prompt Atlas API",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	handlers.RegisterRoutes(app)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server listening")
		if err := app.Listen(cfg.Server.Addr); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

// openStore picks the Postgres backend when DATABASE_URL is configured
// and falls back to the in-memory store for local development.
func openStore(cfg *config.Config) (store.GuideStore, error) {
	if cfg.Database.URL == "" {
		log.Warn().Msg("No database configured, guides will not survive restarts")
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(context.Background(), cfg.Database.URL)
}
