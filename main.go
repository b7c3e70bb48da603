package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"market-sim/src/config"
	"market-sim/src/handlers"
	"market-sim/src/logger"
	"market-sim/src/models"
	"market-sim/src/routes"
	"market-sim/src/sim"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML profile (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.InitLogger(config.LogConfig{Level: "info"})
		log := logger.GetLogger()
		log.Fatal().
			Err(err).
			Str("config", *configPath).
			Msg("Failed to load configuration")
	}

	logger.InitLogger(cfg.Log)
	log := logger.GetLogger()

	log.Info().Msg("Initializing Market Simulator")

	simulator := sim.NewSimulator(cfg, log)
	sessionHandler := handlers.NewSessionHandler(simulator)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(models.Fail(err.Error()))
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, sessionHandler, cfg.Server)

	port := ":" + strconv.Itoa(cfg.Server.Port)
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = ":" + envPort
	}

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			errStr := err.Error()
			if errStr != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=3001 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Msg("Market Simulator started")

		log.Info().
			Strs("endpoints", []string{
				"POST /api/v1/session/start",
				"POST /api/v1/session/step",
				"POST /api/v1/session/stop",
				"GET  /api/v1/orderbook/:instrument",
				"GET  /api/v1/analytics",
				"POST /api/v1/news",
				"GET  /health",
				"GET  /metrics",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	shutdownTimeout := 10 * time.Second
	if envTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); envTimeout != "" {
		if parsed, err := time.ParseDuration(envTimeout); err == nil && parsed > 0 {
			shutdownTimeout = parsed
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", shutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	} else {
		log.Info().Msg("Shutdown complete")
	}

	logger.CloseLogger()
}
