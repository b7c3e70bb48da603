package routes

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"market-sim/src/config"
	"market-sim/src/handlers"
	"market-sim/src/middleware"
)

func SetupRoutes(app *fiber.App, sessionHandler *handlers.SessionHandler, cfg config.ServerConfig) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := cfg.RateLimitRequests
	if maxRequests <= 0 {
		maxRequests = 100
	}
	windowDuration := time.Duration(cfg.RateLimitSeconds) * time.Second
	if windowDuration <= 0 {
		windowDuration = time.Second
	}

	serviceAvailability := middleware.DefaultServiceAvailability()
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/session/start", sessionHandler.StartSession)
	api.Post("/session/step", sessionHandler.StepSession)
	api.Post("/session/stop", sessionHandler.StopSession)
	api.Get("/orderbook/:instrument", sessionHandler.GetOrderBook)
	api.Get("/analytics", sessionHandler.GetAnalytics)
	api.Post("/news", sessionHandler.InjectNews)

	app.Get("/health", sessionHandler.HealthCheck)
	app.Get("/metrics", sessionHandler.Metrics)
}
