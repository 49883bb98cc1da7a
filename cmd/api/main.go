package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seedbazaar/internal/adapter/api"
	"seedbazaar/internal/adapter/api/handler"
	apimiddleware "seedbazaar/internal/adapter/api/middleware"
	"seedbazaar/internal/adapter/api/router"
	"seedbazaar/internal/app"
	"seedbazaar/pkg/config"
	"seedbazaar/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Configure(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	agent, err := app.New(ctx, cfg, app.Deps{})
	if err != nil {
		log.Fatalf("Failed to build agent: %v", err)
	}
	if err := agent.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize agent: %v", err)
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apimiddleware.Metrics(agent.Metrics))

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(agent.Session)
	handlers := handler.Setup(agent)

	router.Setup(e, handlers, authMiddleware, agent.Limiter)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(agent.Registry, promhttp.HandlerOpts{})))

	go func() {
		logger.Info("Starting bridge on port %s...", cfg.BridgePort)
		if err := e.Start(":" + cfg.BridgePort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Bridge stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	// open event streams never finish on their own
	agent.Hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Bridge shutdown: %v", err)
	}
	agent.Dispose()
}
