package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ryoozeen/RCS/internal/config"
	"github.com/ryoozeen/RCS/internal/microservices/http-api/handler"
	"github.com/ryoozeen/RCS/internal/microservices/http-api/middleware"
	"github.com/ryoozeen/RCS/internal/microservices/http-api/repository"
	"github.com/ryoozeen/RCS/internal/microservices/tcp"
	"github.com/ryoozeen/RCS/internal/observability"
)

func main() {
	// Load config (fallback to env/default)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	// Setup structured logging
	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	if cfg.PrometheusEnabled {
		observability.RegisterMetrics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("credential_store_failed", "backend", cfg.CredentialBackend, "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	var sessions *tcp.TCPAuthService
	if cfg.SessionsEnabled() {
		sessions = tcp.NewTCPAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	}

	server := tcp.NewServer(cfg.TCPAddr(), stores.credentials, tcp.ServerOptions{
		Logger: logger,
		Connection: tcp.ConnectionOptions{
			RateLimit:    cfg.RateLimit,
			RateBurst:    cfg.RateBurst,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		Router: tcp.RouterOptions{
			AllowOperatorIdentify: cfg.AllowOperatorIdentify,
			CredentialTimeout:     cfg.CredentialTimeout,
			Sessions:              sessions,
		},
	})

	var admin *http.Server
	if cfg.AdminEnabled {
		admin = newAdminServer(cfg, server.Registry, stores.operators, sessions)
		go func() {
			logger.Info("admin_api_started", "addr", admin.Addr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin_api_failed", "error", err)
			}
		}()
	}

	logger.Info("starting_relay_server",
		"tcp_addr", cfg.TCPAddr(),
		"credential_backend", cfg.CredentialBackend,
		"sessions", cfg.SessionsEnabled(),
		"admin", cfg.AdminEnabled,
	)

	if err := server.Start(ctx); err != nil {
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("received_shutdown_signal")
	server.Stop() // waits for the in-flight stop to finish closing connections

	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin_api_shutdown_failed", "error", err)
		}
	}
	logger.Info("server_stopped_gracefully")
}

func newAdminServer(cfg *config.Config, registry *tcp.Registry, operators repository.OperatorRepository, sessions *tcp.TCPAuthService) *http.Server {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	opts := handler.RouterOptions{Metrics: cfg.PrometheusEnabled}
	// a nil *TCPAuthService must not end up inside the interface
	if sessions != nil {
		opts.Auth = middleware.TokenValidator(sessions)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler.NewRouter(handler.NewAdminHandler(registry, operators), opts),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
