package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/standup/common/id"
	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/common/otel"
	"basegraph.app/standup/core/config"
	"basegraph.app/standup/internal/http/middleware"
	httprouter "basegraph.app/standup/internal/http/router"
	"basegraph.app/standup/internal/messaging"
	"basegraph.app/standup/internal/service"
	"basegraph.app/standup/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "standup starting", "env", cfg.Env, "service", cfg.OTel.ServiceName, "store", cfg.Store.Driver)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	clients := messaging.NewFactory(cfg.Mattermost.SiteURL, cfg.Mattermost.BotToken, cfg.OutboundTimeout)

	kv, closeStore, err := store.Open(ctx, cfg, clients.BotToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	slog.InfoContext(ctx, "store opened", "driver", cfg.Store.Driver)

	services := service.NewServices(cfg, store.NewStores(kv), clients)
	defer services.Close()

	// Without a configured bot token the first App call bootstraps instead.
	if clients.HasBotToken() {
		if err := services.Bootstrapper().Run(ctx); err != nil {
			slog.WarnContext(ctx, "bootstrap failed, retrying on next call", "error", err)
		}
	} else {
		slog.InfoContext(ctx, "no bot token configured, waiting for first call")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port, "root_url", cfg.Mattermost.AppRootURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		AppRootURL: cfg.Mattermost.AppRootURL,
		JWTSecret:  cfg.Mattermost.JWTSecret,
	})

	return router
}

const banner = `
███████╗████████╗ █████╗ ███╗   ██╗██████╗ ██╗   ██╗██████╗ 
██╔════╝╚══██╔══╝██╔══██╗████╗  ██║██╔══██╗██║   ██║██╔══██╗
███████╗   ██║   ███████║██╔██╗ ██║██║  ██║██║   ██║██████╔╝
╚════██║   ██║   ██╔══██║██║╚██╗██║██║  ██║██║   ██║██╔═══╝ 
███████║   ██║   ██║  ██║██║ ╚████║██████╔╝╚██████╔╝██║     
╚══════╝   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝     
`
