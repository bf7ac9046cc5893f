package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/standup/internal/http/handler"
	"basegraph.app/standup/internal/http/middleware"
	"basegraph.app/standup/internal/service"
)

type RouterConfig struct {
	AppRootURL string
	// JWTSecret enables verification of the call JWT when set.
	JWTSecret string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	appHandler := handler.NewAppHandler(cfg.AppRootURL, cfg.JWTSecret != "", services.Health)
	router.GET("/health", appHandler.Health)
	router.GET("/manifest.json", appHandler.Manifest)

	calls := router.Group("")
	if cfg.JWTSecret != "" {
		calls.Use(middleware.AppJWT(cfg.JWTSecret))
	}
	calls.Use(middleware.AppCall(services.Clients(), services.Bootstrapper()))
	{
		calls.POST("/bindings", appHandler.Bindings)

		UpdateRouter(calls.Group("/update"), handler.NewStandupHandler(services.Standup()))
		SettingsRouter(calls.Group("/settings"), handler.NewSettingsHandler(services.Settings()))
	}
}
