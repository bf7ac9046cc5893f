package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/standup/internal/http/handler"
)

func SettingsRouter(rg *gin.RouterGroup, h *handler.SettingsHandler) {
	rg.POST("/register/channel", h.RegisterChannel)
	rg.POST("/register/user", h.RegisterUser)
	rg.POST("/reminder", h.UpdateReminder)
	rg.POST("/tracker", h.ConfigureTracker)
}
