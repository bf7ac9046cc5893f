package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/standup/internal/http/handler"
)

func UpdateRouter(rg *gin.RouterGroup, h *handler.StandupHandler) {
	rg.POST("/start", h.Start)
	rg.POST("/form", h.AddForm)
	rg.POST("/next", h.Advance)
	rg.POST("/add", h.SubmitAdd)
	rg.POST("/edit", h.EditForm)
	rg.POST("/edit/submit", h.SubmitEdit)
	rg.POST("/submit", h.Publish)
	rg.POST("/status", h.SubmitStatusUpdate)
	rg.POST("/close", h.DismissStatusSummary)
}
