package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/http/dto"
	"basegraph.app/standup/internal/service"
)

const (
	PathRegisterChannel = "/settings/register/channel"
	PathRegisterUser    = "/settings/register/user"
	PathReminder        = "/settings/reminder"
	PathTracker         = "/settings/tracker"
)

type SettingsHandler struct {
	settings service.SettingsService
	now      func() time.Time
}

func NewSettingsHandler(settings service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings, now: time.Now}
}

func (h *SettingsHandler) RegisterChannel(c *gin.Context) {
	req, ok := bindCall(c)
	if !ok {
		return
	}
	if err := h.settings.RegisterChannel(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c)
}

func (h *SettingsHandler) RegisterUser(c *gin.Context) {
	req, ok := bindCall(c)
	if !ok {
		return
	}
	setting, err := h.settings.RegisterUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps.OKData(dto.ToReminderResponse(setting, h.now())))
}

func (h *SettingsHandler) UpdateReminder(c *gin.Context) {
	req, ok := bindCall(c)
	if !ok {
		return
	}
	setting, err := h.settings.UpdateReminder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps.OKData(dto.ToReminderResponse(setting, h.now())))
}

func (h *SettingsHandler) ConfigureTracker(c *gin.Context) {
	req, ok := bindCall(c)
	if !ok {
		return
	}
	if err := h.settings.ConfigureTracker(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps.OK("Issue tracker connected."))
}
