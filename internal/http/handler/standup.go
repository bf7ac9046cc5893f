package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/http/dto"
	"basegraph.app/standup/internal/service"
)

type StandupHandler struct {
	standup service.StandupService
}

func NewStandupHandler(standup service.StandupService) *StandupHandler {
	return &StandupHandler{standup: standup}
}

func (h *StandupHandler) Start(c *gin.Context) {
	h.ack(c, h.standup.Start)
}

func (h *StandupHandler) AddForm(c *gin.Context) {
	h.form(c, h.standup.AddForm)
}

func (h *StandupHandler) Advance(c *gin.Context) {
	h.ack(c, h.standup.Advance)
}

func (h *StandupHandler) SubmitAdd(c *gin.Context) {
	h.ack(c, h.standup.SubmitAdd)
}

func (h *StandupHandler) EditForm(c *gin.Context) {
	h.form(c, h.standup.EditForm)
}

func (h *StandupHandler) SubmitEdit(c *gin.Context) {
	h.ack(c, h.standup.SubmitEdit)
}

func (h *StandupHandler) Publish(c *gin.Context) {
	h.ack(c, h.standup.Publish)
}

func (h *StandupHandler) SubmitStatusUpdate(c *gin.Context) {
	req, ok := bindCall(c)
	if !ok {
		return
	}
	updated, err := h.standup.SubmitStatusUpdate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps.OKData(dto.StatusUpdateResponse{Updated: updated}))
}

func (h *StandupHandler) DismissStatusSummary(c *gin.Context) {
	h.ack(c, h.standup.DismissStatusSummary)
}

func (h *StandupHandler) ack(c *gin.Context, action func(ctx context.Context, req apps.CallRequest) error) {
	req, ok := bindCall(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c)
}

func (h *StandupHandler) form(c *gin.Context, action func(ctx context.Context, req apps.CallRequest) (*apps.Form, error)) {
	req, ok := bindCall(c)
	if !ok {
		return
	}
	form, err := action(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps.FormResponse(form))
}
