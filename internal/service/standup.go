package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/conversation"
	"basegraph.app/standup/internal/messaging"
	"basegraph.app/standup/internal/reminder"
)

// StandupService handles the inbound conversation actions. Each call resolves the acting
// user's controller through the registry.
type StandupService interface {
	Start(ctx context.Context, req apps.CallRequest) error
	AddForm(ctx context.Context, req apps.CallRequest) (*apps.Form, error)
	Advance(ctx context.Context, req apps.CallRequest) error
	SubmitAdd(ctx context.Context, req apps.CallRequest) error
	EditForm(ctx context.Context, req apps.CallRequest) (*apps.Form, error)
	SubmitEdit(ctx context.Context, req apps.CallRequest) error
	Publish(ctx context.Context, req apps.CallRequest) error
	SubmitStatusUpdate(ctx context.Context, req apps.CallRequest) (int, error)
	DismissStatusSummary(ctx context.Context, req apps.CallRequest) error

	// Remind prompts userID for a report and starts a fresh conversation.
	Remind(ctx context.Context, userID string) error
}

// UserClients builds platform clients acting as the user who owns token.
type UserClients interface {
	UserMessenger(token string) messaging.Messenger
	UserTeamAdmin(token string) messaging.TeamAdmin
}

type standupService struct {
	registry *conversation.Registry
	clients  UserClients
}

func NewStandupService(registry *conversation.Registry, clients UserClients) StandupService {
	return &standupService{
		registry: registry,
		clients:  clients,
	}
}

// controller validates the envelope, tags ctx with the user and action and resolves the
// user's controller.
func (s *standupService) controller(ctx context.Context, req apps.CallRequest, action string) (context.Context, *conversation.Controller, error) {
	userID := req.Context.ActingUserID()
	if userID == "" {
		return ctx, nil, missing("context.acting_user.id")
	}
	ctx = withCall(ctx, req, action)

	c, err := s.registry.Get(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve conversation", "error", err)
		return ctx, nil, fmt.Errorf("resolving conversation: %w", err)
	}
	return ctx, c, nil
}

// Start discards the user's controller and any draft it held, then begins a new report.
func (s *standupService) Start(ctx context.Context, req apps.CallRequest) error {
	userID := req.Context.ActingUserID()
	if userID == "" {
		return missing("context.acting_user.id")
	}
	ctx = withCall(ctx, req, "start")

	c, err := s.registry.Restart(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create conversation", "error", err)
		return fmt.Errorf("creating conversation: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to start conversation", "error", err)
		return fmt.Errorf("starting conversation: %w", err)
	}
	slog.InfoContext(ctx, "conversation started")
	return nil
}

func (s *standupService) AddForm(ctx context.Context, req apps.CallRequest) (*apps.Form, error) {
	ctx, c, err := s.controller(ctx, req, "requestAddForm")
	if err != nil {
		return nil, err
	}

	var st conversation.FormState
	if err := req.DecodeState(&st); err != nil {
		return nil, invalid(fmt.Errorf("decoding form state: %w", err))
	}
	form, err := c.AddForm(ctx, st)
	if err != nil {
		slog.WarnContext(ctx, "failed to build add form", "error", err, "index", st.Index)
		return nil, invalid(err)
	}
	return form, nil
}

func (s *standupService) Advance(ctx context.Context, req apps.CallRequest) error {
	ctx, c, err := s.controller(ctx, req, "advance")
	if err != nil {
		return err
	}
	if err := c.Advance(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to advance conversation", "error", err)
		return fmt.Errorf("advancing conversation: %w", err)
	}
	return nil
}

func (s *standupService) SubmitAdd(ctx context.Context, req apps.CallRequest) error {
	ctx, c, err := s.controller(ctx, req, "submitAddForm")
	if err != nil {
		return err
	}

	var st conversation.FormState
	if err := req.DecodeState(&st); err != nil {
		return invalid(fmt.Errorf("decoding form state: %w", err))
	}
	sub := conversation.ParseAddSubmission(req.Values, st)
	if err := c.ProcessFormAdd(ctx, sub); err != nil {
		if errors.Is(err, conversation.ErrEmptyNote) || errors.Is(err, conversation.ErrInvalidGoalIndex) {
			return invalid(err)
		}
		slog.ErrorContext(ctx, "failed to add item", "error", err, "category", st.Type)
		return fmt.Errorf("adding item: %w", err)
	}
	return nil
}

func (s *standupService) EditForm(ctx context.Context, req apps.CallRequest) (*apps.Form, error) {
	_, c, err := s.controller(ctx, req, "requestEditForm")
	if err != nil {
		return nil, err
	}
	return c.EditForm(), nil
}

func (s *standupService) SubmitEdit(ctx context.Context, req apps.CallRequest) error {
	ctx, c, err := s.controller(ctx, req, "submitEditForm")
	if err != nil {
		return err
	}
	if err := c.Edit(ctx, conversation.OverridesFromValues(req.Values)); err != nil {
		slog.ErrorContext(ctx, "failed to edit report", "error", err)
		return fmt.Errorf("editing report: %w", err)
	}
	return nil
}

// Publish posts the report as the acting user, whose access token is required.
func (s *standupService) Publish(ctx context.Context, req apps.CallRequest) error {
	if req.Context.ActingUserID() == "" {
		return missing("context.acting_user.id")
	}
	token := req.Context.ActingUserAccessToken
	if token == "" {
		return missing("acting_user_access_token")
	}

	ctx, c, err := s.controller(ctx, req, "publish")
	if err != nil {
		return err
	}
	if err := c.Publish(ctx, s.clients.UserMessenger(token)); err != nil {
		if errors.Is(err, conversation.ErrNotReady) {
			return invalid(err)
		}
		slog.ErrorContext(ctx, "publish incomplete", "error", err)
		return fmt.Errorf("publishing report: %w", err)
	}
	return nil
}

func (s *standupService) SubmitStatusUpdate(ctx context.Context, req apps.CallRequest) (int, error) {
	ctx, c, err := s.controller(ctx, req, "submitStatusUpdate")
	if err != nil {
		return 0, err
	}
	return c.SubmitStatusUpdate(ctx, req.Values)
}

func (s *standupService) DismissStatusSummary(ctx context.Context, req apps.CallRequest) error {
	ctx, c, err := s.controller(ctx, req, "dismissStatusSummary")
	if err != nil {
		return err
	}
	var postID string
	if req.Context.Post != nil {
		postID = req.Context.Post.ID
	}
	if err := c.DismissStatusSummary(ctx, postID); err != nil {
		slog.WarnContext(ctx, "failed to dismiss status summary", "error", err)
		return err
	}
	return nil
}

func (s *standupService) Remind(ctx context.Context, userID string) error {
	c, err := s.registry.Restart(ctx, userID)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	if err := c.Notify(ctx, reminder.Prompt); err != nil {
		return fmt.Errorf("sending reminder: %w", err)
	}
	return c.Start(ctx)
}

func withCall(ctx context.Context, req apps.CallRequest, action string) context.Context {
	fields := logger.LogFields{Action: logger.Ptr(action)}
	if userID := req.Context.ActingUserID(); userID != "" {
		fields.UserID = logger.Ptr(userID)
	}
	if req.Context.Channel != nil && req.Context.Channel.ID != "" {
		fields.ChannelID = logger.Ptr(req.Context.Channel.ID)
	}
	return logger.WithLogFields(ctx, fields)
}
