package handler_test

import (
	"context"

	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/reminder"
)

type mockStandupService struct {
	startFn                func(ctx context.Context, req apps.CallRequest) error
	addFormFn              func(ctx context.Context, req apps.CallRequest) (*apps.Form, error)
	advanceFn              func(ctx context.Context, req apps.CallRequest) error
	submitAddFn            func(ctx context.Context, req apps.CallRequest) error
	editFormFn             func(ctx context.Context, req apps.CallRequest) (*apps.Form, error)
	submitEditFn           func(ctx context.Context, req apps.CallRequest) error
	publishFn              func(ctx context.Context, req apps.CallRequest) error
	submitStatusUpdateFn   func(ctx context.Context, req apps.CallRequest) (int, error)
	dismissStatusSummaryFn func(ctx context.Context, req apps.CallRequest) error
	remindFn               func(ctx context.Context, userID string) error
}

func (m *mockStandupService) Start(ctx context.Context, req apps.CallRequest) error {
	if m.startFn != nil {
		return m.startFn(ctx, req)
	}
	return nil
}

func (m *mockStandupService) AddForm(ctx context.Context, req apps.CallRequest) (*apps.Form, error) {
	if m.addFormFn != nil {
		return m.addFormFn(ctx, req)
	}
	return &apps.Form{}, nil
}

func (m *mockStandupService) Advance(ctx context.Context, req apps.CallRequest) error {
	if m.advanceFn != nil {
		return m.advanceFn(ctx, req)
	}
	return nil
}

func (m *mockStandupService) SubmitAdd(ctx context.Context, req apps.CallRequest) error {
	if m.submitAddFn != nil {
		return m.submitAddFn(ctx, req)
	}
	return nil
}

func (m *mockStandupService) EditForm(ctx context.Context, req apps.CallRequest) (*apps.Form, error) {
	if m.editFormFn != nil {
		return m.editFormFn(ctx, req)
	}
	return &apps.Form{}, nil
}

func (m *mockStandupService) SubmitEdit(ctx context.Context, req apps.CallRequest) error {
	if m.submitEditFn != nil {
		return m.submitEditFn(ctx, req)
	}
	return nil
}

func (m *mockStandupService) Publish(ctx context.Context, req apps.CallRequest) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, req)
	}
	return nil
}

func (m *mockStandupService) SubmitStatusUpdate(ctx context.Context, req apps.CallRequest) (int, error) {
	if m.submitStatusUpdateFn != nil {
		return m.submitStatusUpdateFn(ctx, req)
	}
	return 0, nil
}

func (m *mockStandupService) DismissStatusSummary(ctx context.Context, req apps.CallRequest) error {
	if m.dismissStatusSummaryFn != nil {
		return m.dismissStatusSummaryFn(ctx, req)
	}
	return nil
}

func (m *mockStandupService) Remind(ctx context.Context, userID string) error {
	if m.remindFn != nil {
		return m.remindFn(ctx, userID)
	}
	return nil
}

type mockSettingsService struct {
	registerChannelFn  func(ctx context.Context, req apps.CallRequest) error
	registerUserFn     func(ctx context.Context, req apps.CallRequest) (reminder.Setting, error)
	updateReminderFn   func(ctx context.Context, req apps.CallRequest) (reminder.Setting, error)
	configureTrackerFn func(ctx context.Context, req apps.CallRequest) error
}

func (m *mockSettingsService) RegisterChannel(ctx context.Context, req apps.CallRequest) error {
	if m.registerChannelFn != nil {
		return m.registerChannelFn(ctx, req)
	}
	return nil
}

func (m *mockSettingsService) RegisterUser(ctx context.Context, req apps.CallRequest) (reminder.Setting, error) {
	if m.registerUserFn != nil {
		return m.registerUserFn(ctx, req)
	}
	return reminder.Setting{}, nil
}

func (m *mockSettingsService) UpdateReminder(ctx context.Context, req apps.CallRequest) (reminder.Setting, error) {
	if m.updateReminderFn != nil {
		return m.updateReminderFn(ctx, req)
	}
	return reminder.Setting{}, nil
}

func (m *mockSettingsService) ConfigureTracker(ctx context.Context, req apps.CallRequest) error {
	if m.configureTrackerFn != nil {
		return m.configureTrackerFn(ctx, req)
	}
	return nil
}
