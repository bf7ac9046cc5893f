package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/conversation"
	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/messaging"
	"basegraph.app/standup/internal/reminder"
	"basegraph.app/standup/internal/store"
	"basegraph.app/standup/internal/tracker"
)

const activationMessage = "Standups activated. To share a standup type `/standup start` to register for daily reminders type `/standup register user`"

// Reminders is the part of the reminder manager the settings actions use.
type Reminders interface {
	Register(ctx context.Context, userID, timezone string) (reminder.Setting, error)
	Update(ctx context.Context, userID string, patch reminder.Patch) (reminder.Setting, error)
	Now() time.Time
}

// TrackerOpener builds and starts an issue cache for creds.
type TrackerOpener func(ctx context.Context, creds tracker.Credentials) (*issuecache.Cache, error)

// SettingsService handles the /standup register and /standup settings commands.
type SettingsService interface {
	RegisterChannel(ctx context.Context, req apps.CallRequest) error
	RegisterUser(ctx context.Context, req apps.CallRequest) (reminder.Setting, error)
	UpdateReminder(ctx context.Context, req apps.CallRequest) (reminder.Setting, error)
	ConfigureTracker(ctx context.Context, req apps.CallRequest) error
}

type SettingsDeps struct {
	Bot         messaging.Messenger
	Clients     UserClients
	Channels    *store.Collection[store.Channel]
	Credentials *store.Collection[tracker.Credentials]
	Reminders   Reminders
	Registry    *conversation.Registry
	Holder      *issuecache.Holder
	OpenTracker TrackerOpener
}

type settingsService struct {
	deps SettingsDeps
}

func NewSettingsService(deps SettingsDeps) SettingsService {
	return &settingsService{deps: deps}
}

// RegisterChannel makes the calling channel the one reports are published to. The bot
// joins the team and channel through the admin's own token.
func (s *settingsService) RegisterChannel(ctx context.Context, req apps.CallRequest) error {
	user := req.Context.ActingUser
	if user == nil || user.ID == "" {
		return missing("context.acting_user")
	}
	if !user.IsSystemAdmin() {
		return ErrUnauthorized
	}
	ch := req.Context.Channel
	if ch == nil || ch.ID == "" {
		return missing("context.channel")
	}
	if ch.Type == apps.ChannelTypeDirect {
		return ErrDirectChannel
	}
	if req.Context.ActingUserAccessToken == "" {
		return missing("acting_user_access_token")
	}
	if req.Context.BotUserID == "" {
		return missing("context.bot_user_id")
	}
	ctx = withCall(ctx, req, "registerChannel")

	admin := s.deps.Clients.UserTeamAdmin(req.Context.ActingUserAccessToken)
	if err := admin.AddToTeam(ctx, ch.TeamID, req.Context.BotUserID); err != nil {
		slog.ErrorContext(ctx, "failed to add bot to team", "error", err, "team_id", ch.TeamID)
		return fmt.Errorf("adding bot to team: %w", err)
	}
	if err := admin.AddToChannel(ctx, ch.ID, req.Context.BotUserID); err != nil {
		slog.ErrorContext(ctx, "failed to add bot to channel", "error", err)
		return fmt.Errorf("adding bot to channel: %w", err)
	}

	setting := store.Channel{ID: ch.ID, TeamID: ch.TeamID, DisplayName: ch.DisplayName}
	if err := s.deps.Channels.Put(ctx, store.SingletonID, setting); err != nil {
		slog.ErrorContext(ctx, "failed to save report channel", "error", err)
		return fmt.Errorf("saving channel: %w", err)
	}

	if _, err := s.deps.Bot.CreateOrUpdatePost(ctx, messaging.Post{ChannelID: ch.ID, Message: activationMessage}); err != nil {
		slog.WarnContext(ctx, "failed to post activation message", "error", err)
	}
	slog.InfoContext(ctx, "report channel registered", "channel_name", ch.DisplayName)
	return nil
}

// RegisterUser signs the acting user up for daily reminders in their timezone. It has to
// be run from the registered report channel.
func (s *settingsService) RegisterUser(ctx context.Context, req apps.CallRequest) (reminder.Setting, error) {
	user := req.Context.ActingUser
	if user == nil || user.ID == "" {
		return reminder.Setting{}, missing("context.acting_user")
	}
	if req.Context.Channel == nil || req.Context.Channel.ID == "" {
		return reminder.Setting{}, missing("context.channel")
	}
	ctx = withCall(ctx, req, "registerUser")

	channel, ok, err := s.deps.Channels.Lookup(ctx, store.SingletonID)
	if err != nil {
		return reminder.Setting{}, fmt.Errorf("loading channel: %w", err)
	}
	if !ok || channel.ID != req.Context.Channel.ID {
		return reminder.Setting{}, ErrChannelNotRegistered
	}

	setting, err := s.deps.Reminders.Register(ctx, user.ID, user.TimezoneName())
	if err != nil {
		return reminder.Setting{}, reminderError(err)
	}

	c, err := s.deps.Registry.Get(ctx, user.ID)
	if err != nil {
		slog.WarnContext(ctx, "registered without confirmation", "error", err)
		return setting, nil
	}
	if err := c.Notify(ctx, fmt.Sprintf("Standups registered for **%s**", channel.DisplayName)); err != nil {
		slog.WarnContext(ctx, "failed to confirm registration", "error", err)
	}
	if err := c.Notify(ctx, setting.HelpText(s.deps.Reminders.Now())); err != nil {
		slog.WarnContext(ctx, "failed to send reminder help", "error", err)
	}

	slog.InfoContext(ctx, "user registered for reminders", "timezone", setting.Timezone)
	return setting, nil
}

// UpdateReminder merges the submitted hour, minute and skip days into the user's
// reminder and moves it to their current timezone.
func (s *settingsService) UpdateReminder(ctx context.Context, req apps.CallRequest) (reminder.Setting, error) {
	user := req.Context.ActingUser
	if user == nil || user.ID == "" {
		return reminder.Setting{}, missing("context.acting_user")
	}
	ctx = withCall(ctx, req, "updateReminder")

	patch, err := reminderPatch(req.Values)
	if err != nil {
		return reminder.Setting{}, invalid(err)
	}
	if tz := user.TimezoneName(); tz != "" {
		patch.Timezone = &tz
	}

	setting, err := s.deps.Reminders.Update(ctx, user.ID, patch)
	if err != nil {
		return reminder.Setting{}, reminderError(err)
	}

	c, err := s.deps.Registry.Get(ctx, user.ID)
	if err != nil {
		slog.WarnContext(ctx, "reminder updated without confirmation", "error", err)
		return setting, nil
	}
	if err := c.Notify(ctx, "Reminder updated: \n\n"+setting.HelpText(s.deps.Reminders.Now())); err != nil {
		slog.WarnContext(ctx, "failed to confirm reminder update", "error", err)
	}
	return setting, nil
}

func reminderPatch(values apps.Values) (reminder.Patch, error) {
	var patch reminder.Patch

	hour, ok, err := values.Int("hour")
	if err != nil {
		return patch, err
	}
	if ok {
		patch.Hour = &hour
	}

	minute, ok, err := values.Int("minute")
	if err != nil {
		return patch, err
	}
	if ok {
		patch.Minute = &minute
	}

	if days := values.String("skip-days"); strings.TrimSpace(days) != "" {
		patch.ExcludeDays = reminder.ParseDays(days)
	}
	return patch, nil
}

func reminderError(err error) error {
	for _, target := range []error{
		reminder.ErrNotRegistered,
		reminder.ErrInvalidHour,
		reminder.ErrInvalidMinute,
		reminder.ErrInvalidTimezone,
		reminder.ErrInvalidDay,
		reminder.ErrNoDays,
	} {
		if errors.Is(err, target) {
			return invalid(err)
		}
	}
	return fmt.Errorf("saving reminder: %w", err)
}

// ConfigureTracker stores tracker credentials and swaps in a cache built from them. The
// previous cache keeps serving if the new one cannot be opened.
func (s *settingsService) ConfigureTracker(ctx context.Context, req apps.CallRequest) error {
	user := req.Context.ActingUser
	if user == nil || user.ID == "" {
		return missing("context.acting_user")
	}
	if !user.IsSystemAdmin() {
		return ErrUnauthorized
	}
	ctx = withCall(ctx, req, "configureTracker")

	creds := credentialsFromValues(req.Values)
	if !creds.Complete() {
		return invalid(ErrIncompleteCredentials)
	}

	cache, err := s.deps.OpenTracker(ctx, creds)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open issue tracker", "error", err, "provider", creds.Provider, "owner", creds.Owner)
		return fmt.Errorf("opening issue tracker: %w", err)
	}
	s.deps.Holder.Set(cache)

	if err := s.deps.Credentials.Put(ctx, store.SingletonID, creds); err != nil {
		slog.ErrorContext(ctx, "failed to save tracker credentials", "error", err)
		return fmt.Errorf("saving tracker credentials: %w", err)
	}

	slog.InfoContext(ctx, "issue tracker configured", "provider", creds.Provider, "owner", creds.Owner, "project", creds.Project)
	return nil
}

func credentialsFromValues(values apps.Values) tracker.Credentials {
	provider := tracker.Provider(strings.ToLower(strings.TrimSpace(values.String("provider"))))
	if provider == "" {
		provider = tracker.ProviderGitHub
	}
	return tracker.Credentials{
		Provider: provider,
		Token:    strings.TrimSpace(values.String("token")),
		Owner:    strings.TrimSpace(values.String("owner")),
		Project:  strings.TrimSpace(values.String("project")),
		BaseURL:  strings.TrimSpace(values.String("base_url")),
	}
}
