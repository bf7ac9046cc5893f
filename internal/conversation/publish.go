package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/internal/messaging"
	"basegraph.app/standup/internal/store"
)

const (
	thanksMessage       = "Thanks for your Update!"
	statusReminderText  = ":pencil: Reminder: Make sure your task statuses are updated in the [project board](%s)"
	statusReminderPlain = ":pencil: Reminder: Make sure your task statuses are updated in the project board"
)

// Publish posts the final report to the team channel, as the user when user is set and
// as the bot otherwise or when that fails. History is saved even if no post went out or
// the caller gave up waiting. With a tracker configured it then asks the user about the
// referenced issues. Only a conversation at the submit step can be published.
func (c *Controller) Publish(ctx context.Context, user messaging.Messenger) (err error) {
	ctx = c.logContext(ctx)
	span := logger.StartSpan(ctx, "conversation.publish")
	ctx = span.Context()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	c.mu.Lock()
	if c.state != StateSubmit {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (conversation is at %s)", ErrNotReady, state)
	}
	text := c.report.Render()
	goals := c.report.Goals()
	references := c.report.References()
	draftID := c.draftPostID
	c.mu.Unlock()

	props := reportProps(text, c.iconURL)
	published := c.postReport(ctx, user, props)
	span.SetAttributes(
		attribute.Bool("standup.published", published),
		attribute.Int("standup.references", len(references)),
	)

	postID, err := call(ctx, c.deps.Timeout, func(ctx context.Context) (string, error) {
		return c.deps.Bot.CreateOrUpdatePost(ctx, messaging.Post{
			ID:        draftID,
			ChannelID: c.dmChannel,
			Message:   thanksMessage,
			Props:     props,
		})
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to confirm publish in draft", "error", err)
	} else {
		c.mu.Lock()
		c.draftPostID = postID
		c.mu.Unlock()
	}

	reminder := statusReminderPlain
	if c.deps.ProjectBoardURL != "" {
		reminder = fmt.Sprintf(statusReminderText, c.deps.ProjectBoardURL)
	}
	c.bestEffort(ctx, "status reminder", func(ctx context.Context) error {
		_, err := c.deps.Bot.CreateOrUpdatePost(ctx, messaging.Post{ChannelID: c.dmChannel, Message: reminder})
		return err
	})

	history := store.History{Date: c.deps.Now(), Goals: goals}
	if err := c.saveHistory(ctx, history); err != nil {
		return err
	}

	cache := c.cache()
	if cache == nil || len(references) == 0 {
		return nil
	}
	return c.reconcile(ctx, cache, references)
}

func (c *Controller) postReport(ctx context.Context, user messaging.Messenger, props map[string]any) bool {
	channel, ok, err := call2(ctx, c.deps.Timeout, func(ctx context.Context) (store.Channel, bool, error) {
		return c.deps.Channels.Lookup(ctx, store.SingletonID)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to load report channel, report not posted", "error", err)
		return false
	}
	if !ok || channel.ID == "" {
		slog.WarnContext(ctx, "no report channel registered, report not posted")
		return false
	}

	post := messaging.Post{ChannelID: channel.ID, Props: props}
	if user != nil {
		_, userErr := call(ctx, c.deps.Timeout, func(ctx context.Context) (string, error) {
			return user.CreateOrUpdatePost(ctx, post)
		})
		if userErr == nil {
			return true
		}
		slog.WarnContext(ctx, "publishing as user failed, retrying as bot", "error", userErr)
	} else {
		slog.InfoContext(ctx, "no user access token, publishing as bot")
	}

	_, botErr := call(ctx, c.deps.Timeout, func(ctx context.Context) (string, error) {
		return c.deps.Bot.CreateOrUpdatePost(ctx, post)
	})
	if botErr != nil {
		slog.ErrorContext(ctx, "publishing as bot failed, report not posted", "error", botErr)
		return false
	}
	return true
}

// saveHistory outlives the caller's context; only the call timeout bounds it.
func (c *Controller) saveHistory(ctx context.Context, history store.History) error {
	_, err := call(context.WithoutCancel(ctx), c.deps.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.deps.Histories.Put(ctx, c.userID, history)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to save history", "error", err)
		return fmt.Errorf("saving history: %w", err)
	}

	c.mu.Lock()
	c.history = history
	c.mu.Unlock()
	return nil
}
