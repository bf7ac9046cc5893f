package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Every inbound App call enriches its context once, so the conversation controller, the
// issue cache and the store never have to repeat the acting user in their log statements.
type LogFields struct {
	UserID    *string // Acting Mattermost user
	SessionID *int64  // Conversation session (snowflake), reset on every start
	ChannelID *string // Channel the call originated from
	Action    *string // Inbound action (e.g., "start", "submitAddForm")
	Reference *string // Tracker reference being resolved (e.g., "repo#42")
	Component string  // Component name (OTel semantic convention style, e.g., "standup.issuecache")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.UserID != nil {
		result.UserID = next.UserID
	}
	if next.SessionID != nil {
		result.SessionID = next.SessionID
	}
	if next.ChannelID != nil {
		result.ChannelID = next.ChannelID
	}
	if next.Action != nil {
		result.Action = next.Action
	}
	if next.Reference != nil {
		result.Reference = next.Reference
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{UserID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
