// Package messaging is the messaging collaborator: posting and updating messages, direct
// channels and profile lookups on Mattermost.
package messaging

import (
	"context"
	"fmt"
)

// Post is an outbound message. A non-empty ID updates that post instead of creating one.
type Post struct {
	ID        string
	ChannelID string
	Message   string
	Props     map[string]any
}

// Messenger is what a conversation needs from the platform.
type Messenger interface {
	CreateOrUpdatePost(ctx context.Context, post Post) (string, error)
	CreateDirectChannel(ctx context.Context, userIDs ...string) (string, error)
	GetProfilePictureURL(ctx context.Context, userID string) (string, error)
	GetUserID(ctx context.Context) (string, error)
}

// TeamAdmin is used when registering the report channel.
type TeamAdmin interface {
	AddToTeam(ctx context.Context, teamID, userID string) error
	AddToChannel(ctx context.Context, channelID, userID string) error
}

// APIError mirrors the Mattermost error body.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ID         string `json:"id"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("mattermost API error (status %d, %s): %s", e.StatusCode, e.ID, e.Message)
	}
	return fmt.Sprintf("mattermost API error (status %d): %s", e.StatusCode, e.Message)
}
