package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
)

// Client talks to the Mattermost REST API v4 with one access token.
type Client struct {
	api *model.Client4

	mu   sync.Mutex
	meID string
}

var (
	_ Messenger = (*Client)(nil)
	_ TeamAdmin = (*Client)(nil)
)

func NewClient(siteURL, token string, hc *http.Client) *Client {
	api := model.NewAPIv4Client(strings.TrimSuffix(siteURL, "/"))
	api.SetToken(token)
	if hc != nil {
		api.HTTPClient = hc
	}
	return &Client{api: api}
}

func (c *Client) CreateOrUpdatePost(ctx context.Context, post Post) (string, error) {
	p := &model.Post{Id: post.ID, ChannelId: post.ChannelID, Message: post.Message}
	if post.Props != nil {
		p.SetProps(model.StringInterface(post.Props))
	}

	if post.ID != "" {
		if _, resp, err := c.api.UpdatePost(ctx, post.ID, p); err != nil {
			return "", fmt.Errorf("update post: %w", apiError(resp, err))
		}
		return post.ID, nil
	}
	created, resp, err := c.api.CreatePost(ctx, p)
	if err != nil {
		return "", fmt.Errorf("create post: %w", apiError(resp, err))
	}
	return created.Id, nil
}

func (c *Client) CreateDirectChannel(ctx context.Context, userIDs ...string) (string, error) {
	if len(userIDs) != 2 {
		return "", fmt.Errorf("create direct channel: need 2 members, got %d", len(userIDs))
	}
	channel, resp, err := c.api.CreateDirectChannel(ctx, userIDs[0], userIDs[1])
	if err != nil {
		return "", fmt.Errorf("create direct channel: %w", apiError(resp, err))
	}
	return channel.Id, nil
}

// GetProfilePictureURL builds the image URL; the user is looked up first so a bad id
// fails here rather than rendering a broken image.
func (c *Client) GetProfilePictureURL(ctx context.Context, userID string) (string, error) {
	user, resp, err := c.api.GetUser(ctx, userID, "")
	if err != nil {
		return "", fmt.Errorf("get user %s: %w", userID, apiError(resp, err))
	}
	return c.api.APIURL + "/users/" + url.PathEscape(user.Id) + "/image", nil
}

// GetUserID returns the id of the token's owner. Only a successful lookup is
// remembered; a failed one is retried by the next caller.
func (c *Client) GetUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meID != "" {
		return c.meID, nil
	}

	me, resp, err := c.api.GetMe(ctx, "")
	if err != nil {
		return "", fmt.Errorf("get me: %w", apiError(resp, err))
	}
	c.meID = me.Id
	return c.meID, nil
}

func (c *Client) AddToTeam(ctx context.Context, teamID, userID string) error {
	if _, resp, err := c.api.AddTeamMember(ctx, teamID, userID); err != nil {
		return fmt.Errorf("add %s to team %s: %w", userID, teamID, apiError(resp, err))
	}
	return nil
}

func (c *Client) AddToChannel(ctx context.Context, channelID, userID string) error {
	if _, resp, err := c.api.AddChannelMember(ctx, channelID, userID); err != nil {
		return fmt.Errorf("add %s to channel %s: %w", userID, channelID, apiError(resp, err))
	}
	return nil
}

// apiError flattens a Client4 failure into *APIError. The response status wins over the
// one decoded from the body, which is a placeholder when the body is not JSON.
func apiError(resp *model.Response, err error) error {
	out := &APIError{Message: err.Error()}
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		out.ID = appErr.Id
		out.StatusCode = appErr.StatusCode
		out.Message = appErr.Message
		if appErr.DetailedError != "" {
			out.Message += ": " + appErr.DetailedError
		}
	}
	if resp != nil && resp.StatusCode != 0 {
		out.StatusCode = resp.StatusCode
	}
	return out
}
