package messaging

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Factory hands out clients for the bot and for acting users. The bot token is a session
// token that the platform may rotate, so it can be replaced at runtime.
type Factory struct {
	siteURL string
	http    *http.Client

	mu       sync.RWMutex
	botToken string
	bot      *Client
}

func NewFactory(siteURL, botToken string, timeout time.Duration) *Factory {
	f := &Factory{
		siteURL: strings.TrimSuffix(siteURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	f.SetBotToken(botToken)
	return f
}

func (f *Factory) SiteURL() string {
	return f.siteURL
}

// Bot returns the client authenticated as the App's bot.
func (f *Factory) Bot() *Client {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bot
}

func (f *Factory) BotToken() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.botToken
}

// HasBotToken reports whether a bot token has been provided yet.
func (f *Factory) HasBotToken() bool {
	return f.BotToken() != ""
}

// SetBotToken swaps the bot client when token differs from the current one and reports
// whether it did.
func (f *Factory) SetBotToken(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == f.botToken && f.bot != nil {
		return false
	}
	f.botToken = token
	f.bot = NewClient(f.siteURL, token, f.http)
	return true
}

// ForUser returns a client acting as the user who owns token.
func (f *Factory) ForUser(token string) *Client {
	return NewClient(f.siteURL, token, f.http)
}

// UserMessenger is ForUser as a Messenger.
func (f *Factory) UserMessenger(token string) Messenger {
	return f.ForUser(token)
}

// UserTeamAdmin is ForUser as a TeamAdmin.
func (f *Factory) UserTeamAdmin(token string) TeamAdmin {
	return f.ForUser(token)
}

// BotMessenger returns a Messenger that always goes through the current bot client, so
// holders keep working after the token rotates.
func (f *Factory) BotMessenger() Messenger {
	return botMessenger{f: f}
}

type botMessenger struct {
	f *Factory
}

func (b botMessenger) CreateOrUpdatePost(ctx context.Context, post Post) (string, error) {
	return b.f.Bot().CreateOrUpdatePost(ctx, post)
}

func (b botMessenger) CreateDirectChannel(ctx context.Context, userIDs ...string) (string, error) {
	return b.f.Bot().CreateDirectChannel(ctx, userIDs...)
}

func (b botMessenger) GetProfilePictureURL(ctx context.Context, userID string) (string, error) {
	return b.f.Bot().GetProfilePictureURL(ctx, userID)
}

func (b botMessenger) GetUserID(ctx context.Context) (string, error) {
	return b.f.Bot().GetUserID(ctx)
}
