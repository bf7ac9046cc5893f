package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/internal/apps"
)

const callKey = "standup.call"

// BotTokens holds the bot's session token, which the platform may rotate.
type BotTokens interface {
	SetBotToken(token string) bool
	HasBotToken() bool
}

// Bootstrapper restores stored state once a bot token is available.
type Bootstrapper interface {
	Ready() bool
	Run(ctx context.Context) error
}

// AppCall decodes the call envelope, adopts the bot token it carries when it differs
// from the current one, and runs the bootstrap the first time a token is known.
func AppCall(tokens BotTokens, bootstrap Bootstrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req apps.CallRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call request"})
			return
		}

		fields := logger.LogFields{}
		if userID := req.Context.ActingUserID(); userID != "" {
			fields.UserID = logger.Ptr(userID)
		}
		if req.Context.Channel != nil && req.Context.Channel.ID != "" {
			fields.ChannelID = logger.Ptr(req.Context.Channel.ID)
		}
		ctx := logger.WithLogFields(c.Request.Context(), fields)
		c.Request = c.Request.WithContext(ctx)

		if token := req.Context.BotAccessToken; token != "" && tokens.SetBotToken(token) {
			slog.InfoContext(ctx, "bot token refreshed from call context")
		}
		if !bootstrap.Ready() && tokens.HasBotToken() {
			if err := bootstrap.Run(ctx); err != nil {
				slog.ErrorContext(ctx, "bootstrap failed, will retry on next call", "error", err)
			}
		}

		c.Set(callKey, req)
		c.Next()
	}
}

// CallFromContext returns the envelope decoded by AppCall.
func CallFromContext(c *gin.Context) (apps.CallRequest, bool) {
	v, ok := c.Get(callKey)
	if !ok {
		return apps.CallRequest{}, false
	}
	req, ok := v.(apps.CallRequest)
	return req, ok
}
