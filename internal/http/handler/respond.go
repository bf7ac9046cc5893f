package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/conversation"
	"basegraph.app/standup/internal/http/middleware"
	"basegraph.app/standup/internal/service"
)

const genericFailure = "Something went wrong, please try again."

// bindCall returns the envelope decoded by the call middleware, decoding the body itself
// when the middleware is not installed.
func bindCall(c *gin.Context) (apps.CallRequest, bool) {
	if req, ok := middleware.CallFromContext(c); ok {
		return req, true
	}
	var req apps.CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call request"})
		return req, false
	}
	return req, true
}

// respondError maps service errors onto the call response. Rejected envelopes and
// unauthorized callers get an HTTP error; anything the user can act on is shown to them
// as an error response.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var missing *service.MissingContextError
	var invalid *service.InvalidInputError
	switch {
	case errors.As(err, &missing):
		c.String(http.StatusBadRequest, missing.Error())
	case errors.Is(err, service.ErrUnauthorized):
		c.String(http.StatusUnauthorized, "Unauthorized: Requires system_admin role")
	case errors.As(err, &invalid),
		errors.Is(err, service.ErrDirectChannel),
		errors.Is(err, service.ErrChannelNotRegistered),
		errors.Is(err, conversation.ErrNoTracker):
		c.JSON(http.StatusOK, apps.Error(sentence(err.Error())))
	default:
		slog.ErrorContext(ctx, "call failed", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusOK, apps.Error(genericFailure))
	}
}

func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	s = string(unicode.ToUpper(r)) + s[size:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

func respondOK(c *gin.Context) {
	c.JSON(http.StatusOK, apps.OK(""))
}
