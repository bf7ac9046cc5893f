package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// AppAuthorizationHeader carries the JWT Mattermost signs every App call with.
const AppAuthorizationHeader = "Mattermost-App-Authorization"

// AppClaims are the claims Mattermost puts in the call JWT.
type AppClaims struct {
	ActingUserID string `json:"acting_user_id,omitempty"`
	jwt.RegisteredClaims
}

// AppJWT rejects calls whose token is missing or not signed with secret using HS256.
func AppJWT(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader(AppAuthorizationHeader), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing app token"})
			return
		}

		claims := &AppClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return key, nil
		}); err != nil {
			slog.WarnContext(c.Request.Context(), "invalid app token", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid app token"})
			return
		}

		c.Next()
	}
}
