// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication for the administrative
// API. RequireAuth verifies the JWT and stores the caller's user ID under the
// "userID" context key, where the access logger and rate limiter pick it up.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/auth"
)

// userIDKey holds the authenticated user ID.
const userIDKey = "userID"

// TokenVerifier validates a bearer token. *auth.Manager implements it.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// UserID returns the authenticated user ID set by RequireAuth.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// RequireAuth rejects requests without a valid "Authorization: Bearer <jwt>"
// header with 401. The cause is logged at debug level only.
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "Unauthorized")
			return
		}
		claims, err := v.Verify(token)
		if err != nil {
			lg := LoggerFrom(c)
			lg.Debug().Err(err).Msg("reject bearer token")
			unauthorized(c, "Unauthorized")
			return
		}
		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header value. The
// scheme is case-insensitive.
func bearerToken(h string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"error":      msg,
	})
}
