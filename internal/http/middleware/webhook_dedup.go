// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements delivery deduplication for provider webhooks. The
// provider stamps every delivery with I-Twilio-Idempotency-Token and resends
// the same token when it retries after a timeout or a 5xx. The middleware
// reserves the (route, token) pair before the handler runs, completes it on a
// 2xx and releases it otherwise. A retry that finds the pair reserved, even
// while the first delivery is still running, is flagged with IsReplay so the
// handler rebuilds its response without repeating side effects.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderWebhookToken is the per-delivery token sent by the provider.
const HeaderWebhookToken = "I-Twilio-Idempotency-Token"

// Context keys used internally to stash delivery state.
const (
	ctxKeyWebhookToken = "webhook.token"
	ctxKeyReplay       = "webhook.replay" // bool: the delivery was reserved before
)

// WebhookToken returns the validated delivery token stored by WebhookDedup.
func WebhookToken(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyWebhookToken)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request retries a delivery that is already
// reserved, either applied or still being handled.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// DeliveryStore persists webhook deliveries keyed by (endpoint, token).
type DeliveryStore interface {
	// Reserve claims the pair before the handler runs. It returns false when a
	// live reservation already exists.
	Reserve(ctx context.Context, endpoint, token, callSid string, now time.Time) (bool, error)
	// Complete stamps the final status of a reserved delivery.
	Complete(ctx context.Context, endpoint, token string, status int) error
	// Release drops a reservation so the provider retry is applied again.
	Release(ctx context.Context, endpoint, token string) error
}

// WebhookDedupOptions configures token validation.
type WebhookDedupOptions struct {
	// MaxLen caps the accepted token length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// WebhookDedup validates the delivery token (if present) and reserves it for
// the duration of the handler.
//
// Behavior:
//   - No token, or a nil store: no-op.
//   - Malformed token: 400.
//   - Reserved token: the replay flag is set and the store is left alone.
//   - New token: reserved before the handler, completed after a 2xx, and
//     released after any other status so the provider retry is applied.
//
// Store failures are logged and never change the response; a failed
// reservation lets the delivery through as a first delivery.
func WebhookDedup(opts WebhookDedupOptions, store DeliveryStore) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		token := c.GetHeader(HeaderWebhookToken)
		if token == "" {
			c.Next()
			return
		}
		if len(token) > maxLen || !pat.MatchString(token) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"error":      "invalid " + HeaderWebhookToken,
			})
			return
		}
		c.Set(ctxKeyWebhookToken, token)
		if store == nil {
			c.Next()
			return
		}

		lg := LoggerFrom(c)
		endpoint := routeOf(c)
		ctx := c.Request.Context()

		reserved, err := store.Reserve(ctx, endpoint, token, c.PostForm("CallSid"), time.Now().UTC())
		if err != nil {
			lg.Warn().Err(err).Str("endpoint", endpoint).Msg("reserve webhook delivery")
		} else if !reserved {
			c.Set(ctxKeyReplay, true)
		}

		c.Next()

		if !reserved {
			return
		}
		// The request context may already be cancelled by a provider timeout.
		ctx = context.WithoutCancel(ctx)
		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			err = store.Complete(ctx, endpoint, token, status)
		} else {
			err = store.Release(ctx, endpoint, token)
		}
		if err != nil {
			lg.Warn().Err(err).Str("endpoint", endpoint).Int("status", status).Msg("finish webhook delivery")
		}
	}
}

// routeOf returns the registered route, or the raw path when none matched.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
