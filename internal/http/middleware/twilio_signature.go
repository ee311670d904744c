// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates provider webhooks. Every webhook carries an
// X-Twilio-Signature header computed over the public URL the provider called
// and the POSTed form. Behind a proxy the server cannot see that URL, so it is
// rebuilt from the configured public base URL plus the request URI.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/twilio"
)

// SignatureOptions configures TwilioSignature.
type SignatureOptions struct {
	// Enabled turns validation on. When false the middleware is a no-op.
	Enabled bool
	// AuthToken is the account auth token that keys the HMAC.
	AuthToken string
	// PublicBaseURL is the origin the provider was configured with,
	// e.g. "https://voice.example.com".
	PublicBaseURL string
}

// TwilioSignature rejects webhook requests whose signature does not match
// with 403 Forbidden.
func TwilioSignature(opts SignatureOptions) gin.HandlerFunc {
	base := strings.TrimRight(opts.PublicBaseURL, "/")
	return func(c *gin.Context) {
		if !opts.Enabled {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			forbidden(c)
			return
		}
		fullURL := base + c.Request.URL.RequestURI()
		sig := c.GetHeader(twilio.SignatureHeader)
		if !twilio.ValidSignature(opts.AuthToken, fullURL, c.Request.PostForm, sig) {
			lg := LoggerFrom(c)
			lg.Warn().Str("url", fullURL).Bool("signature_present", sig != "").Msg("webhook signature mismatch")
			forbidden(c)
			return
		}
		c.Next()
	}
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "forbidden",
		"error":      "invalid webhook signature",
	})
}
