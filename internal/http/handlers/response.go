// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints:
// the JSON error envelope, success helpers, and TwiML writers for provider
// webhooks. Provider-facing endpoints always answer with TwiML, even on
// failure, so a caller is never left in silence.
//
// Conventions:
//   - All JSON error responses return an ErrorResponse with a stable `code`.
//   - `fail()` and `failVoice()` log 5xx responses with the request-scoped
//     logger so they can be correlated by request id.
//   - `failFrom()` maps service sentinel errors to status and code.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "error": "Extension not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/http/middleware"
	"github.com/tbourn/go-call-router/internal/services"
	"github.com/tbourn/go-call-router/internal/twilio"
)

// ErrorResponse is the standard error envelope returned by JSON endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Error string `json:"error" example:"Extension not found"`
}

// MessageResponse is the generic acknowledgement body.
type MessageResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Call status updated."`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Error:     msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failFrom maps a service error onto the error envelope. Messages of 5xx
// answers are generic; the cause goes to the log.
func failFrom(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrExtensionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Extension not found")
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusBadRequest, ErrCodeEmailTaken, "Email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrUpstream):
		logCause(c, err)
		fail(c, http.StatusInternalServerError, ErrCodeUpstream, "telephony provider request failed")
	default:
		logCause(c, err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

func logCause(c *gin.Context, err error) {
	lg := middleware.LoggerFrom(c)
	lg.Error().Err(err).Msg("request failed")
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// voice renders a TwiML document with the provider content type.
func voice(c *gin.Context, status int, resp *twilio.Response) {
	body, err := resp.Render()
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("render twiml")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, twilio.ContentType, body)
}

// failVoice answers a provider webhook after a server-side failure: the
// caller hears an apology and the call is hung up.
func failVoice(c *gin.Context, err error) {
	lg := middleware.LoggerFrom(c)
	lg.Error().Err(err).Int("status", http.StatusInternalServerError).Msg("webhook error")
	voice(c, http.StatusInternalServerError, services.ApplicationError())
	c.Abort()
}

// emptyVoice is an empty <Response/>, which ends the current instructions.
func emptyVoice() *twilio.Response { return &twilio.Response{} }
