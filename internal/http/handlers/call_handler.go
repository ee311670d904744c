// Call webhook HTTP handlers.
//
// This file exposes the endpoints the telephony provider calls during a call:
//   - POST /api/calls/incoming          (greeting + Gather)
//   - POST /api/calls/handle-extension  (route to extension)
//   - POST /api/calls/recording         (Dial action, recording URL)
//   - POST /api/calls/status-update     (dialed leg status callback)
//   - GET  /api/calls/logs              (call log, ETag support)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/http/middleware"
	"github.com/tbourn/go-call-router/internal/services"
)

// IncomingCall godoc
// @ID          incomingCall
// @Summary     Answer an incoming call
// @Description Provider voice webhook. Greets the caller and gathers a 3-digit extension.
// @Tags        Calls
// @Accept      x-www-form-urlencoded
// @Produce     xml
// @Success     200  {string}  string  "TwiML"
// @Router      /calls/incoming [post]
func (h *Handlers) IncomingCall(c *gin.Context) {
	voice(c, http.StatusOK, h.calls.Incoming(c.Request.Context()))
}

// HandleExtension godoc
// @ID          handleExtension
// @Summary     Route a caller to an extension
// @Description Gather action. Known extensions are dialed with recording; unknown ones are re-prompted.
// @Tags        Calls
// @Accept      x-www-form-urlencoded
// @Produce     xml
// @Param       Digits   formData  string  true   "Digits entered by the caller"  example(101)
// @Param       From     formData  string  false  "Caller number"                 example(+15557654321)
// @Param       CallSid  formData  string  false  "Provider call sid"             example(CA123)
// @Success     200  {string}  string  "TwiML Dial or re-prompt"
// @Failure     400  {string}  string  "TwiML re-prompt (missing digits)"
// @Failure     500  {string}  string  "TwiML apology + Hangup"
// @Router      /calls/handle-extension [post]
func (h *Handlers) HandleExtension(c *gin.Context) {
	in := services.ExtensionEntry{
		Digits:  c.PostForm("Digits"),
		From:    c.PostForm("From"),
		CallSid: c.PostForm("CallSid"),
		Replay:  middleware.IsReplay(c),
	}
	resp, err := h.calls.HandleExtension(c.Request.Context(), in)
	switch {
	case errors.Is(err, services.ErrMissingDigits):
		voice(c, http.StatusBadRequest, h.calls.Reprompt(services.PromptMissingDigits))
	case err != nil:
		failVoice(c, err)
	default:
		voice(c, http.StatusOK, resp)
	}
}

// RecordingCallback godoc
// @ID          recordingCallback
// @Summary     Store a call recording
// @Description Dial action. Marks the call completed and stores its recording URL.
// @Tags        Calls
// @Accept      x-www-form-urlencoded
// @Produce     xml
// @Param       CallSid       formData  string  true  "Provider call sid"  example(CA123)
// @Param       RecordingUrl  formData  string  true  "Recording URL"
// @Success     200  {string}  string  "Empty TwiML Response"
// @Failure     400  {string}  string  "Empty TwiML Response"
// @Failure     500  {string}  string  "TwiML apology + Hangup"
// @Router      /calls/recording [post]
func (h *Handlers) RecordingCallback(c *gin.Context) {
	callSid := c.PostForm("CallSid")
	matched, err := h.calls.HandleRecording(c.Request.Context(), callSid, c.PostForm("RecordingUrl"))
	switch {
	case errors.Is(err, services.ErrValidation):
		voice(c, http.StatusBadRequest, emptyVoice())
	case err != nil:
		failVoice(c, err)
	default:
		if !matched {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Str("call_sid", callSid).Str("hook", services.HookRecording).Msg("callback matched no call record")
		}
		voice(c, http.StatusOK, emptyVoice())
	}
}

// StatusCallback godoc
// @ID          statusCallback
// @Summary     Update a call status
// @Description Status callback of the dialed leg. A missing status means "completed".
// @Tags        Calls
// @Accept      x-www-form-urlencoded
// @Produce     json
// @Param       CallSid        formData  string  true   "Provider call sid"   example(CA123)
// @Param       CallStatus     formData  string  false  "Provider status"     example(completed)
// @Param       ParentCallSid  formData  string  false  "Parent call sid"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /calls/status-update [post]
func (h *Handlers) StatusCallback(c *gin.Context) {
	callSid := c.PostForm("CallSid")
	matched, err := h.calls.HandleStatus(c.Request.Context(), callSid, c.PostForm("CallStatus"), c.PostForm("ParentCallSid"))
	if err != nil {
		failFrom(c, err)
		return
	}
	if !matched {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Str("call_sid", callSid).Str("hook", services.HookStatus).Msg("callback matched no call record")
	}
	ok(c, http.StatusOK, MessageResponse{Success: true, Message: "Call status updated."})
}

// ListCallLogs godoc
// @ID          listCallLogs
// @Summary     List call logs
// @Description Returns every call record, newest first. Supports weak ETag via If-None-Match.
// @Tags        Calls
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.CallRecord
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /calls/logs [get]
func (h *Handlers) ListCallLogs(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if etag, err := h.calls.CallLogsVersion(ctx); err == nil {
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	logs, err := h.calls.ListCallLogs(ctx)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, logs)
}
