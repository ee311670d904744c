// Package services – CallService
//
// This file implements CallService, which turns provider voice webhooks into
// TwiML instructions and keeps the local call log in step with the provider:
//
//	incoming -> extension entry -> recorded dial -> recording / status callbacks
//
// Records are created once when a caller is bridged and then patched by
// independent, keyed, last-write-wins updates, so the recording and status
// callbacks may arrive in either order.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/domain"
	"github.com/tbourn/go-call-router/internal/repo"
	"github.com/tbourn/go-call-router/internal/twilio"
)

// Webhook paths, relative to the public base URL.
const (
	PathHandleExtension = "/api/calls/handle-extension"
	PathRecording       = "/api/calls/recording"
	PathStatusUpdate    = "/api/calls/status-update"
)

// Prompts spoken to callers.
const (
	PromptWelcome        = "Welcome! Please enter your extension followed by the pound key."
	PromptMissingDigits  = "Extension input is missing."
	PromptInvalid        = "Invalid extension. Please try again."
	PromptApplicationErr = "We are sorry, an application error has occurred. Goodbye."
)

// CallStore is the persistence contract CallService needs.
type CallStore interface {
	// FindExtensionByCode returns the newest directory entry for code.
	FindExtensionByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Extension, error)

	// CreateCall inserts a call record.
	CreateCall(ctx context.Context, db *gorm.DB, in repo.NewCall) (*domain.CallRecord, error)

	// UpdateCallBySid patches every record with callSid and reports rows affected.
	UpdateCallBySid(ctx context.Context, db *gorm.DB, callSid string, patch repo.CallPatch) (int64, error)

	// ListCalls returns every record, newest first.
	ListCalls(ctx context.Context, db *gorm.DB) ([]domain.CallRecord, error)

	// CallsStats returns the row count and newest update time, used for ETags.
	CallsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)
}

// ExtensionEntry is the caller input posted by the Gather action.
type ExtensionEntry struct {
	Digits  string
	From    string
	CallSid string
	// Replay marks a provider retry of a delivery already applied; the
	// instructions are rebuilt but no second record is written.
	Replay bool
}

// CallService drives the call lifecycle.
type CallService struct {
	DB    *gorm.DB
	Store CallStore

	// BaseURL is the public origin the provider uses to reach the webhooks.
	BaseURL string
	// NumDigits is the extension length collected by Gather.
	NumDigits int
}

// NewCallService constructs a CallService collecting 3-digit extensions.
func NewCallService(db *gorm.DB, store CallStore, baseURL string) *CallService {
	return &CallService{
		DB:        db,
		Store:     store,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		NumDigits: 3,
	}
}

func (s *CallService) url(path string) string { return s.BaseURL + path }

// Incoming greets the caller and asks for an extension.
func (s *CallService) Incoming(ctx context.Context) *twilio.Response {
	_, span := otel.Tracer("services/CallService").Start(ctx, "Incoming")
	defer span.End()
	resp := s.Reprompt(PromptWelcome)
	span.SetAttributes(attribute.String("twiml.verbs", resp.Describe()))
	return resp
}

// Reprompt speaks text and gathers the extension again.
func (s *CallService) Reprompt(text string) *twilio.Response {
	return (&twilio.Response{}).
		Say(text).
		Gather(twilio.DigitsGather(s.NumDigits, s.url(PathHandleExtension)))
}

// ApplicationError is the instruction set returned when the router itself failed.
func ApplicationError() *twilio.Response {
	return (&twilio.Response{}).Say(PromptApplicationErr).Hangup()
}

// HandleExtension routes a caller to the extension they entered.
//
// Unknown codes re-prompt without touching the call log. A known code writes
// an "ongoing" record before the dial instructions are returned, so the
// recording and status callbacks always have something to match.
func (s *CallService) HandleExtension(ctx context.Context, in ExtensionEntry) (*twilio.Response, error) {
	ctx, span := otel.Tracer("services/CallService").Start(ctx, "HandleExtension",
		trace.WithAttributes(
			attribute.String("call.sid", in.CallSid),
			attribute.Bool("webhook.replay", in.Replay),
		),
	)
	defer span.End()

	digits := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(in.Digits), "#"))
	if digits == "" {
		callsRouted.WithLabelValues("missing_digits").Inc()
		return nil, ErrMissingDigits
	}

	ext, err := s.Store.FindExtensionByCode(ctx, s.DB, digits)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		callsRouted.WithLabelValues("unknown_extension").Inc()
		resp := s.Reprompt(PromptInvalid)
		span.SetAttributes(attribute.String("twiml.verbs", resp.Describe()))
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find extension: %w", ErrPersistence, err)
	}

	if in.Replay {
		callsRouted.WithLabelValues("replayed").Inc()
	} else {
		_, err := s.Store.CreateCall(ctx, s.DB, repo.NewCall{
			From:      in.From,
			To:        ext.Number,
			Extension: digits,
			CallSid:   in.CallSid,
			Status:    domain.CallStatusOngoing,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: create call: %w", ErrPersistence, err)
		}
		callsRouted.WithLabelValues("connected").Inc()
	}
	span.SetAttributes(attribute.String("extension.code", digits))

	dial := twilio.RecordedDial(twilio.DialTarget{
		Address:           ext.Number,
		RecordingCallback: s.url(PathRecording),
		StatusCallback:    s.url(PathStatusUpdate),
		StatusEvents:      []string{"completed"},
	})
	resp := (&twilio.Response{}).
		Say(fmt.Sprintf("Connecting you to extension %s.", digits)).
		Dial(dial)
	span.SetAttributes(attribute.String("twiml.verbs", resp.Describe()))
	return resp, nil
}

// HandleRecording stores the recording URL and marks the call completed.
// It reports whether any record matched; an unmatched callback is not an
// error but is counted.
func (s *CallService) HandleRecording(ctx context.Context, callSid, recordingURL string) (bool, error) {
	ctx, span := otel.Tracer("services/CallService").Start(ctx, "HandleRecording",
		trace.WithAttributes(attribute.String("call.sid", callSid)),
	)
	defer span.End()

	callSid, recordingURL = strings.TrimSpace(callSid), strings.TrimSpace(recordingURL)
	if callSid == "" || recordingURL == "" {
		return false, ErrInvalidRecording
	}

	status := domain.CallStatusCompleted
	n, err := s.Store.UpdateCallBySid(ctx, s.DB, callSid, repo.CallPatch{
		Status:       &status,
		RecordingURL: &recordingURL,
	})
	if err != nil {
		return false, fmt.Errorf("%w: update call: %w", ErrPersistence, err)
	}
	if n == 0 {
		webhookUnmatched.WithLabelValues(HookRecording).Inc()
		return false, nil
	}
	return true, nil
}

// HandleStatus records the provider's terminal status for a call. A blank
// status means "completed". Callbacks from the dialed child leg carry the
// parent's sid, which is tried when the leg's own sid matches nothing.
func (s *CallService) HandleStatus(ctx context.Context, callSid, callStatus, parentCallSid string) (bool, error) {
	ctx, span := otel.Tracer("services/CallService").Start(ctx, "HandleStatus",
		trace.WithAttributes(
			attribute.String("call.sid", callSid),
			attribute.String("call.status", callStatus),
		),
	)
	defer span.End()

	callSid = strings.TrimSpace(callSid)
	if callSid == "" {
		return false, ErrMissingCallSid
	}
	status := strings.TrimSpace(callStatus)
	if status == "" {
		status = domain.CallStatusCompleted
	}
	patch := repo.CallPatch{Status: &status}

	n, err := s.Store.UpdateCallBySid(ctx, s.DB, callSid, patch)
	if err != nil {
		return false, fmt.Errorf("%w: update call: %w", ErrPersistence, err)
	}
	parent := strings.TrimSpace(parentCallSid)
	if n == 0 && parent != "" && parent != callSid {
		n, err = s.Store.UpdateCallBySid(ctx, s.DB, parent, patch)
		if err != nil {
			return false, fmt.Errorf("%w: update parent call: %w", ErrPersistence, err)
		}
	}
	if n == 0 {
		webhookUnmatched.WithLabelValues(HookStatus).Inc()
		return false, nil
	}
	return true, nil
}

// ListCallLogs returns every call record, newest first.
func (s *CallService) ListCallLogs(ctx context.Context) ([]domain.CallRecord, error) {
	ctx, span := otel.Tracer("services/CallService").Start(ctx, "ListCallLogs")
	defer span.End()

	out, err := s.Store.ListCalls(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("%w: list calls: %w", ErrPersistence, err)
	}
	if out == nil {
		out = []domain.CallRecord{}
	}
	return out, nil
}

// CallLogsVersion returns a weak validator that changes whenever a record is
// added or updated.
func (s *CallService) CallLogsVersion(ctx context.Context) (string, error) {
	count, maxUpdated, err := s.Store.CallsStats(ctx, s.DB)
	if err != nil {
		return "", fmt.Errorf("%w: calls stats: %w", ErrPersistence, err)
	}
	var ts int64
	if maxUpdated != nil {
		ts = maxUpdated.UTC().UnixNano()
	}
	return fmt.Sprintf(`W/"calls:%d:%d"`, count, ts), nil
}
