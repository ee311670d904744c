// Package handlers wires HTTP endpoints to the call-routing services.
//
// Handlers are transport-thin: they read form, query and JSON input, call an
// application service, and translate results into TwiML or JSON responses.
package handlers

import (
	"context"

	"github.com/tbourn/go-call-router/internal/domain"
	"github.com/tbourn/go-call-router/internal/services"
	"github.com/tbourn/go-call-router/internal/twilio"
)

//
// Service contracts (context-aware)
//

// CallService drives the call lifecycle webhooks.
type CallService interface {
	Incoming(ctx context.Context) *twilio.Response
	Reprompt(text string) *twilio.Response
	HandleExtension(ctx context.Context, in services.ExtensionEntry) (*twilio.Response, error)
	HandleRecording(ctx context.Context, callSid, recordingURL string) (bool, error)
	HandleStatus(ctx context.Context, callSid, callStatus, parentCallSid string) (bool, error)
	ListCallLogs(ctx context.Context) ([]domain.CallRecord, error)
	CallLogsVersion(ctx context.Context) (string, error)
}

// RecordingService aggregates provider recordings.
type RecordingService interface {
	FilteredRecordings(ctx context.Context, q services.RecordingQuery) (*services.RecordingPage, error)
	AudioStats(ctx context.Context) (services.AudioStats, error)
}

// ExtensionService manages the extension directory.
type ExtensionService interface {
	List(ctx context.Context) ([]domain.Extension, error)
	Get(ctx context.Context, id string) (*domain.Extension, error)
	Create(ctx context.Context, in services.ExtensionInput) (*domain.Extension, error)
	Update(ctx context.Context, id string, in services.ExtensionInput) (*domain.Extension, error)
	Delete(ctx context.Context, id string) error
}

// AuthService registers administrators and issues tokens.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	calls      CallService
	recordings RecordingService
	extensions ExtensionService
	auth       AuthService
}

// New constructs a Handlers bound to the given services.
func New(calls CallService, recordings RecordingService, extensions ExtensionService, auth AuthService) *Handlers {
	return &Handlers{calls: calls, recordings: recordings, extensions: extensions, auth: auth}
}
