// Package services holds the call-routing business logic: webhook handling
// for the call lifecycle, recording aggregation, the extension directory and
// administrator auth. This file centralizes the service-level error values so
// they can be returned consistently and mapped to HTTP results by handlers.
//
// Validation errors all wrap ErrValidation, so handlers can match the family
// with errors.Is(err, ErrValidation) and still tell members apart.
package services

import (
	"errors"
	"fmt"
)

// ErrValidation is the parent of every input validation error.
var ErrValidation = errors.New("validation failed")

// Validation errors.
var (
	// ErrMissingDigits is returned when the caller submitted no digits.
	ErrMissingDigits = fmt.Errorf("%w: extension input is missing", ErrValidation)

	// ErrInvalidRecording is returned when a recording callback lacks
	// CallSid or RecordingUrl.
	ErrInvalidRecording = fmt.Errorf("%w: CallSid and RecordingUrl are required", ErrValidation)

	// ErrMissingCallSid is returned when a status callback lacks CallSid.
	ErrMissingCallSid = fmt.Errorf("%w: CallSid is required", ErrValidation)

	// ErrInvalidDate is returned when a date filter is not YYYY-MM-DD.
	ErrInvalidDate = fmt.Errorf("%w: dates must use YYYY-MM-DD", ErrValidation)

	// ErrInvalidExtension is returned when a directory entry fails validation.
	ErrInvalidExtension = fmt.Errorf("%w: invalid extension", ErrValidation)

	// ErrInvalidUser is returned when registration input fails validation.
	ErrInvalidUser = fmt.Errorf("%w: invalid user", ErrValidation)
)

// Lookup, dependency and auth errors.
var (
	// ErrExtensionNotFound indicates the directory entry does not exist.
	ErrExtensionNotFound = errors.New("extension not found")

	// ErrUpstream wraps provider gateway failures, timeouts included.
	ErrUpstream = errors.New("upstream provider error")

	// ErrPersistence wraps unexpected store failures.
	ErrPersistence = errors.New("persistence error")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers every login failure so responses do not
	// reveal which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
