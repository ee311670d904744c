// Package services – ExtensionService
//
// This file implements the extension directory: administrators map short
// dial codes to destinations. Codes are narrowed from full-width forms and
// validated as 1-10 ASCII digits before they reach the store.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/width"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/domain"
)

// ExtensionRepo is the directory persistence contract.
type ExtensionRepo interface {
	CreateExtension(ctx context.Context, db *gorm.DB, number, code string) (*domain.Extension, error)
	ListExtensions(ctx context.Context, db *gorm.DB) ([]domain.Extension, error)
	GetExtension(ctx context.Context, db *gorm.DB, id string) (*domain.Extension, error)
	UpdateExtension(ctx context.Context, db *gorm.DB, id, number, code string) (*domain.Extension, error)
	DeleteExtension(ctx context.Context, db *gorm.DB, id string) error
}

// ExtensionInput is a directory entry as submitted by an administrator.
type ExtensionInput struct {
	Number    string `json:"number"    validate:"required,max=255"`
	Extension string `json:"extension" validate:"required,number,max=10"`
}

// ExtensionService manages the extension directory.
type ExtensionService struct {
	DB   *gorm.DB
	Repo ExtensionRepo

	validate *validator.Validate
}

// NewExtensionService constructs an ExtensionService.
func NewExtensionService(db *gorm.DB, r ExtensionRepo) *ExtensionService {
	return &ExtensionService{DB: db, Repo: r, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// normalizeExtension narrows full-width characters and trims both fields.
func normalizeExtension(in ExtensionInput) ExtensionInput {
	return ExtensionInput{
		Number:    strings.TrimSpace(width.Narrow.String(in.Number)),
		Extension: strings.TrimSpace(width.Narrow.String(in.Extension)),
	}
}

func (s *ExtensionService) check(in ExtensionInput) (ExtensionInput, error) {
	in = normalizeExtension(in)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return in, fmt.Errorf("%w: %s failed %q", ErrInvalidExtension, strings.ToLower(fe.Field()), fe.Tag())
		}
		return in, fmt.Errorf("%w: %v", ErrInvalidExtension, err)
	}
	return in, nil
}

// List returns the directory ordered by code.
func (s *ExtensionService) List(ctx context.Context) ([]domain.Extension, error) {
	ctx, span := otel.Tracer("services/ExtensionService").Start(ctx, "List")
	defer span.End()

	out, err := s.Repo.ListExtensions(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("%w: list extensions: %w", ErrPersistence, err)
	}
	if out == nil {
		out = []domain.Extension{}
	}
	return out, nil
}

// Get returns one entry or ErrExtensionNotFound.
func (s *ExtensionService) Get(ctx context.Context, id string) (*domain.Extension, error) {
	ctx, span := otel.Tracer("services/ExtensionService").Start(ctx, "Get",
		trace.WithAttributes(attribute.String("extension.id", id)))
	defer span.End()

	ext, err := s.Repo.GetExtension(ctx, s.DB, id)
	return ext, mapExtensionErr(err, "get extension")
}

// Create validates and inserts a directory entry.
func (s *ExtensionService) Create(ctx context.Context, in ExtensionInput) (*domain.Extension, error) {
	ctx, span := otel.Tracer("services/ExtensionService").Start(ctx, "Create")
	defer span.End()

	in, err := s.check(in)
	if err != nil {
		return nil, err
	}
	ext, err := s.Repo.CreateExtension(ctx, s.DB, in.Number, in.Extension)
	if err != nil {
		return nil, fmt.Errorf("%w: create extension: %w", ErrPersistence, err)
	}
	return ext, nil
}

// Update validates and overwrites an existing entry.
func (s *ExtensionService) Update(ctx context.Context, id string, in ExtensionInput) (*domain.Extension, error) {
	ctx, span := otel.Tracer("services/ExtensionService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("extension.id", id)))
	defer span.End()

	in, err := s.check(in)
	if err != nil {
		return nil, err
	}
	ext, err := s.Repo.UpdateExtension(ctx, s.DB, id, in.Number, in.Extension)
	return ext, mapExtensionErr(err, "update extension")
}

// Delete removes an entry.
func (s *ExtensionService) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("services/ExtensionService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("extension.id", id)))
	defer span.End()

	return mapExtensionErr(s.Repo.DeleteExtension(ctx, s.DB, id), "delete extension")
}

func mapExtensionErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrExtensionNotFound
	default:
		return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
	}
}
