// Package services – AuthService
//
// This file implements administrator registration and login. Passwords are
// stored as bcrypt hashes; a successful login yields a signed bearer token.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/domain"
	"github.com/tbourn/go-call-router/internal/repo"
)

// UserRepo is the user persistence contract.
type UserRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)
}

// TokenIssuer signs bearer tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Name     string `json:"name"     validate:"required,max=255"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"` // bcrypt ignores bytes past 72
}

// AuthService registers administrators and issues tokens.
type AuthService struct {
	DB     *gorm.DB
	Users  UserRepo
	Tokens TokenIssuer

	// BcryptCost is the hashing cost for new passwords.
	BcryptCost int

	validate *validator.Validate
}

// NewAuthService constructs an AuthService hashing at cost 10.
func NewAuthService(db *gorm.DB, users UserRepo, tokens TokenIssuer) *AuthService {
	return &AuthService{
		DB:         db,
		Users:      users,
		Tokens:     tokens,
		BcryptCost: 10,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register validates input, hashes the password and stores the user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Register")
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s failed %q", ErrInvalidUser, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.Users.CreateUser(ctx, s.DB, in.Name, in.Email, string(hash))
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create user: %w", ErrPersistence, err)
	}
	return u, nil
}

// Login checks credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	u, err := s.Users.FindUserByEmail(ctx, s.DB, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("%w: find user: %w", ErrPersistence, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.Tokens.Issue(u.ID)
}
