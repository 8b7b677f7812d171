// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses forms, renders pages, sets cookies
//	Service (Business layer) → validates, enforces uniqueness, hashes
//	Repository (Data layer)  → reads/writes the Credential Store
//
// AuthService takes a repository.UserRepository (interface), not a concrete
// Mongo or SQLite type, so tests pass an in-memory fake and main.go picks
// the store from configuration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/gatehouse/internal/apperror"
	"github.com/sakif/gatehouse/internal/auth"
	"github.com/sakif/gatehouse/internal/metrics"
	"github.com/sakif/gatehouse/internal/model"
	"github.com/sakif/gatehouse/internal/repository"
)

// User-facing messages. Handlers render these verbatim.
const (
	MsgUsernameTaken      = "This username already exists. Please choose a different one."
	MsgEmailTaken         = "This email is already in use. Please choose a different one."
	MsgInvalidCredentials = "Invalid username or password"
	MsgPasswordTooLong    = "Password is too long."
)

// Recorder receives flow outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveRegistration(outcome string)
	ObserveLogin(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRegistration(string) {}
func (nopRecorder) ObserveLogin(string)        {}

// RegisterInput is the registration form. The form tags name the fields in
// FieldErrors; the validate tags mirror the length constants in validation.go.
type RegisterInput struct {
	FirstName string `form:"first_name" validate:"required"`
	LastName  string `form:"last_name"  validate:"required"`
	Email     string `form:"email"      validate:"required,email"`
	Username  string `form:"username"   validate:"required,min=4,max=20"`
	Password  string `form:"password"   validate:"required,min=8,max=20"`
}

// LoginInput is the login form.
type LoginInput struct {
	Username string `form:"username" validate:"required,min=4,max=20"`
	Password string `form:"password" validate:"required,min=8,max=20"`
}

// AuthService handles registration and credential checks.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.UserRepository → the Credential Store
//   - passwords *auth.PasswordService     → bcrypt hash/verify
//   - recorder  Recorder                  → outcome counters (optional)
//   - logger    *slog.Logger              → structured logging
//
// Sessions are not this layer's concern: Login reports who the user is and
// the handler asks the SessionManager for a cookie.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	recorder  Recorder
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. recorder may be nil.
func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	recorder Recorder,
	logger *slog.Logger,
) *AuthService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AuthService{
		users:     users,
		passwords: passwords,
		recorder:  recorder,
		logger:    logger,
	}
}

// Register validates the form, checks that the username and email are
// free, hashes the password and persists the user.
//
// Failures the user can fix come back as apperror.FieldErrors; nothing is
// written in that case. Store failures come back wrapped and should be
// treated as a 500. The new user is NOT logged in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)

	fieldErrs, err := s.checkRegistration(ctx, in)
	if err != nil {
		s.recorder.ObserveRegistration(metrics.OutcomeError)
		return nil, err
	}
	if len(fieldErrs) > 0 {
		s.recorder.ObserveRegistration(outcomeFor(fieldErrs))
		return nil, fieldErrs
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			s.recorder.ObserveRegistration(metrics.OutcomeInvalid)
			return nil, apperror.FieldErrors{{Field: "password", Message: MsgPasswordTooLong}}
		}
		s.recorder.ObserveRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration: the unique index
		// caught what the pre-check could not.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) {
			s.recorder.ObserveRegistration(metrics.OutcomeConflict)
			return nil, apperror.FieldErrors{conflictError(appErr.Field)}
		}
		s.recorder.ObserveRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("service/auth: creating user %q: %w", in.Username, err)
	}

	s.recorder.ObserveRegistration(metrics.OutcomeSuccess)
	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// checkRegistration collects every field problem at once so the form can
// show them together. Uniqueness is only checked for fields that passed
// syntax validation.
func (s *AuthService) checkRegistration(ctx context.Context, in RegisterInput) (apperror.FieldErrors, error) {
	var fieldErrs apperror.FieldErrors
	if err := validateInput(in); err != nil {
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
	}

	if len(fieldErrs.For("username")) == 0 {
		taken, err := s.exists(ctx, s.users.GetByUsername, in.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			fieldErrs = append(fieldErrs, conflictError("username"))
		}
	}

	if len(fieldErrs.For("email")) == 0 {
		taken, err := s.exists(ctx, s.users.GetByEmail, in.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			fieldErrs = append(fieldErrs, conflictError("email"))
		}
	}

	return fieldErrs, nil
}

func (s *AuthService) exists(
	ctx context.Context,
	get func(context.Context, string) (*model.User, error),
	value string,
) (bool, error) {
	_, err := get(ctx, value)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperror.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("service/auth: checking uniqueness: %w", err)
	}
}

func conflictError(field string) apperror.FieldError {
	if field == "email" {
		return apperror.FieldError{Field: "email", Message: MsgEmailTaken}
	}
	return apperror.FieldError{Field: "username", Message: MsgUsernameTaken}
}

// outcomeFor labels a rejected registration: conflict if any message is a
// uniqueness failure, invalid otherwise.
func outcomeFor(fieldErrs apperror.FieldErrors) string {
	for _, fe := range fieldErrs {
		if fe.Message == MsgUsernameTaken || fe.Message == MsgEmailTaken {
			return metrics.OutcomeConflict
		}
	}
	return metrics.OutcomeInvalid
}

// Login checks a username and password.
//
// Returns:
//   - apperror.FieldErrors if the form itself is malformed
//   - apperror.ErrInvalidCredentials if the user is unknown OR the password
//     doesn't match (callers must not be able to tell which)
//   - a wrapped store error for anything else
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)

	if err := validateInput(in); err != nil {
		s.recorder.ObserveLogin(metrics.OutcomeInvalid)
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.recorder.ObserveLogin(metrics.OutcomeBadCredentials)
			s.logger.Info("login failed", slog.String("username", in.Username))
			return nil, apperror.ErrInvalidCredentials
		}
		s.recorder.ObserveLogin(metrics.OutcomeError)
		return nil, fmt.Errorf("service/auth: looking up %q: %w", in.Username, err)
	}

	if !s.passwords.Verify(user.PasswordHash, in.Password) {
		s.recorder.ObserveLogin(metrics.OutcomeBadCredentials)
		s.logger.Info("login failed", slog.String("username", in.Username))
		return nil, apperror.ErrInvalidCredentials
	}

	s.recorder.ObserveLogin(metrics.OutcomeSuccess)
	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// GetUserByID loads a user for session resolution. It satisfies
// auth.UserLookup so the access gate goes through the service.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.NotFound("user", id)
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
