// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/pkg/errutil"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Client-facing messages.
const (
	msgLoginSuccessful    = "Login successful"
	msgUserCreated        = "User created successfully"
	msgInvalidCredentials = "Invalid Credentials"
	msgUserExists         = "User already exists"
	msgUserNotFound       = "User not found"
	msgUnauthorized       = "Unauthorized"
	msgInternal           = "Something went wrong"
	msgInvalidBody        = "Invalid request body"
	msgLoggedOut          = "Logged out"
	msgNotImplemented     = "Password reset is not implemented"
)

// AuthService is the part of auth.Service the handlers depend on.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.Credential, *auth.SessionToken, error)
	Register(ctx context.Context, in auth.RegistrationInput) (*auth.Credential, *auth.SessionToken, error)
	Identity(ctx context.Context, subjectID ulid.ULID) (*auth.Credential, error)
}

// Authenticator checks a session token and returns its subject.
type Authenticator interface {
	Authenticate(tokenValue string) (ulid.ULID, error)
}

// Handlers serves the auth and user routes.
type Handlers struct {
	service       AuthService
	authenticator Authenticator
	cookies       *CookieTransport
	loginReq      *RequestValidator
	registerReq   *RequestValidator
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewHandlers creates Handlers. metrics may be nil.
func NewHandlers(service AuthService, authenticator Authenticator, cookies *CookieTransport, metrics *observability.Metrics, logger *slog.Logger) (*Handlers, error) {
	if service == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if authenticator == nil {
		return nil, oops.Errorf("authenticator is required")
	}
	if cookies == nil {
		return nil, oops.Errorf("cookie transport is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	loginReq, err := NewRequestValidator(&LoginRequest{})
	if err != nil {
		return nil, oops.With("request", "login").Wrap(err)
	}
	registerReq, err := NewRequestValidator(&RegisterRequest{}, "firstName", "lastName")
	if err != nil {
		return nil, oops.With("request", "register").Wrap(err)
	}

	return &Handlers{
		service:       service,
		authenticator: authenticator,
		cookies:       cookies,
		loginReq:      loginReq,
		registerReq:   registerReq,
		metrics:       metrics,
		logger:        logger,
	}, nil
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, h.loginReq, &req, "login") {
		return
	}

	cred, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.metrics.RecordAuth("login", observability.OutcomeInvalidCredentials)
			h.respond(w, r, http.StatusBadRequest, MessageResponse{Message: msgInvalidCredentials})
		default:
			h.metrics.RecordAuth("login", observability.OutcomeError)
			h.internalError(w, r, "login failed", err)
		}
		return
	}

	h.metrics.RecordAuth("login", observability.OutcomeSuccess)
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("auth.subject_id", cred.ID.String()))
	h.cookies.Attach(w, token)
	h.respond(w, r, http.StatusOK, LoginResponse{
		Message: msgLoginSuccessful,
		UserID:  cred.ID.String(),
		Token:   token.Value,
	})
}

// Register handles POST /api/users/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, h.registerReq, &req, "register") {
		return
	}

	cred, token, err := h.service.Register(r.Context(), auth.RegistrationInput{
		Email:    req.Email,
		Password: req.Password,
		Profile:  auth.Profile{FirstName: req.FirstName, LastName: req.LastName},
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyExists):
			h.metrics.RecordAuth("register", observability.OutcomeAlreadyExists)
			h.respond(w, r, http.StatusBadRequest, MessageResponse{Message: msgUserExists})
		default:
			h.metrics.RecordAuth("register", observability.OutcomeError)
			h.internalError(w, r, "registration failed", err)
		}
		return
	}

	h.metrics.RecordAuth("register", observability.OutcomeSuccess)
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("auth.subject_id", cred.ID.String()))
	h.cookies.Attach(w, token)
	h.respond(w, r, http.StatusOK, RegisterResponse{
		Message: msgUserCreated,
		UserID:  cred.ID.String(),
	})
}

// ValidateToken handles GET /api/auth/validate-token. It must run behind
// RequireSession.
func (h *Handlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.unauthorized(w, r, auth.CodeTokenMissing)
		return
	}
	h.respond(w, r, http.StatusOK, SessionResponse{UserID: subject.String()})
}

// Me handles GET /api/users/me. It must run behind RequireSession.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.unauthorized(w, r, auth.CodeTokenMissing)
		return
	}

	cred, err := h.service.Identity(r.Context(), subject)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			h.respond(w, r, http.StatusNotFound, MessageResponse{Message: msgUserNotFound})
			return
		}
		h.internalError(w, r, "identity lookup failed", err)
		return
	}

	h.respond(w, r, http.StatusOK, ProfileResponse{
		ID:        cred.ID.String(),
		Email:     cred.Email,
		FirstName: cred.FirstName,
		LastName:  cred.LastName,
		CreatedAt: cred.CreatedAt,
	})
}

// Logout handles POST /api/auth/logout. It always succeeds.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	h.respond(w, r, http.StatusOK, MessageResponse{Message: msgLoggedOut})
}

// ForgotPassword handles POST /api/auth/forgot-password.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusNotImplemented, MessageResponse{Message: msgNotImplemented})
}

// decode reads and validates the request body into dst. It writes the 400
// response and returns false when the body is rejected.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, rv *RequestValidator, dst any, operation string) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.metrics.RecordAuth(operation, observability.OutcomeInvalidRequest)
		h.respond(w, r, http.StatusBadRequest, MessageResponse{Message: msgInvalidBody})
		return false
	}

	fieldErrs, err := rv.Decode(body, dst)
	if err != nil {
		h.metrics.RecordAuth(operation, observability.OutcomeError)
		h.internalError(w, r, "request validation failed", err)
		return false
	}
	if len(fieldErrs) > 0 {
		h.metrics.RecordAuth(operation, observability.OutcomeInvalidRequest)
		h.respond(w, r, http.StatusBadRequest, MessageResponse{
			Message: invalidRequestMessage(fieldErrs),
			Errors:  fieldErrs,
		})
		return false
	}
	return true
}

func (h *Handlers) unauthorized(w http.ResponseWriter, r *http.Request, code string) {
	h.respond(w, r, http.StatusUnauthorized, MessageResponse{Message: msgUnauthorized, Code: code})
}

// internalError logs err with its code and context and answers 500 without
// leaking either.
func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogError(h.logger, msg, err)
	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	if code := errutil.Code(err); code != "" {
		span.SetAttributes(attribute.String("error.code", code))
	}
	h.respond(w, r, http.StatusInternalServerError, MessageResponse{Message: msgInternal})
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write response",
			"path", r.URL.Path,
			"error", err,
		)
	}
}
