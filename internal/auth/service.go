// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyHashProvider is implemented by hashers that supply their own fake
// hash for unknown accounts.
type dummyHashProvider interface {
	DummyHash() string
}

// Service coordinates login, registration and identity lookup.
type Service struct {
	credentials CredentialRepository
	guard       *RegistrationGuard
	hasher      PasswordHasher
	issuer      *TokenIssuer
	logger      *slog.Logger
	dummyHash   string
}

// NewService creates a Service that logs to slog.Default().
func NewService(credentials CredentialRepository, hasher PasswordHasher, issuer *TokenIssuer) (*Service, error) {
	return NewServiceWithLogger(credentials, hasher, issuer, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(credentials CredentialRepository, hasher PasswordHasher, issuer *TokenIssuer, logger *slog.Logger) (*Service, error) {
	if credentials == nil {
		return nil, oops.Errorf("credentials repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}

	guard, err := NewRegistrationGuard(credentials, hasher)
	if err != nil {
		return nil, err
	}

	dummy := dummyArgon2idHash
	if p, ok := hasher.(dummyHashProvider); ok {
		dummy = p.DummyHash()
	}

	return &Service{
		credentials: credentials,
		guard:       guard,
		hasher:      hasher,
		issuer:      issuer,
		logger:      logger,
		dummyHash:   dummy,
	}, nil
}

// Login verifies an email and password and issues a session token.
// Unknown emails and wrong passwords both return an error wrapping
// ErrInvalidCredentials, and both run a full hash verification.
func (s *Service) Login(ctx context.Context, email, password string) (*Credential, *SessionToken, error) {
	email = NormalizeEmail(email)

	cred, lookupErr := s.credentials.GetByEmail(ctx, email)

	var targetHash string
	var exists bool
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get credential by email").
				Wrap(lookupErr)
		}
		targetHash = s.dummyHash
	} else {
		targetHash = cred.PasswordHash
		exists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return nil, nil, invalidCredentials()
		}
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("credential_id", cred.ID.String()).
			Wrap(verifyErr)
	}
	if !exists || !valid {
		return nil, nil, invalidCredentials()
	}

	s.upgradeHash(ctx, cred, password)
	s.recordLogin(ctx, cred)

	token, err := s.issuer.Issue(cred.ID)
	if err != nil {
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session token").
			Wrap(err)
	}
	return cred, token, nil
}

// Register creates a credential and issues a session token for it.
func (s *Service) Register(ctx context.Context, in RegistrationInput) (*Credential, *SessionToken, error) {
	cred, err := s.guard.Register(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	token, err := s.issuer.Issue(cred.ID)
	if err != nil {
		return nil, nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "issue session token").
			With("credential_id", cred.ID.String()).
			Wrap(err)
	}
	return cred, token, nil
}

// Identity returns the stored credential for an authenticated subject.
// Returns an error wrapping ErrNotFound if the subject no longer exists.
func (s *Service) Identity(ctx context.Context, subjectID ulid.ULID) (*Credential, error) {
	cred, err := s.credentials.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_IDENTITY_NOT_FOUND").
				With("subject_id", subjectID.String()).
				Wrap(ErrNotFound)
		}
		return nil, oops.Code(CodeStoreFailure).
			With("operation", "get credential by id").
			With("subject_id", subjectID.String()).
			Wrap(err)
	}
	return cred, nil
}

// Ready reports whether the credential store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.credentials.Ping(ctx); err != nil {
		return oops.Code(CodeStoreFailure).With("operation", "ping credential store").Wrap(err)
	}
	return nil
}

// upgradeHash re-hashes the password with the preferred scheme. Login
// succeeds even if this fails.
func (s *Service) upgradeHash(ctx context.Context, cred *Credential, password string) {
	if !s.hasher.NeedsUpgrade(cred.PasswordHash) {
		return
	}

	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "hash password",
			"credential_id", cred.ID.String(),
			"error", err,
		)
		return
	}
	if err := s.credentials.UpdatePassword(ctx, cred.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "update password",
			"credential_id", cred.ID.String(),
			"error", err,
		)
		return
	}
	cred.PasswordHash = newHash
}

// recordLogin stores the login time. Login succeeds even if this fails.
func (s *Service) recordLogin(ctx context.Context, cred *Credential) {
	now := time.Now().UTC()
	if err := s.credentials.RecordLogin(ctx, cred.ID, now); err != nil {
		s.logger.WarnContext(ctx, "best-effort login timestamp update failed",
			"operation", "record login",
			"credential_id", cred.ID.String(),
			"error", err,
		)
		return
	}
	cred.LastLoginAt = &now
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}
