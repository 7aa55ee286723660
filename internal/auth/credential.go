// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Credential binds a normalized email to a password hash and an identity.
type Credential struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string `json:"-"`
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// Profile holds the optional descriptive fields collected at registration.
type Profile struct {
	FirstName string
	LastName  string
}

// NormalizeEmail returns the canonical form of an email used for lookups
// and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewCredential creates a validated Credential with a fresh ID.
// The email is normalized; passwordHash must already be a hash.
func NewCredential(email, passwordHash string, profile Profile) (*Credential, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("CREDENTIAL_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Credential{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(profile.FirstName),
		LastName:     strings.TrimSpace(profile.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CredentialRepository manages credential persistence.
// Implementations must be safe for concurrent use.
type CredentialRepository interface {
	// Create stores a new credential.
	// Returns ErrAlreadyExists if the email is already taken.
	Create(ctx context.Context, cred *Credential) error

	// GetByID retrieves a credential by ID.
	// Returns ErrNotFound if no credential has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Credential, error)

	// GetByEmail retrieves a credential by email (case-insensitive).
	// Returns ErrNotFound if no credential has the given email.
	GetByEmail(ctx context.Context, email string) (*Credential, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// RecordLogin stores the time of the latest successful login.
	RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
