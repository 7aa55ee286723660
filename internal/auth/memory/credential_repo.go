// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides an in-process credential store for development
// and tests. Contents are lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// CredentialRepository implements auth.CredentialRepository in memory.
type CredentialRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]auth.Credential
	byEmail map[string]ulid.ULID
}

// NewCredentialRepository creates an empty repository.
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{
		byID:    make(map[ulid.ULID]auth.Credential),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a copy of cred.
func (r *CredentialRepository) Create(_ context.Context, cred *auth.Credential) error {
	email := auth.NormalizeEmail(cred.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return oops.Code("CREDENTIAL_EMAIL_TAKEN").With("email", email).Wrap(auth.ErrAlreadyExists)
	}
	if _, taken := r.byID[cred.ID]; taken {
		return oops.Code("CREDENTIAL_ID_TAKEN").With("id", cred.ID.String()).Wrap(auth.ErrAlreadyExists)
	}

	stored := *cred
	stored.Email = email
	r.byID[cred.ID] = stored
	r.byEmail[email] = cred.ID
	return nil
}

// GetByID retrieves a copy of the credential with the given ID.
func (r *CredentialRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &cred, nil
}

// GetByEmail retrieves a copy of the credential for email.
func (r *CredentialRepository) GetByEmail(_ context.Context, email string) (*auth.Credential, error) {
	email = auth.NormalizeEmail(email)

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	cred := r.byID[id]
	return &cred, nil
}

// UpdatePassword replaces the stored password hash.
func (r *CredentialRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(id, func(c *auth.Credential) {
		c.PasswordHash = passwordHash
		c.UpdatedAt = time.Now().UTC()
	})
}

// RecordLogin stores the time of the latest successful login.
func (r *CredentialRepository) RecordLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(c *auth.Credential) {
		c.LastLoginAt = &at
	})
}

// Ping always succeeds.
func (r *CredentialRepository) Ping(_ context.Context) error {
	return nil
}

func (r *CredentialRepository) update(id ulid.ULID, apply func(*auth.Credential)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.byID[id]
	if !ok {
		return oops.Code("CREDENTIAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	apply(&cred)
	r.byID[id] = cred
	return nil
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
