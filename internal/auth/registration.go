// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// RegistrationInput is a pre-validated registration request.
type RegistrationInput struct {
	Email    string
	Password string
	Profile  Profile
}

// RegistrationGuard enforces one credential per email and creates new
// credentials.
type RegistrationGuard struct {
	credentials CredentialRepository
	hasher      PasswordHasher
}

// NewRegistrationGuard creates a RegistrationGuard.
func NewRegistrationGuard(credentials CredentialRepository, hasher PasswordHasher) (*RegistrationGuard, error) {
	if credentials == nil {
		return nil, oops.Errorf("credentials repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &RegistrationGuard{credentials: credentials, hasher: hasher}, nil
}

// Register stores a new credential for in.Email.
//
// When the email is already taken it returns an error wrapping
// ErrAlreadyExists and nothing is written. Store failures are returned
// as-is under AUTH_STORE_FAILURE and are not retried.
func (g *RegistrationGuard) Register(ctx context.Context, in RegistrationInput) (*Credential, error) {
	email := NormalizeEmail(in.Email)

	_, err := g.credentials.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, oops.Code(CodeAlreadyExists).
			With("email", email).
			Wrap(ErrAlreadyExists)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code(CodeStoreFailure).
			With("operation", "get credential by email").
			Wrap(err)
	}

	hash, err := g.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	cred, err := NewCredential(email, hash, in.Profile)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "build credential").
			Wrap(err)
	}

	if err := g.credentials.Create(ctx, cred); err != nil {
		// A concurrent registration won the race for this email.
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code(CodeAlreadyExists).
				With("email", email).
				Wrap(ErrAlreadyExists)
		}
		return nil, oops.Code(CodeStoreFailure).
			With("operation", "create credential").
			Wrap(err)
	}

	return cred, nil
}
