// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a credential for the email is already stored.
var ErrAlreadyExists = errors.New("already exists")

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
// The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session token rejections, in the order the validator checks them.
var (
	ErrTokenMissing   = errors.New("session token missing")
	ErrTokenMalformed = errors.New("session token malformed")
	ErrTokenExpired   = errors.New("session token expired")
)

// Error codes attached to auth failures.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAlreadyExists      = "AUTH_ALREADY_EXISTS"
	CodeStoreFailure       = "AUTH_STORE_FAILURE"
	CodeTokenMissing       = "SESSION_TOKEN_MISSING"
	CodeTokenMalformed     = "SESSION_TOKEN_MALFORMED"
	CodeTokenExpired       = "SESSION_TOKEN_EXPIRED"
)
