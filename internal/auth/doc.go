// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides credential verification and the session-token
// lifecycle for authd.
//
// # Domain Types
//
// Credential records should be created with NewCredential, which normalizes
// the email and assigns an ID. SessionToken values are only produced by
// TokenIssuer.Issue.
//
// # Components
//
//   - SchemeHasher - hashes passwords and verifies stored hashes in constant time
//   - TokenIssuer - mints HS256 tokens that expire a fixed TTL after issuance
//   - SessionValidator - accepts or rejects a token without touching the store
//   - RegistrationGuard - enforces one credential per email before writing
//
// # Services
//
// Service combines the components into the login and registration flows.
// It is created with NewService or NewServiceWithLogger, which validate
// their dependencies.
//
// # Errors
//
// Failures are oops errors wrapping the package sentinels, so callers
// classify them with errors.Is: ErrInvalidCredentials, ErrAlreadyExists,
// ErrNotFound, ErrTokenMissing, ErrTokenMalformed and ErrTokenExpired.
// Anything else is a store or internal failure.
package auth
