// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionValidator checks inbound session tokens. Validation is
// self-contained in the token; no store is consulted.
type SessionValidator struct {
	secret []byte
	clock  Clock
	parser *jwt.Parser
}

// NewSessionValidator creates a SessionValidator for tokens signed with secret.
func NewSessionValidator(secret []byte, opts ...TokenOption) (*SessionValidator, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_MISSING").Errorf("token signing secret is required")
	}
	o := buildTokenOptions(opts)

	key := make([]byte, len(secret))
	copy(key, secret)
	return &SessionValidator{
		secret: key,
		clock:  o.clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(o.clock),
		),
	}, nil
}

// Authenticate returns the subject of a valid token.
//
// Rejections wrap ErrTokenMissing, ErrTokenMalformed or ErrTokenExpired.
// The signature is checked before expiry, so a forged expired token is
// reported as malformed.
func (v *SessionValidator) Authenticate(tokenValue string) (ulid.ULID, error) {
	if strings.TrimSpace(tokenValue) == "" {
		return ulid.ULID{}, oops.Code(CodeTokenMissing).Wrap(ErrTokenMissing)
	}

	claims := &sessionClaims{}
	if _, err := v.parser.ParseWithClaims(tokenValue, claims, v.keyFunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ulid.ULID{}, oops.Code(CodeTokenExpired).Wrap(ErrTokenExpired)
		}
		return ulid.ULID{}, oops.Code(CodeTokenMalformed).
			With("reason", err.Error()).
			Wrap(ErrTokenMalformed)
	}

	// The token is only valid while the clock is strictly before exp.
	if !v.clock().Before(claims.ExpiresAt.Time) {
		return ulid.ULID{}, oops.Code(CodeTokenExpired).Wrap(ErrTokenExpired)
	}

	subject, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeTokenMalformed).
			With("reason", "subject is not a valid identifier").
			Wrap(ErrTokenMalformed)
	}
	return subject, nil
}

func (v *SessionValidator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}
