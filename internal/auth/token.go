// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the validity window of an issued session token.
const DefaultTokenTTL = 72 * time.Hour

// Clock returns the current time.
type Clock func() time.Time

// SessionToken is a signed, time-bounded proof of identity.
type SessionToken struct {
	Value     string
	SubjectID ulid.ULID
	TokenID   ulid.ULID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL returns the validity window of the token.
func (t *SessionToken) TTL() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// sessionClaims is the JWT payload. userId mirrors sub for clients that
// read it directly.
type sessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenOption configures a TokenIssuer or SessionValidator.
type TokenOption func(*tokenOptions)

type tokenOptions struct {
	clock Clock
}

// WithClock overrides the time source.
func WithClock(clock Clock) TokenOption {
	return func(o *tokenOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildTokenOptions(opts []TokenOption) tokenOptions {
	o := tokenOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TokenIssuer mints HS256 session tokens. The secret and TTL are fixed at
// construction.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  Clock
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(secret []byte, ttl time.Duration, opts ...TokenOption) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_MISSING").Errorf("token signing secret is required")
	}
	if ttl <= 0 {
		return nil, oops.Code("TOKEN_TTL_INVALID").With("ttl", ttl.String()).Errorf("token ttl must be positive")
	}
	o := buildTokenOptions(opts)

	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenIssuer{secret: key, ttl: ttl, clock: o.clock}, nil
}

// TTL returns the validity window applied to issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for subjectID that expires exactly TTL after issuance.
func (i *TokenIssuer) Issue(subjectID ulid.ULID) (*SessionToken, error) {
	if subjectID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_SUBJECT").Errorf("subject ID cannot be zero")
	}

	// JWT dates have second precision.
	issuedAt := i.clock().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl)
	tokenID := ulid.Make()

	claims := sessionClaims{
		UserID: subjectID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			ID:        tokenID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").
			With("subject_id", subjectID.String()).
			Wrap(err)
	}

	return &SessionToken{
		Value:     value,
		SubjectID: subjectID,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
