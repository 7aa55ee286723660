// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides the PostgreSQL credential store.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// poolIface is the subset of pgxpool.Pool used by the repository.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const selectCredential = `
	SELECT id, email, password_hash, first_name, last_name,
	       created_at, updated_at, last_login_at
	FROM credentials
`

// CredentialRepository implements auth.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool poolIface
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(pool poolIface) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// Create stores a new credential.
func (r *CredentialRepository) Create(ctx context.Context, cred *auth.Credential) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO credentials (
			id, email, password_hash, first_name, last_name,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		cred.ID.String(),
		cred.Email,
		cred.PasswordHash,
		cred.FirstName,
		cred.LastName,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("CREDENTIAL_EMAIL_TAKEN").
				With("email", cred.Email).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("email", cred.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a credential by ID.
func (r *CredentialRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Credential, error) {
	row := r.pool.QueryRow(ctx, selectCredential+`WHERE id = $1`, id.String())

	cred, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_BY_ID_FAILED").
			With("operation", "get credential by id").
			With("id", id.String()).
			Wrap(err)
	}
	return cred, nil
}

// GetByEmail retrieves a credential by email (case-insensitive).
func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	row := r.pool.QueryRow(ctx, selectCredential+`WHERE LOWER(email) = LOWER($1)`, email)

	cred, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_BY_EMAIL_FAILED").
			With("operation", "get credential by email").
			With("email", email).
			Wrap(err)
	}
	return cred, nil
}

// UpdatePassword replaces the password hash for a credential.
func (r *CredentialRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE credentials SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// RecordLogin stores the time of the latest successful login.
func (r *CredentialRepository) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE credentials SET last_login_at = $2
		WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("CREDENTIAL_RECORD_LOGIN_FAILED").
			With("operation", "record login").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Ping checks database connectivity.
func (r *CredentialRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return oops.Code("CREDENTIAL_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// scanCredential scans a single row into a Credential.
// Callers are responsible for handling pgx.ErrNoRows.
func scanCredential(row pgx.Row) (*auth.Credential, error) {
	var (
		idStr       string
		cred        auth.Credential
		lastLoginAt *time.Time
	)

	err := row.Scan(
		&idStr,
		&cred.Email,
		&cred.PasswordHash,
		&cred.FirstName,
		&cred.LastName,
		&cred.CreatedAt,
		&cred.UpdatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers classify pgx.ErrNoRows
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse credential id").With("id", idStr).Wrap(err)
	}
	cred.ID = id
	cred.LastLoginAt = lastLoginAt
	return &cred, nil
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
