// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/mocks"
	"github.com/holomush/authd/pkg/errutil"
)

func newTestIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(testSecret, auth.DefaultTokenTTL)
	require.NoError(t, err)
	return issuer
}

func TestNewService_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		credentials auth.CredentialRepository
		hasher      auth.PasswordHasher
		issuer      *auth.TokenIssuer
		expectError string
	}{
		{
			name:        "nil credentials repository",
			credentials: nil,
			hasher:      mocks.NewMockPasswordHasher(t),
			issuer:      newTestIssuer(t),
			expectError: "credentials repository is required",
		},
		{
			name:        "nil password hasher",
			credentials: mocks.NewMockCredentialRepository(t),
			hasher:      nil,
			issuer:      newTestIssuer(t),
			expectError: "password hasher is required",
		},
		{
			name:        "nil token issuer",
			credentials: mocks.NewMockCredentialRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			issuer:      nil,
			expectError: "token issuer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.credentials, tt.hasher, tt.issuer)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewServiceWithLogger_NilLogger(t *testing.T) {
	svc, err := auth.NewServiceWithLogger(
		mocks.NewMockCredentialRepository(t),
		mocks.NewMockPasswordHasher(t),
		newTestIssuer(t),
		nil,
	)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "logger")
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	existing := func() *auth.Credential {
		return &auth.Credential{
			ID:           ulid.Make(),
			Email:        "a@x.com",
			PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$salt$hash",
		}
	}

	t.Run("successful login issues token for the credential", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		cred := existing()
		repo.On("GetByEmail", ctx, "a@x.com").Return(cred, nil)
		hasher.On("Verify", "abcdef", cred.PasswordHash).Return(true, nil)
		hasher.On("NeedsUpgrade", cred.PasswordHash).Return(false)
		repo.On("RecordLogin", ctx, cred.ID, mock.AnythingOfType("time.Time")).Return(nil)

		got, token, err := svc.Login(ctx, "a@x.com", "abcdef")
		require.NoError(t, err)
		assert.Equal(t, cred.ID, got.ID)
		assert.Equal(t, cred.ID, token.SubjectID)
		assert.NotEmpty(t, token.Value)
		require.NotNil(t, got.LastLoginAt)
	})

	t.Run("email is normalized before lookup", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		cred := existing()
		repo.On("GetByEmail", ctx, "a@x.com").Return(cred, nil)
		hasher.On("Verify", "abcdef", cred.PasswordHash).Return(true, nil)
		hasher.On("NeedsUpgrade", cred.PasswordHash).Return(false)
		repo.On("RecordLogin", ctx, cred.ID, mock.AnythingOfType("time.Time")).Return(nil)

		_, _, err = svc.Login(ctx, "  A@X.com ", "abcdef")
		require.NoError(t, err)
	})

	t.Run("unknown email still verifies against a dummy hash", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		repo.On("GetByEmail", ctx, "nobody@x.com").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", "abcdef", mock.AnythingOfType("string")).Return(false, nil)

		got, token, err := svc.Login(ctx, "nobody@x.com", "abcdef")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.Nil(t, token)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("wrong password returns the same error as unknown email", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		cred := existing()
		repo.On("GetByEmail", ctx, "a@x.com").Return(cred, nil)
		repo.On("GetByEmail", ctx, "nobody@x.com").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", "wrong1", mock.AnythingOfType("string")).Return(false, nil)

		_, _, wrongPassword := svc.Login(ctx, "a@x.com", "wrong1")
		_, _, unknownEmail := svc.Login(ctx, "nobody@x.com", "wrong1")

		require.Error(t, wrongPassword)
		require.Error(t, unknownEmail)
		assert.Equal(t, unknownEmail.Error(), wrongPassword.Error())
		assert.ErrorIs(t, wrongPassword, auth.ErrInvalidCredentials)
		repo.AssertNotCalled(t, "RecordLogin", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("dummy hash verification error is reported as invalid credentials", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		repo.On("GetByEmail", ctx, "nobody@x.com").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", "abcdef", mock.AnythingOfType("string")).Return(false, errors.New("bad hash"))

		_, _, err = svc.Login(ctx, "nobody@x.com", "abcdef")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("corrupt stored hash is an internal failure", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		cred := existing()
		repo.On("GetByEmail", ctx, "a@x.com").Return(cred, nil)
		hasher.On("Verify", "abcdef", cred.PasswordHash).Return(false, errors.New("invalid hash format"))

		_, _, err = svc.Login(ctx, "a@x.com", "abcdef")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "verify password")
	})

	t.Run("store failure on lookup", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		repo.On("GetByEmail", ctx, "a@x.com").Return(nil, errors.New("connection refused"))

		_, _, err = svc.Login(ctx, "a@x.com", "abcdef")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "get credential by email")
		hasher.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("legacy hash is upgraded after successful login", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		cred := existing()
		cred.PasswordHash = "$2a$10$legacy"
		repo.On("GetByEmail", ctx, "a@x.com").Return(cred, nil)
		hasher.On("Verify", "abcdef", "$2a$10$legacy").Return(true, nil)
		hasher.On("NeedsUpgrade", "$2a$10$legacy").Return(true)
		hasher.On("Hash", "abcdef").Return("$argon2id$upgraded", nil)
		repo.On("UpdatePassword", ctx, cred.ID, "$argon2id$upgraded").Return(nil)
		repo.On("RecordLogin", ctx, cred.ID, mock.AnythingOfType("time.Time")).Return(nil)

		got, _, err := svc.Login(ctx, "a@x.com", "abcdef")
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$upgraded", got.PasswordHash)
	})

	t.Run("upgrade failure does not fail login", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		cred := existing()
		repo.On("GetByEmail", ctx, "a@x.com").Return(cred, nil)
		hasher.On("Verify", "abcdef", cred.PasswordHash).Return(true, nil)
		hasher.On("NeedsUpgrade", cred.PasswordHash).Return(true)
		hasher.On("Hash", "abcdef").Return("$argon2id$upgraded", nil)
		repo.On("UpdatePassword", ctx, cred.ID, "$argon2id$upgraded").Return(errors.New("write failed"))
		repo.On("RecordLogin", ctx, cred.ID, mock.AnythingOfType("time.Time")).Return(errors.New("write failed"))

		got, token, err := svc.Login(ctx, "a@x.com", "abcdef")
		require.NoError(t, err)
		assert.NotNil(t, token)
		assert.Equal(t, "$argon2id$v=19$m=65536,t=1,p=4$salt$hash", got.PasswordHash)
		assert.Nil(t, got.LastLoginAt)
	})
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("returns credential and token for the same subject", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		repo.On("GetByEmail", ctx, "a@x.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "abcdef").Return("$argon2id$hash", nil)
		repo.On("Create", ctx, mock.AnythingOfType("*auth.Credential")).Return(nil)

		cred, token, err := svc.Register(ctx, auth.RegistrationInput{
			Email:    "a@x.com",
			Password: "abcdef",
			Profile:  auth.Profile{FirstName: "Ada", LastName: "Lovelace"},
		})
		require.NoError(t, err)
		assert.Equal(t, cred.ID, token.SubjectID)
		assert.Equal(t, "Ada", cred.FirstName)
	})

	t.Run("duplicate email issues no token", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(repo, hasher, newTestIssuer(t))
		require.NoError(t, err)

		repo.On("GetByEmail", ctx, "a@x.com").Return(&auth.Credential{ID: ulid.Make(), Email: "a@x.com"}, nil)

		cred, token, err := svc.Register(ctx, auth.RegistrationInput{Email: "a@x.com", Password: "abcdef"})
		require.ErrorIs(t, err, auth.ErrAlreadyExists)
		assert.Nil(t, cred)
		assert.Nil(t, token)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestService_Identity(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored credential", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		svc, err := auth.NewService(repo, mocks.NewMockPasswordHasher(t), newTestIssuer(t))
		require.NoError(t, err)

		cred := &auth.Credential{ID: ulid.Make(), Email: "a@x.com", CreatedAt: time.Now()}
		repo.On("GetByID", ctx, cred.ID).Return(cred, nil)

		got, err := svc.Identity(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, cred, got)
	})

	t.Run("missing subject is not found", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		svc, err := auth.NewService(repo, mocks.NewMockPasswordHasher(t), newTestIssuer(t))
		require.NoError(t, err)

		id := ulid.Make()
		repo.On("GetByID", ctx, id).Return(nil, auth.ErrNotFound)

		_, err = svc.Identity(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "AUTH_IDENTITY_NOT_FOUND")
		errutil.AssertErrorContext(t, err, "subject_id", id.String())
	})

	t.Run("store failure", func(t *testing.T) {
		repo := mocks.NewMockCredentialRepository(t)
		svc, err := auth.NewService(repo, mocks.NewMockPasswordHasher(t), newTestIssuer(t))
		require.NoError(t, err)

		id := ulid.Make()
		repo.On("GetByID", ctx, id).Return(nil, errors.New("connection reset"))

		_, err = svc.Identity(ctx, id)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, auth.CodeStoreFailure)
	})
}

func TestService_Ready(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewMockCredentialRepository(t)
	svc, err := auth.NewService(repo, mocks.NewMockPasswordHasher(t), newTestIssuer(t))
	require.NoError(t, err)

	repo.On("Ping", ctx).Return(nil).Once()
	require.NoError(t, svc.Ready(ctx))

	repo.On("Ping", ctx).Return(errors.New("down")).Once()
	err = svc.Ready(ctx)
	errutil.AssertErrorCode(t, err, auth.CodeStoreFailure)
}
