// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/memory"
)

func mustCredential(t *testing.T, email string) *auth.Credential {
	t.Helper()
	cred, err := auth.NewCredential(email, "$argon2id$hash", auth.Profile{FirstName: "Ada"})
	require.NoError(t, err)
	return cred
}

func TestCredentialRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepository()
	cred := mustCredential(t, "a@x.com")

	require.NoError(t, repo.Create(ctx, cred))

	byEmail, err := repo.GetByEmail(ctx, "A@X.COM")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.FirstName)

	// Returned values are copies.
	byID.PasswordHash = "tampered"
	again, err := repo.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$hash", again.PasswordHash)
}

func TestCredentialRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepository()
	require.NoError(t, repo.Create(ctx, mustCredential(t, "a@x.com")))

	err := repo.Create(ctx, mustCredential(t, "A@x.com"))
	require.ErrorIs(t, err, auth.ErrAlreadyExists)
}

func TestCredentialRepository_Missing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepository()
	id := ulid.Make()

	_, err := repo.GetByID(ctx, id)
	require.ErrorIs(t, err, auth.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	require.ErrorIs(t, err, auth.ErrNotFound)
	require.ErrorIs(t, repo.UpdatePassword(ctx, id, "h"), auth.ErrNotFound)
	require.ErrorIs(t, repo.RecordLogin(ctx, id, time.Now()), auth.ErrNotFound)
}

func TestCredentialRepository_Updates(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepository()
	cred := mustCredential(t, "a@x.com")
	require.NoError(t, repo.Create(ctx, cred))

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdatePassword(ctx, cred.ID, "$argon2id$new"))
	require.NoError(t, repo.RecordLogin(ctx, cred.ID, at))

	stored, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$new", stored.PasswordHash)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, at, *stored.LastLoginAt)
	require.NoError(t, repo.Ping(ctx))
}

func TestCredentialRepository_ConcurrentCreateSameEmail(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepository()

	const workers = 32
	var created atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := auth.NewCredential("race@x.com", "$argon2id$hash", auth.Profile{})
			if err != nil {
				return
			}
			if repo.Create(ctx, cred) == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}
