// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mongo provides a MongoDB credential store for deployments that
// keep user records in a document database.
package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/holomush/authd/internal/auth"
)

// DefaultCollection is the collection credentials are stored in.
const DefaultCollection = "users"

// credentialDoc is the stored form of a credential.
type credentialDoc struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"password"`
	FirstName    string     `bson:"firstName"`
	LastName     string     `bson:"lastName"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
	LastLoginAt  *time.Time `bson:"lastLoginAt,omitempty"`
}

// CredentialRepository implements auth.CredentialRepository on a MongoDB
// collection. Emails are stored lowercased, so a unique index on the field
// is enough to enforce one credential per email.
type CredentialRepository struct {
	coll *mongo.Collection
}

// NewCredentialRepository creates a repository over db.collection.
// An empty collection name selects DefaultCollection.
func NewCredentialRepository(db *mongo.Database, collection string) *CredentialRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &CredentialRepository{coll: db.Collection(collection)}
}

// Startup ping retry budget.
const (
	connectRetries   = 5
	connectBaseDelay = 500 * time.Millisecond
)

// Connect opens a client for uri and pings the primary until it answers
// or the retries run out.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.Code("MONGO_CONNECT_FAILED").With("operation", "connect").Wrap(err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(connectRetries, retry.NewExponential(connectBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := client.Ping(ctx, readpref.Primary()); pingErr != nil {
			slog.WarnContext(ctx, "mongo not ready", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("MONGO_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}
	return client, nil
}

// EnsureIndexes creates the unique email index if it does not exist.
func (r *CredentialRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return oops.Code("CREDENTIAL_INDEX_FAILED").With("operation", "create email index").Wrap(err)
	}
	return nil
}

// Create stores a new credential.
func (r *CredentialRepository) Create(ctx context.Context, cred *auth.Credential) error {
	doc := credentialDoc{
		ID:           cred.ID.String(),
		Email:        auth.NormalizeEmail(cred.Email),
		PasswordHash: cred.PasswordHash,
		FirstName:    cred.FirstName,
		LastName:     cred.LastName,
		CreatedAt:    cred.CreatedAt,
		UpdatedAt:    cred.UpdatedAt,
		LastLoginAt:  cred.LastLoginAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return oops.Code("CREDENTIAL_EMAIL_TAKEN").
				With("email", doc.Email).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("email", doc.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a credential by ID.
func (r *CredentialRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Credential, error) {
	cred, err := r.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if errors.Is(err, mongo.ErrNoDocuments) {
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
	email = auth.NormalizeEmail(email)
	cred, err := r.findOne(ctx, bson.D{{Key: "email", Value: email}})
	if errors.Is(err, mongo.ErrNoDocuments) {
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
	return r.updateOne(ctx, id, "update password", "CREDENTIAL_UPDATE_PASSWORD_FAILED", bson.D{
		{Key: "password", Value: passwordHash},
		{Key: "updatedAt", Value: time.Now().UTC()},
	})
}

// RecordLogin stores the time of the latest successful login.
func (r *CredentialRepository) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.updateOne(ctx, id, "record login", "CREDENTIAL_RECORD_LOGIN_FAILED", bson.D{
		{Key: "lastLoginAt", Value: at},
	})
}

// Ping checks that the primary is reachable.
func (r *CredentialRepository) Ping(ctx context.Context) error {
	if err := r.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return oops.Code("CREDENTIAL_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

func (r *CredentialRepository) findOne(ctx context.Context, filter bson.D) (*auth.Credential, error) {
	var doc credentialDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, err //nolint:wrapcheck // callers classify mongo.ErrNoDocuments
	}

	id, err := ulid.Parse(doc.ID)
	if err != nil {
		return nil, oops.With("operation", "parse credential id").With("id", doc.ID).Wrap(err)
	}
	return &auth.Credential{
		ID:           id,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		FirstName:    doc.FirstName,
		LastName:     doc.LastName,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
		LastLoginAt:  doc.LastLoginAt,
	}, nil
}

func (r *CredentialRepository) updateOne(ctx context.Context, id ulid.ULID, operation, code string, set bson.D) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return oops.Code(code).
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.MatchedCount == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
