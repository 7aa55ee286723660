// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type subjectContextKey struct{}

// WithSubject returns a context carrying the authenticated subject.
func WithSubject(ctx context.Context, subjectID ulid.ULID) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subjectID)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (ulid.ULID, bool) {
	id, ok := ctx.Value(subjectContextKey{}).(ulid.ULID)
	return id, ok
}
