// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/observability"
)

var tracer = otel.Tracer("authd/web")

// Session validation results recorded in metrics.
const (
	resultValid     = "valid"
	resultMissing   = "missing"
	resultMalformed = "malformed"
	resultExpired   = "expired"
)

// RequireSession authenticates the request's session token and stores the
// subject in the request context. Requests without a valid token get 401.
func (h *Handlers) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := h.authenticator.Authenticate(h.cookies.Read(r))
		if err != nil {
			code, result := classifySessionError(err)
			h.metrics.RecordSessionValidation(result)
			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("auth.session", result))
			h.logger.DebugContext(r.Context(), "session rejected",
				"path", r.URL.Path,
				"result", result,
			)
			h.unauthorized(w, r, code)
			return
		}

		h.metrics.RecordSessionValidation(resultValid)
		next.ServeHTTP(w, r.WithContext(auth.WithSubject(r.Context(), subject)))
	})
}

// classifySessionError maps a validator error to its wire code and metric
// result. Unknown errors are treated as malformed tokens.
func classifySessionError(err error) (code, result string) {
	switch {
	case errors.Is(err, auth.ErrTokenMissing):
		return auth.CodeTokenMissing, resultMissing
	case errors.Is(err, auth.ErrTokenExpired):
		return auth.CodeTokenExpired, resultExpired
	default:
		return auth.CodeTokenMalformed, resultMalformed
	}
}

// CORS answers browser preflights and marks responses for allowed origins.
type CORS struct {
	patterns []glob.Glob
}

// NewCORS compiles the allowed-origin patterns, for example
// "http://localhost:*" or "https://*.example.com".
func NewCORS(origins []string) (*CORS, error) {
	patterns := make([]glob.Glob, 0, len(origins))
	for _, origin := range origins {
		g, err := glob.Compile(origin, '.', ':', '/')
		if err != nil {
			return nil, oops.Code("CORS_ORIGIN_INVALID").With("origin", origin).Wrap(err)
		}
		patterns = append(patterns, g)
	}
	return &CORS{patterns: patterns}, nil
}

// Allowed reports whether origin matches a configured pattern.
func (c *CORS) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, g := range c.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// Wrap applies the CORS policy to next. OPTIONS requests are answered
// with 204 and never reach next.
func (c *CORS) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")
		if c.Allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			if c.Allowed(origin) {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// instrument traces and times one route.
func instrument(route string, metrics *observability.Metrics, logger *slog.Logger, next http.Handler) http.Handler {
	spanName := "http " + strings.TrimPrefix(route, "/")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", r.Method),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		metrics.ObserveRequest(route, r.Method, rec.status, elapsed)

		logger.InfoContext(ctx, "request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}
