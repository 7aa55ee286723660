// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/memory"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/internal/web"
)

var testSecret = []byte("web-test-signing-secret-0123456789")

// testClock is a settable clock shared by the issuer and the validator.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv is a fully wired API handler backed by the in-memory store.
type testEnv struct {
	router    http.Handler
	clock     *testClock
	metrics   *observability.Metrics
	validator *auth.SessionValidator
	cookies   *web.CookieTransport
}

type envConfig struct {
	repo    auth.CredentialRepository
	origins []string
	secure  bool
}

type envOption func(*envConfig)

func withRepo(repo auth.CredentialRepository) envOption {
	return func(c *envConfig) { c.repo = repo }
}

func withOrigins(origins ...string) envOption {
	return func(c *envConfig) { c.origins = origins }
}

func withSecureCookies() envOption {
	return func(c *envConfig) { c.secure = true }
}

func buildTestEnv(opts ...envOption) (*testEnv, error) {
	cfg := envConfig{repo: memory.NewCredentialRepository()}
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := newTestClock()
	issuer, err := auth.NewTokenIssuer(testSecret, auth.DefaultTokenTTL, auth.WithClock(clock.Now))
	if err != nil {
		return nil, err
	}
	validator, err := auth.NewSessionValidator(testSecret, auth.WithClock(clock.Now))
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := auth.NewServiceWithLogger(cfg.repo, auth.NewBcryptHasher(bcrypt.MinCost), issuer, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cookies := web.NewCookieTransport(web.DefaultCookieName, cfg.secure)
	handlers, err := web.NewHandlers(svc, validator, cookies, metrics, logger)
	if err != nil {
		return nil, err
	}
	cors, err := web.NewCORS(cfg.origins)
	if err != nil {
		return nil, err
	}

	return &testEnv{
		router:    web.NewRouter(handlers, cors),
		clock:     clock,
		metrics:   metrics,
		validator: validator,
		cookies:   cookies,
	}, nil
}

func newTestEnv(t require.TestingT, opts ...envOption) *testEnv {
	env, err := buildTestEnv(opts...)
	require.NoError(t, err)
	return env
}

type requestOption func(*http.Request)

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// do sends a request to the router. A string body is sent verbatim; any
// other non-nil body is JSON encoded.
func (e *testEnv) do(method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(email, password string) *httptest.ResponseRecorder {
	return e.do(http.MethodPost, web.RouteRegister, registerBody(email, password))
}

func (e *testEnv) login(email, password string) *httptest.ResponseRecorder {
	return e.do(http.MethodPost, web.RouteLogin, map[string]string{"email": email, "password": password})
}

func registerBody(email, password string) map[string]string {
	return map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     email,
		"password":  password,
	}
}

// sessionCookie returns the auth cookie set on rec, or nil.
func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == web.DefaultCookieName {
			return c
		}
	}
	return nil
}

func decodeJSON[T any](t require.TestingT, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
