// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web serves the authd HTTP API: login, registration, session
// checks and logout.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// API routes.
const (
	RouteLogin          = "/api/auth/login"
	RouteValidateToken  = "/api/auth/validate-token"
	RouteLogout         = "/api/auth/logout"
	RouteForgotPassword = "/api/auth/forgot-password"
	RouteRegister       = "/api/users/register"
	RouteMe             = "/api/users/me"
)

// NewRouter builds the API handler: routes behind per-route
// instrumentation, wrapped in the CORS policy.
func NewRouter(h *Handlers, cors *CORS) http.Handler {
	mux := http.NewServeMux()
	handle := func(method, route string, handler http.Handler) {
		mux.Handle(method+" "+route, instrument(route, h.metrics, h.logger, handler))
	}

	handle(http.MethodPost, RouteLogin, http.HandlerFunc(h.Login))
	handle(http.MethodPost, RouteRegister, http.HandlerFunc(h.Register))
	handle(http.MethodGet, RouteValidateToken, h.RequireSession(http.HandlerFunc(h.ValidateToken)))
	handle(http.MethodGet, RouteMe, h.RequireSession(http.HandlerFunc(h.Me)))
	handle(http.MethodPost, RouteLogout, http.HandlerFunc(h.Logout))
	handle(http.MethodPost, RouteForgotPassword, http.HandlerFunc(h.ForgotPassword))

	if cors == nil {
		return mux
	}
	return cors.Wrap(mux)
}

// Server runs the API on a TCP listener.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server. addr is a "host:port" listen address;
// port 0 picks a free port.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start begins serving the API.
// The returned channel receives a serve error if the server fails after
// starting, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server, waiting for in-flight
// requests until ctx is done. Stopping a server that is not running is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
