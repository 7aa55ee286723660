// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/holomush/authd/internal/auth"
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "auth_token"

// CookieTransport attaches session tokens to responses and reads them back
// from requests.
type CookieTransport struct {
	name   string
	secure bool
}

// NewCookieTransport creates a transport for the named cookie. secure sets
// the Secure attribute and should be true in production.
func NewCookieTransport(name string, secure bool) *CookieTransport {
	if name == "" {
		name = DefaultCookieName
	}
	return &CookieTransport{name: name, secure: secure}
}

// Name returns the cookie name.
func (c *CookieTransport) Name() string {
	return c.name
}

// Attach sets the session cookie for token. The cookie lives exactly as long
// as the token. A cookie of the same name already queued on w is replaced.
func (c *CookieTransport) Attach(w http.ResponseWriter, token *auth.SessionToken) {
	c.set(w, &http.Cookie{
		Name:     c.name,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		MaxAge:   int(token.TTL() / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func (c *CookieTransport) Clear(w http.ResponseWriter) {
	c.set(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session token carried by r: the cookie when present,
// otherwise an "Authorization: Bearer" header. Returns "" when neither is set.
func (c *CookieTransport) Read(r *http.Request) string {
	if cookie, err := r.Cookie(c.name); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

func (c *CookieTransport) set(w http.ResponseWriter, cookie *http.Cookie) {
	prefix := c.name + "="
	queued := w.Header().Values("Set-Cookie")
	kept := queued[:0:0]
	for _, v := range queued {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	w.Header().Del("Set-Cookie")
	for _, v := range kept {
		w.Header().Add("Set-Cookie", v)
	}
	http.SetCookie(w, cookie)
}
