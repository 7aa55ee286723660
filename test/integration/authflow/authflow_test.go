// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package authflow_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authd/internal/web"
)

var emailSeq atomic.Int64

// uniqueEmail returns an address not yet registered in this suite.
func uniqueEmail() string {
	return fmt.Sprintf("user%d@example.com", emailSeq.Add(1))
}

// call sends a JSON request and decodes the response body into out when
// out is non-nil.
func call(method, path string, body any, cookie *http.Cookie, out any) *http.Response {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(env.ctx, method, env.baseURL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}
	return resp
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == web.DefaultCookieName {
			return c
		}
	}
	return nil
}

func register(email, password string) (*http.Response, web.RegisterResponse) {
	var out web.RegisterResponse
	resp := call(http.MethodPost, web.RouteRegister, map[string]string{
		"firstName": "Grace",
		"lastName":  "Hopper",
		"email":     email,
		"password":  password,
	}, nil, &out)
	return resp, out
}

var _ = Describe("Auth flow against PostgreSQL", func() {
	Describe("registration", func() {
		It("stores the user and issues a session cookie", func() {
			resp, out := register(uniqueEmail(), "compiler")

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(out.Message).To(Equal("User created successfully"))
			Expect(out.UserID).NotTo(BeEmpty())

			cookie := sessionCookie(resp)
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.HttpOnly).To(BeTrue())
			Expect(cookie.Value).NotTo(BeEmpty())
		})

		It("rejects a second registration for the same email in any case", func() {
			email := uniqueEmail()
			resp, _ := register(email, "compiler")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out web.MessageResponse
			resp = call(http.MethodPost, web.RouteRegister, map[string]string{
				"firstName": "Grace",
				"lastName":  "Hopper",
				"email":     strings.ToUpper(email),
				"password":  "compiler",
			}, nil, &out)

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(out.Message).To(Equal("User already exists"))
		})
	})

	Describe("login", func() {
		var email string

		BeforeEach(func() {
			email = uniqueEmail()
			resp, _ := register(email, "compiler")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("returns the same subject as registration", func() {
			var me web.ProfileResponse
			var out web.LoginResponse
			resp := call(http.MethodPost, web.RouteLogin, map[string]string{"email": email, "password": "compiler"}, nil, &out)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(out.Token).NotTo(BeEmpty())

			resp = call(http.MethodGet, web.RouteMe, nil, sessionCookie(resp), &me)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(me.ID).To(Equal(out.UserID))
			Expect(me.Email).To(Equal(email))
			Expect(me.FirstName).To(Equal("Grace"))
		})

		It("answers a wrong password and an unknown email identically", func() {
			var wrong, unknown web.MessageResponse
			wrongResp := call(http.MethodPost, web.RouteLogin, map[string]string{"email": email, "password": "wrong-password"}, nil, &wrong)
			unknownResp := call(http.MethodPost, web.RouteLogin, map[string]string{"email": uniqueEmail(), "password": "wrong-password"}, nil, &unknown)

			Expect(wrongResp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(unknownResp.StatusCode).To(Equal(wrongResp.StatusCode))
			Expect(unknown).To(Equal(wrong))
			Expect(sessionCookie(wrongResp)).To(BeNil())
		})
	})

	Describe("sessions", func() {
		It("validates, expires and clears the session cookie", func() {
			resp, out := register(uniqueEmail(), "compiler")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			cookie := sessionCookie(resp)

			var session web.SessionResponse
			resp = call(http.MethodGet, web.RouteValidateToken, nil, cookie, &session)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(session.UserID).To(Equal(out.UserID))

			resp = call(http.MethodPost, web.RouteLogout, nil, cookie, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			cleared := sessionCookie(resp)
			Expect(cleared).NotTo(BeNil())
			Expect(cleared.Value).To(BeEmpty())

			env.clock.Advance(72*time.Hour + time.Second)
			DeferCleanup(func() { env.clock.Advance(-(72*time.Hour + time.Second)) })

			resp = call(http.MethodGet, web.RouteValidateToken, nil, cookie, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})
})
