// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Auth operation outcomes.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeAlreadyExists      = "already_exists"
	OutcomeInvalidRequest     = "invalid_request"
	OutcomeError              = "error"
)

// Metrics contains the Prometheus metrics for authd.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AuthRequestsTotal       *prometheus.CounterVec
	SessionValidationsTotal *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers the authd metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_auth_requests_total",
				Help: "Total number of login and registration attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		SessionValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_session_validations_total",
				Help: "Total number of session token checks by result",
			},
			[]string{"result"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authd_http_request_duration_seconds",
				Help:    "HTTP request latency by route, method and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
	}

	reg.MustRegister(m.AuthRequestsTotal)
	reg.MustRegister(m.SessionValidationsTotal)
	reg.MustRegister(m.HTTPRequestDuration)

	return m
}

// RecordAuth counts one login or registration attempt.
func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordSessionValidation counts one session token check.
func (m *Metrics) RecordSessionValidation(result string) {
	if m == nil {
		return
	}
	m.SessionValidationsTotal.WithLabelValues(result).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
