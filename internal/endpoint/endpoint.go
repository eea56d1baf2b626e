// Package endpoint holds the monitored endpoints, their probe history and the
// registry that serializes per-endpoint writes.
package endpoint

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"
)

const (
	// PendingStatus is the status of an endpoint that has not been probed yet.
	PendingStatus = "Checking..."
	// UnknownStatus is used when a probe produced no description.
	UnknownStatus = "Unknown"
	// DefaultExpectedStatus is the status code a new endpoint expects.
	DefaultExpectedStatus = 200
)

// Settings is the per-endpoint configuration owned by the editor.
type Settings struct {
	TimeSensitive       bool     `json:"time_sensitive"`
	SkipTLSVerification bool     `json:"skip_tls_verification"`
	ExpectedStatus      null.Int `json:"expected_status"`
}

// DefaultSettings returns settings expecting a 200 response.
func DefaultSettings() Settings {
	return Settings{
		TimeSensitive:  true,
		ExpectedStatus: null.IntFrom(DefaultExpectedStatus),
	}
}

// Endpoint is one monitored HTTP(S) target.
type Endpoint struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	URL             string         `json:"url"`
	Settings        Settings       `json:"settings"`
	LastKnownStatus string         `json:"last_known_status"`
	History         []StatusRecord `json:"history"`
}

// New creates an endpoint with a fresh identifier and pending status.
func New(name, rawURL string, s Settings) Endpoint {
	return Endpoint{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(name),
		URL:             NormalizeURL(rawURL),
		Settings:        s,
		LastKnownStatus: PendingStatus,
	}
}

// HealthyStatus is the description that counts as "up" for this endpoint.
func (e Endpoint) HealthyStatus() string {
	if e.Settings.ExpectedStatus.Valid {
		return strconv.FormatInt(e.Settings.ExpectedStatus.Int64, 10)
	}
	return strconv.Itoa(DefaultExpectedStatus)
}

// Healthy reports whether the endpoint's current status is its healthy one.
func (e Endpoint) Healthy() bool {
	return e.LastKnownStatus == e.HealthyStatus()
}

// Clone returns a copy that shares no history storage with e.
func (e Endpoint) Clone() Endpoint {
	c := e
	if e.History != nil {
		c.History = make([]StatusRecord, len(e.History))
		copy(c.History, e.History)
	}
	return c
}

// NormalizeURL trims whitespace and assumes https when no scheme is given.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u != "" && !strings.Contains(u, "://") {
		u = "https://" + u
	}
	return u
}

// StatusRecord is one immutable probe outcome.
type StatusRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	StatusCode  null.Int  `json:"status_code"`
	Description string    `json:"description"`
	// Latency is the elapsed probe time in nanoseconds.
	Latency  null.Int `json:"latency_ns"`
	Critical bool     `json:"critical"`
}

// LatencyDuration returns the record's latency, if one was measured.
func (r StatusRecord) LatencyDuration() (time.Duration, bool) {
	if !r.Latency.Valid {
		return 0, false
	}
	return time.Duration(r.Latency.Int64), true
}

// IsCritical classifies an observed status code against the expected one.
// A missing code is always critical; so is any code outside 100-399 or one
// that differs from a declared expectation.
func IsCritical(code, expected null.Int) bool {
	if !code.Valid {
		return true
	}
	if code.Int64 < 100 || code.Int64 > 399 {
		return true
	}
	return expected.Valid && code.Int64 != expected.Int64
}
