// Package checker runs a single HTTP(S) health probe against an endpoint.
package checker

import (
	"context"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// InvalidURL is the description of a probe whose URL could not be requested.
const InvalidURL = "Invalid URL"

// DefaultTimeout bounds a probe when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Checker performs a single health check.
type Checker interface {
	Check(ctx context.Context) Outcome
}

// Outcome is the result of one probe. StatusCode and Latency are absent when
// no HTTP exchange completed.
type Outcome struct {
	StatusCode  null.Int
	Description string
	Latency     null.Int
}

// LatencyDuration returns the probe latency, if one was measured.
func (o Outcome) LatencyDuration() (time.Duration, bool) {
	if !o.Latency.Valid {
		return 0, false
	}
	return time.Duration(o.Latency.Int64), true
}

// New returns the Checker for the given endpoint. A zero timeout selects
// DefaultTimeout.
func New(ep endpoint.Endpoint, timeout time.Duration) Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return newHTTPChecker(ep, timeout)
}
