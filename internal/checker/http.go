package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/version"
)

// maxDrain caps how much of a response body is read before closing it.
const maxDrain = 64 << 10

type httpChecker struct {
	target string
	client *http.Client
}

func newHTTPChecker(ep endpoint.Endpoint, timeout time.Duration) *httpChecker {
	// Each probe gets its own transport so that skipping TLS verification
	// never leaks into another endpoint's connections.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true
	if ep.Settings.SkipTLSVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per endpoint
	}
	return &httpChecker{
		target: ep.URL,
		client: &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (c *httpChecker) Check(ctx context.Context) Outcome {
	if !validTarget(c.target) {
		return Outcome{Description: InvalidURL}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target, nil)
	if err != nil {
		return Outcome{Description: InvalidURL}
	}
	req.Header.Set("User-Agent", "everwatch/"+version.Version)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Outcome{Description: describeError(err)}
	}
	elapsed := time.Since(start)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	resp.Body.Close()

	return Outcome{
		StatusCode:  null.IntFrom(int64(resp.StatusCode)),
		Description: strconv.Itoa(resp.StatusCode),
		Latency:     null.IntFrom(int64(elapsed)),
	}
}

func validTarget(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// describeError turns a client error into a short human-readable message.
func describeError(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return "request timed out"
		}
		err = uerr.Err
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}
