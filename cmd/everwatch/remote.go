package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// remote edits endpoints through a running serve process, whose registry
// would otherwise overwrite a snapshot saved by this one.
type remote struct {
	base   string
	client *http.Client
}

// apiBase turns a listen address into a loopback base URL.
func apiBase(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// dialRemote returns a client for the server listening on addr, or nil when
// no everwatch server answers there.
func dialRemote(ctx context.Context, addr string) *remote {
	base := apiBase(addr)
	if base == "" {
		return nil
	}
	r := &remote{base: base, client: &http.Client{Timeout: 5 * time.Second}}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/health", nil)
	if err != nil {
		return nil
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&health) != nil || health.Status != "ok" {
		return nil
	}
	return r
}

type remoteEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (r *remote) do(ctx context.Context, method, path string, body interface{}, want int) (json.RawMessage, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent && want == http.StatusNoContent {
		return nil, nil
	}
	var env remoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && resp.StatusCode == want {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", path, endpoint.ErrNotFound)
	}
	if resp.StatusCode != want {
		return nil, fmt.Errorf("%s %s: server returned %d: %s", method, path, resp.StatusCode, env.Error)
	}
	return env.Data, nil
}

func (r *remote) add(ctx context.Context, rawURL string, opts addOptions) (endpoint.Endpoint, error) {
	body := map[string]interface{}{
		"name":                  opts.name,
		"url":                   rawURL,
		"time_sensitive":        opts.timeSensitive,
		"skip_tls_verification": opts.skipTLS,
		"expected_status":       opts.expectedStatus,
	}
	data, err := r.do(ctx, http.MethodPost, "/api/endpoints", body, http.StatusCreated)
	if err != nil {
		return endpoint.Endpoint{}, err
	}
	var ep endpoint.Endpoint
	if err := json.Unmarshal(data, &ep); err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("decoding endpoint: %w", err)
	}
	return ep, nil
}

func (r *remote) remove(ctx context.Context, id string) error {
	_, err := r.do(ctx, http.MethodDelete, "/api/endpoints/"+id, nil, http.StatusNoContent)
	return err
}
