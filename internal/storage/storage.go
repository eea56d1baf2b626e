// Package storage persists the full endpoint collection as one snapshot.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// ErrCorrupt marks a stored snapshot that could not be decoded or validated.
var ErrCorrupt = errors.New("corrupt snapshot")

// LoadState tags the outcome of a load.
type LoadState int

const (
	// LoadOK means a snapshot was read and validated.
	LoadOK LoadState = iota
	// LoadEmpty means nothing has been saved yet.
	LoadEmpty
	// LoadCorrupt means a snapshot exists but is unreadable.
	LoadCorrupt
	// LoadUnavailable means the backend could not be reached.
	LoadUnavailable
)

func (s LoadState) String() string {
	switch s {
	case LoadOK:
		return "ok"
	case LoadEmpty:
		return "empty"
	case LoadCorrupt:
		return "corrupt"
	case LoadUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// LoadResult is what a Gateway found. Endpoints is only set for LoadOK; Err
// carries the reason for every other state.
type LoadResult struct {
	Endpoints []endpoint.Endpoint
	State     LoadState
	Err       error
}

func loaded(eps []endpoint.Endpoint) LoadResult {
	return LoadResult{Endpoints: eps, State: LoadOK}
}

func empty() LoadResult {
	return LoadResult{State: LoadEmpty}
}

func corrupt(err error) LoadResult {
	return LoadResult{State: LoadCorrupt, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
}

func unavailable(err error) LoadResult {
	return LoadResult{State: LoadUnavailable, Err: err}
}

// Gateway loads and saves the endpoint snapshot. Save replaces the whole
// stored collection atomically.
type Gateway interface {
	Load(ctx context.Context) LoadResult
	Save(ctx context.Context, eps []endpoint.Endpoint) error
	Close() error
}

// Config selects and configures a Gateway.
type Config struct {
	Driver      string
	Path        string
	RedisAddr   string
	RedisKey    string
	PostgresURL string
}

// Drivers lists the supported storage drivers.
var Drivers = []string{"sqlite", "redis", "postgres", "memory"}

// Open connects the Gateway named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Gateway, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisKey)
	case "postgres":
		return OpenPostgres(ctx, cfg.PostgresURL)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// validate checks the invariants every loaded snapshot must hold.
func validate(eps []endpoint.Endpoint) error {
	seen := make(map[string]bool, len(eps))
	for i, ep := range eps {
		if ep.ID == "" {
			return fmt.Errorf("endpoint %d has no id", i)
		}
		if seen[ep.ID] {
			return fmt.Errorf("duplicate endpoint id %q", ep.ID)
		}
		seen[ep.ID] = true
		for j := 1; j < len(ep.History); j++ {
			if ep.History[j].Timestamp.Before(ep.History[j-1].Timestamp) {
				return fmt.Errorf("endpoint %q: record %d precedes record %d", ep.ID, j, j-1)
			}
		}
	}
	return nil
}
