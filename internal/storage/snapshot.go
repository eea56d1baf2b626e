package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// snapshotVersion is bumped on incompatible changes to the blob layout.
const snapshotVersion = 1

type snapshot struct {
	Version   int                 `json:"version"`
	SavedAt   time.Time           `json:"saved_at"`
	Endpoints []endpoint.Endpoint `json:"endpoints"`
}

// Encode serializes eps as a versioned JSON snapshot.
func Encode(eps []endpoint.Endpoint) ([]byte, error) {
	if eps == nil {
		eps = []endpoint.Endpoint{}
	}
	data, err := json.Marshal(snapshot{
		Version:   snapshotVersion,
		SavedAt:   time.Now().UTC(),
		Endpoints: eps,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot produced by Encode. Empty input is LoadEmpty.
func Decode(data []byte) LoadResult {
	if len(data) == 0 {
		return empty()
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return corrupt(err)
	}
	if s.Version != snapshotVersion {
		return corrupt(fmt.Errorf("unsupported snapshot version %d", s.Version))
	}
	if err := validate(s.Endpoints); err != nil {
		return corrupt(err)
	}
	if s.Endpoints == nil {
		s.Endpoints = []endpoint.Endpoint{}
	}
	return loaded(s.Endpoints)
}
