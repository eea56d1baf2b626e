package storage_test

import (
	"testing"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

func sampleEndpoints() []endpoint.Endpoint {
	custom := endpoint.Settings{SkipTLSVerification: true}
	return []endpoint.Endpoint{
		{
			ID:              "11111111-1111-1111-1111-111111111111",
			Name:            "api",
			URL:             "https://api.example.com",
			Settings:        endpoint.DefaultSettings(),
			LastKnownStatus: "503",
			History: []endpoint.StatusRecord{
				{Timestamp: base, StatusCode: null.IntFrom(200), Description: "200", Latency: null.IntFrom(int64(42 * time.Millisecond))},
				{Timestamp: base.Add(time.Minute), StatusCode: null.IntFrom(503), Description: "503", Latency: null.IntFrom(int64(7 * time.Millisecond)), Critical: true},
			},
		},
		{
			ID:              "22222222-2222-2222-2222-222222222222",
			Name:            "legacy",
			URL:             "https://legacy.example.com",
			Settings:        custom,
			LastKnownStatus: "request timed out",
			History: []endpoint.StatusRecord{
				{Timestamp: base, Description: "request timed out", Critical: true},
			},
		},
		{
			ID:              "33333333-3333-3333-3333-333333333333",
			Name:            "new",
			URL:             "https://new.example.com",
			Settings:        endpoint.DefaultSettings(),
			LastKnownStatus: endpoint.PendingStatus,
		},
	}
}

func assertSameEndpoints(t *testing.T, want, got []endpoint.Endpoint) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d endpoints, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.ID != g.ID || w.Name != g.Name || w.URL != g.URL || w.LastKnownStatus != g.LastKnownStatus {
			t.Errorf("endpoint %d: expected %+v, got %+v", i, w, g)
		}
		if w.Settings != g.Settings {
			t.Errorf("endpoint %d settings: expected %+v, got %+v", i, w.Settings, g.Settings)
		}
		if len(w.History) != len(g.History) {
			t.Errorf("endpoint %d: expected %d records, got %d", i, len(w.History), len(g.History))
			continue
		}
		for j := range w.History {
			wr, gr := w.History[j], g.History[j]
			if !wr.Timestamp.Equal(gr.Timestamp) {
				t.Errorf("endpoint %d record %d: timestamp %v != %v", i, j, wr.Timestamp, gr.Timestamp)
			}
			if wr.StatusCode != gr.StatusCode || wr.Latency != gr.Latency ||
				wr.Description != gr.Description || wr.Critical != gr.Critical {
				t.Errorf("endpoint %d record %d: expected %+v, got %+v", i, j, wr, gr)
			}
		}
	}
}
