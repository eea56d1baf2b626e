package storage_test

import (
	"errors"
	"testing"

	"github.com/hazz-dev/everwatch/internal/storage"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	want := sampleEndpoints()
	data, err := storage.Encode(want)
	if err != nil {
		t.Fatal(err)
	}
	res := storage.Decode(data)
	if res.State != storage.LoadOK {
		t.Fatalf("expected LoadOK, got %v: %v", res.State, res.Err)
	}
	assertSameEndpoints(t, want, res.Endpoints)
}

func TestSnapshot_Decode(t *testing.T) {
	tests := []struct {
		name string
		data string
		want storage.LoadState
	}{
		{"empty input", "", storage.LoadEmpty},
		{"garbage", "{not json", storage.LoadCorrupt},
		{"wrong version", `{"version":99,"endpoints":[]}`, storage.LoadCorrupt},
		{"missing id", `{"version":1,"endpoints":[{"name":"x","url":"https://x"}]}`, storage.LoadCorrupt},
		{"duplicate id", `{"version":1,"endpoints":[{"id":"a"},{"id":"a"}]}`, storage.LoadCorrupt},
		{"backwards history", `{"version":1,"endpoints":[{"id":"a","history":[
			{"timestamp":"2026-03-01T12:00:00Z","description":"200"},
			{"timestamp":"2026-03-01T11:00:00Z","description":"200"}]}]}`, storage.LoadCorrupt},
		{"no endpoints", `{"version":1,"endpoints":[]}`, storage.LoadOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := storage.Decode([]byte(tt.data))
			if res.State != tt.want {
				t.Fatalf("expected %v, got %v (%v)", tt.want, res.State, res.Err)
			}
			if tt.want == storage.LoadCorrupt && !errors.Is(res.Err, storage.ErrCorrupt) {
				t.Errorf("expected ErrCorrupt, got %v", res.Err)
			}
			if tt.want != storage.LoadOK && res.Endpoints != nil {
				t.Errorf("expected no endpoints for %v", res.State)
			}
		})
	}
}

func TestLoadState_String(t *testing.T) {
	for state, want := range map[storage.LoadState]string{
		storage.LoadOK:          "ok",
		storage.LoadEmpty:       "empty",
		storage.LoadCorrupt:     "corrupt",
		storage.LoadUnavailable: "unavailable",
	} {
		if got := state.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
