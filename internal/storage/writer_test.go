package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/metrics"
	"github.com/hazz-dev/everwatch/internal/storage"
)

type failingGateway struct {
	storage.Gateway
}

func (failingGateway) Save(context.Context, []endpoint.Endpoint) error {
	return errors.New("disk full")
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	gw, err := storage.Open(ctx, storage.Config{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	gw.Close()

	gw, err = storage.Open(ctx, storage.Config{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	gw.Close()

	if _, err := storage.Open(ctx, storage.Config{Driver: "floppy"}); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := storage.Open(ctx, storage.Config{Driver: "redis"}); err == nil {
		t.Error("expected error for redis without address")
	}
	if _, err := storage.Open(ctx, storage.Config{Driver: "postgres"}); err == nil {
		t.Error("expected error for postgres without url")
	}
}

func TestWriter_PersistsCurrentRegistry(t *testing.T) {
	ctx := context.Background()
	reg := endpoint.NewRegistry(0)
	if err := reg.Restore(sampleEndpoints()); err != nil {
		t.Fatal(err)
	}
	mem := storage.NewMemory()
	w := storage.NewWriter(mem, reg, nil, nil)

	if err := w.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	res := mem.Load(ctx)
	if res.State != storage.LoadOK {
		t.Fatalf("expected LoadOK, got %v: %v", res.State, res.Err)
	}
	assertSameEndpoints(t, sampleEndpoints(), res.Endpoints)
}

func TestWriter_ConcurrentPersistKeepsLatest(t *testing.T) {
	ctx := context.Background()
	reg := endpoint.NewRegistry(0)
	ep, err := reg.Add(endpoint.New("api", "https://api.example.com", endpoint.DefaultSettings()))
	if err != nil {
		t.Fatal(err)
	}
	mem := storage.NewMemory()
	w := storage.NewWriter(mem, reg, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Append(ep.ID, endpoint.StatusRecord{Timestamp: base, Description: "200"}); err != nil {
				t.Error(err)
			}
			if err := w.Persist(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	res := mem.Load(ctx)
	if res.State != storage.LoadOK {
		t.Fatalf("expected LoadOK, got %v: %v", res.State, res.Err)
	}
	if got := len(res.Endpoints[0].History); got != 20 {
		t.Errorf("expected the last write to hold all 20 records, got %d", got)
	}
}

func TestWriter_SaveFailure(t *testing.T) {
	reg := endpoint.NewRegistry(0)
	w := storage.NewWriter(failingGateway{}, reg, metrics.New(), nil)
	if err := w.Persist(context.Background()); err == nil {
		t.Error("expected error from failing gateway")
	}
}
