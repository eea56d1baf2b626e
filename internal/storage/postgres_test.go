package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/hazz-dev/everwatch/internal/storage"
)

func TestPostgres_RoundTrip(t *testing.T) {
	url := os.Getenv("EVERWATCH_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("EVERWATCH_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	gw, err := storage.OpenPostgres(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer gw.Close()

	want := sampleEndpoints()
	if err := gw.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	res := gw.Load(ctx)
	if res.State != storage.LoadOK {
		t.Fatalf("expected LoadOK, got %v: %v", res.State, res.Err)
	}
	assertSameEndpoints(t, want, res.Endpoints)

	if err := gw.Save(ctx, want[:1]); err != nil {
		t.Fatal(err)
	}
	res = gw.Load(ctx)
	assertSameEndpoints(t, want[:1], res.Endpoints)
}
