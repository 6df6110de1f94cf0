package docstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"nexus/api/internal/proposal"
)

func setupTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisSaveAndLoad(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	doc := proposal.Default()
	doc.Title = "Circuit Vietnam"
	doc.ItineraryRows = []proposal.ItineraryRow{
		{Day: "1", Activity: "Hanoï", HotelName: "La Siesta"},
	}
	doc.SectionTitles["included"] = "Ce prix comprend"

	if err := store.Save(ctx, "conv-123", doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "conv-123")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, doc) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, doc)
	}
}

func TestRedisLoadMissing(t *testing.T) {
	store := setupTestRedis(t)

	_, err := store.Load(context.Background(), "conv-unknown")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRedisSaveOverwrites(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	doc := proposal.Default()
	doc.Title = "v1"
	if err := store.Save(ctx, "conv-123", doc); err != nil {
		t.Fatalf("first save: %v", err)
	}
	doc.Title = "v2"
	if err := store.Save(ctx, "conv-123", doc); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := store.Load(ctx, "conv-123")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Title != "v2" {
		t.Fatalf("title = %q, want v2", loaded.Title)
	}
}

func TestRedisNormalizesOnLoad(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	// nil collections marshal as null; Load must hand back empty ones
	doc := &proposal.Document{Title: "partial"}
	if err := store.Save(ctx, "conv-partial", doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx, "conv-partial")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ItineraryRows == nil || loaded.SectionTitles == nil {
		t.Fatal("loaded document has nil collections")
	}
}
