package eventstore

import (
	"testing"
	"time"
)

func TestStoreAppendAndRecent(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()

	records := []BuildRecord{
		{ID: "b1", Domain: "asset", Status: "success", Duration: 120 * time.Millisecond, FinishedAt: time.Now().Add(-2 * time.Minute)},
		{ID: "b2", Domain: "content", Status: "failure", Error: "boom", Duration: 40 * time.Millisecond, FinishedAt: time.Now().Add(-time.Minute)},
		{ID: "b3", Domain: "asset", Status: "success", Duration: 95 * time.Millisecond, FinishedAt: time.Now()},
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("failed to append record: %v", err)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("failed to query recent builds: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}

	// Newest first.
	if got[0].ID != "b3" {
		t.Errorf("expected newest record b3 first, got %s", got[0].ID)
	}
	if got[1].ID != "b2" || got[1].Error != "boom" {
		t.Errorf("expected failed record b2 with error, got %+v", got[1])
	}
	if got[2].Duration != 120*time.Millisecond {
		t.Errorf("expected duration round-trip, got %v", got[2].Duration)
	}
}

func TestStoreRecentLimit(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	for i := 0; i < 10; i++ {
		rec := BuildRecord{ID: "build", Domain: "asset", Status: "success", FinishedAt: time.Now()}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	got, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected limit of 3, got %d", len(got))
	}
}

func TestStorePrune(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	old := BuildRecord{ID: "old", Domain: "asset", Status: "success", FinishedAt: time.Now().Add(-48 * time.Hour)}
	fresh := BuildRecord{ID: "fresh", Domain: "asset", Status: "success", FinishedAt: time.Now()}
	if err := store.Append(ctx, old); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := store.Append(ctx, fresh); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	n, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned record, got %d", n)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("expected only fresh record to remain, got %+v", got)
	}
}

func TestStorePersistsToFile(t *testing.T) {
	path := t.TempDir() + "/history/builds.db"

	store, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ctx := t.Context()
	if err := store.Append(ctx, BuildRecord{ID: "b1", Domain: "content", Status: "success", FinishedAt: time.Now()}); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Errorf("expected persisted record, got %+v", got)
	}
}
