package persistence

import (
	"context"
	"testing"
)

func TestPruneSnapshotsRemovesUnconfigured(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSnapshotRepo(db)

	for _, id := range []string{"alpha", "beta", "gamma"} {
		if err := repo.Replace(ctx, id, telemetrySnapshot("192.168.0.7")); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	pruned, err := PruneSnapshots(ctx, db, []string{"alpha", "gamma"})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ConnectionID != "alpha" || records[1].ConnectionID != "gamma" {
		t.Fatalf("unexpected survivors: %q, %q", records[0].ConnectionID, records[1].ConnectionID)
	}
}

func TestPruneSnapshotsEmptyConfigClearsAll(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSnapshotRepo(db)

	if err := repo.Replace(ctx, "lonely", telemetrySnapshot("10.0.0.2")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pruned, err := PruneSnapshots(ctx, db, nil)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty cache, got %d records", len(records))
	}
}

func TestPruneSnapshotsKeepsConfiguredIntact(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSnapshotRepo(db)

	if err := repo.Replace(ctx, "keeper", telemetrySnapshot("10.0.0.3")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pruned, err := PruneSnapshots(ctx, db, []string{"keeper"})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 0 {
		t.Fatalf("pruned = %d, want 0", pruned)
	}

	if _, err := repo.Get(ctx, "keeper"); err != nil {
		t.Fatalf("configured row should survive: %v", err)
	}
}
