package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func record(id string, at time.Time) mirror.LedgerRecord {
	return mirror.LedgerRecord{
		Candidate: mirror.Candidate{
			SourceID:  id,
			Title:     "Title " + id,
			Permalink: "https://www.reddit.com/r/test/comments/" + id + "/",
			LinkURL:   "https://example.com/" + id,
			Adult:     true,
		},
		MirroredAt: at,
	}
}

func TestLedgerInsertAndContains(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "ledger.db"))
	ledger := NewSQLiteMirrorRepository(db).Ledger("golang")

	exists, err := ledger.Contains(ctx, "t3_aaa")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("Expected empty ledger")
	}

	if err := ledger.Insert(ctx, record("t3_aaa", time.Now())); err != nil {
		t.Fatal(err)
	}

	exists, err = ledger.Contains(ctx, "t3_aaa")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("Expected t3_aaa after insert")
	}
}

func TestLedgerDuplicateInsertIsNoop(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "ledger.db"))
	repo := NewSQLiteMirrorRepository(db)
	ledger := repo.Ledger("golang")

	first := record("t3_aaa", time.Unix(1700000000, 0))
	if err := ledger.Insert(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := record("t3_aaa", time.Unix(1800000000, 0))
	second.Title = "changed"
	if err := ledger.Insert(ctx, second); err != nil {
		t.Fatalf("Duplicate insert should not fail: %v", err)
	}

	count, err := repo.GetMirroredCount(ctx, "golang")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 record, got %d", count)
	}

	items, err := repo.GetRecentItems(ctx, "golang", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Title t3_aaa" {
		t.Errorf("Expected original record kept, got %+v", items)
	}
}

func TestLedgerSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewSQLiteMirrorRepository(db).Ledger("golang").Insert(ctx, record("t3_aaa", time.Now())); err != nil {
		t.Fatal(err)
	}
	db.Close()

	reopened := openTestDB(t, path)
	exists, err := NewSQLiteMirrorRepository(reopened).Ledger("golang").Contains(ctx, "t3_aaa")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("Expected record to persist across reopen")
	}
}

func TestLedgerScopedByJob(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "ledger.db"))
	repo := NewSQLiteMirrorRepository(db)

	if err := repo.Ledger("golang").Insert(ctx, record("t3_aaa", time.Now())); err != nil {
		t.Fatal(err)
	}

	exists, err := repo.Ledger("rust").Contains(ctx, "t3_aaa")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("Records must not leak between jobs")
	}
}

func TestGetRecentItemsOrderAndFields(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "ledger.db"))
	repo := NewSQLiteMirrorRepository(db)
	ledger := repo.Ledger("golang")

	base := time.Unix(1700000000, 0).UTC()
	for i, id := range []string{"t3_old", "t3_mid", "t3_new"} {
		if err := ledger.Insert(ctx, record(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	items, err := repo.GetRecentItems(ctx, "golang", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].SourceID != "t3_new" || items[1].SourceID != "t3_mid" {
		t.Errorf("Expected newest first, got %s, %s", items[0].SourceID, items[1].SourceID)
	}
	if !items[0].Adult || items[0].LinkURL != "https://example.com/t3_new" {
		t.Errorf("Fields not round-tripped: %+v", items[0])
	}
	if !items[0].MirroredAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("Unexpected mirrored_at %v", items[0].MirroredAt)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := openTestDB(t, filepath.Join(dir, "ledger.db"))
	if err := NewSQLiteMirrorRepository(db).Ledger("golang").Insert(ctx, record("t3_aaa", time.Now())); err != nil {
		t.Fatal(err)
	}

	snapshotPath := filepath.Join(dir, "snapshot.db")
	if err := db.Snapshot(ctx, snapshotPath); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(snapshotPath); err != nil {
		t.Fatalf("Expected snapshot file: %v", err)
	}

	copyDB := openTestDB(t, snapshotPath)
	exists, err := NewSQLiteMirrorRepository(copyDB).Ledger("golang").Contains(ctx, "t3_aaa")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("Expected snapshot to contain the record")
	}
}
