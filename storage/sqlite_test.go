package storage

import (
	"path/filepath"
	"testing"
	"time"

	"catalog_tracker/models"
)

func openTestLedger(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := openTestLedger(t)

	run := &models.FetchRun{
		Key:        "run-1",
		StartedAt:  time.Now().Add(-time.Minute),
		Status:     models.RunStatusRunning,
		ItemsTotal: 2,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run.ID = id

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ItemsPersisted = 1
	run.ItemsSkipped = 1
	run.CatalogRows = 1
	run.ReviewRows = 2
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	runs, err := store.GetRecentRuns(5)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != models.RunStatusCompleted || got.ItemsPersisted != 1 || got.ReviewRows != 2 {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatalf("expected finished_at to be set")
	}
}

func TestSQLiteStore_ItemStateUpserts(t *testing.T) {
	store := openTestLedger(t)
	id, err := store.CreateRun(&models.FetchRun{Key: "run-2", StartedAt: time.Now(), Status: models.RunStatusRunning})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	for _, state := range []models.ItemState{models.ItemPending, models.ItemFetched, models.ItemPersisted} {
		err := store.SetItemState(&models.ItemFetch{
			RunID: id, ASIN: "B0DBHD2F5R", Name: "boAt Nirvana Ivy", State: state, UpdatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("set state %s: %v", state, err)
		}
	}
	if err := store.SetItemState(&models.ItemFetch{
		RunID: id, ASIN: "B0DXPL5XHF", State: models.ItemFetchError, Error: "timeout", UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("set state: %v", err)
	}

	items, err := store.GetItemStates(id)
	if err != nil {
		t.Fatalf("item states: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected one row per item, got %d", len(items))
	}
	if items[0].State != models.ItemPersisted {
		t.Fatalf("expected latest state persisted, got %s", items[0].State)
	}
	if items[1].Error != "timeout" {
		t.Fatalf("expected error message, got %q", items[1].Error)
	}
}

func TestSQLiteStore_Log(t *testing.T) {
	store := openTestLedger(t)
	id, err := store.CreateRun(&models.FetchRun{Key: "run-3", StartedAt: time.Now(), Status: models.RunStatusRunning})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	if err := store.Log(&id, models.LogLevelWarn, "No data found", "B0DXPL5XHF"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := store.Log(nil, models.LogLevelInfo, "outside any run", "batch"); err != nil {
		t.Fatalf("log without run: %v", err)
	}

	logs, err := store.GetRunLogs(id)
	if err != nil {
		t.Fatalf("run logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Level != models.LogLevelWarn || logs[0].Source != "B0DXPL5XHF" {
		t.Fatalf("unexpected logs %+v", logs)
	}
}
