package testsupport

import (
	"context"
	"testing"

	"quizline/internal/config"
	"quizline/internal/queue"
)

// MustOpenStore opens the configured ledger store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Row is a compact ledger fixture: topic and status.
type Row struct {
	Topic  string
	Status queue.Status
}

// SeedLedger replaces the ledger with rows. PUBLISHED rows get a fixed
// published_at so the ledger stays valid.
func SeedLedger(t testing.TB, store queue.Store, rows ...Row) queue.Ledger {
	t.Helper()

	ledger := queue.NewLedger()
	for _, row := range rows {
		item := queue.Item{Topic: row.Topic, Status: row.Status}
		if row.Status == queue.StatusPublished {
			ts := PublishedAt
			item.PublishedAt = &ts
		}
		ledger.Items = append(ledger.Items, item)
	}
	if err := store.SaveAll(context.Background(), ledger); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return ledger
}

// MustLoad returns the current ledger or fails the test.
func MustLoad(t testing.TB, store queue.Store) queue.Ledger {
	t.Helper()

	ledger, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return ledger
}

// Statuses flattens a ledger into its status column.
func Statuses(ledger queue.Ledger) []queue.Status {
	out := make([]queue.Status, len(ledger.Items))
	for idx, item := range ledger.Items {
		out[idx] = item.Status
	}
	return out
}
