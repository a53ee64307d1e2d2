package queue_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"quizline/internal/config"
	"quizline/internal/queue"
	"quizline/internal/testsupport"
)

type backendCase struct {
	name string
	opts []testsupport.ConfigOption
}

var backends = []backendCase{
	{name: "csv"},
	{name: "sqlite", opts: []testsupport.ConfigOption{testsupport.WithSQLite()}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, cfg *config.Config, store queue.Store)) {
	t.Helper()
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, backend.opts...)
			store := testsupport.MustOpenStore(t, cfg)
			fn(t, cfg, store)
		})
	}
}

func TestLoadAllMissingLedgerIsEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, _ *config.Config, store queue.Store) {
		ledger := testsupport.MustLoad(t, store)
		if len(ledger.Items) != 0 {
			t.Fatalf("expected empty ledger, got %d items", len(ledger.Items))
		}
	})
}

func TestSaveAllRoundTripKeepsOrderAndFields(t *testing.T) {
	forEachBackend(t, func(t *testing.T, _ *config.Config, store queue.Store) {
		ctx := context.Background()
		published := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
		ledger := queue.NewLedger()
		ledger.Items = []queue.Item{
			{Topic: "Volcanoes", Status: queue.StatusPlanned, Extra: map[string]string{"question_count": "8"}},
			{Topic: "Rivers", Status: queue.StatusPublished, PublishedAt: &published},
			{Topic: "Deserts", Status: queue.StatusReady},
		}
		if err := store.SaveAll(ctx, ledger); err != nil {
			t.Fatalf("SaveAll: %v", err)
		}

		loaded := testsupport.MustLoad(t, store)
		got := testsupport.Statuses(loaded)
		want := []queue.Status{queue.StatusPlanned, queue.StatusPublished, queue.StatusReady}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
		if v, _ := loaded.Items[0].Field("question_count"); v != "8" {
			t.Fatalf("passthrough lost: %q", v)
		}
		if ts := loaded.Items[1].PublishedAt; ts == nil || !ts.Equal(published) {
			t.Fatalf("published_at = %v", ts)
		}
	})
}

func TestSaveAllRejectsInvalidLedger(t *testing.T) {
	forEachBackend(t, func(t *testing.T, _ *config.Config, store queue.Store) {
		testsupport.SeedLedger(t, store, testsupport.Row{Topic: "A", Status: queue.StatusPlanned})
		bad := queue.NewLedger()
		bad.Items = []queue.Item{{Topic: "B", Status: queue.StatusPublished}}
		err := store.SaveAll(context.Background(), bad)
		if !errors.Is(err, queue.ErrStorageWriteFailed) {
			t.Fatalf("expected ErrStorageWriteFailed, got %v", err)
		}
		loaded := testsupport.MustLoad(t, store)
		if len(loaded.Items) != 1 || loaded.Items[0].Topic != "A" {
			t.Fatalf("prior ledger not intact: %+v", loaded.Items)
		}
	})
}

func TestUpdateItemConditional(t *testing.T) {
	forEachBackend(t, func(t *testing.T, _ *config.Config, store queue.Store) {
		ctx := context.Background()
		testsupport.SeedLedger(t, store,
			testsupport.Row{Topic: "A", Status: queue.StatusPlanned},
			testsupport.Row{Topic: "B", Status: queue.StatusReady},
		)

		err := store.UpdateItem(ctx, 1, queue.StatusReady, func(item *queue.Item) error {
			return queue.EdgeEnqueue.Apply(item, time.Now())
		})
		if err != nil {
			t.Fatalf("UpdateItem: %v", err)
		}

		err = store.UpdateItem(ctx, 1, queue.StatusReady, func(item *queue.Item) error {
			return queue.EdgeEnqueue.Apply(item, time.Now())
		})
		if !errors.Is(err, queue.ErrConflict) {
			t.Fatalf("expected ErrConflict on stale status, got %v", err)
		}

		err = store.UpdateItem(ctx, 7, queue.StatusReady, func(*queue.Item) error { return nil })
		if !errors.Is(err, queue.ErrConflict) {
			t.Fatalf("expected ErrConflict on missing row, got %v", err)
		}

		got := testsupport.Statuses(testsupport.MustLoad(t, store))
		if got[0] != queue.StatusPlanned || got[1] != queue.StatusInQueue {
			t.Fatalf("unexpected statuses %v", got)
		}
	})
}

func TestUpdateItemRejectsIllegalEdit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, _ *config.Config, store queue.Store) {
		testsupport.SeedLedger(t, store, testsupport.Row{Topic: "A", Status: queue.StatusPlanned})
		err := store.UpdateItem(context.Background(), 0, queue.StatusPlanned, func(item *queue.Item) error {
			item.Status = queue.StatusInQueue
			return nil
		})
		if !errors.Is(err, queue.ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
		if got := testsupport.MustLoad(t, store).Items[0].Status; got != queue.StatusPlanned {
			t.Fatalf("status changed to %s", got)
		}
	})
}

func TestAppendAddsPlannedItems(t *testing.T) {
	forEachBackend(t, func(t *testing.T, _ *config.Config, store queue.Store) {
		ctx := context.Background()
		testsupport.SeedLedger(t, store, testsupport.Row{Topic: "A", Status: queue.StatusReady})
		item := queue.NewItem("  Glaciers ")
		item.SetField("owner", "ana")
		if err := store.Append(ctx, item); err != nil {
			t.Fatalf("Append: %v", err)
		}
		loaded := testsupport.MustLoad(t, store)
		if len(loaded.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(loaded.Items))
		}
		last := loaded.Items[1]
		if last.Topic != "Glaciers" || last.Status != queue.StatusPlanned {
			t.Fatalf("unexpected appended item %+v", last)
		}
		if owner, _ := last.Field("owner"); owner != "ana" {
			t.Fatalf("owner = %q", owner)
		}
	})
}

func TestMutateSerializesConcurrentWriters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store queue.Store) {
		ctx := context.Background()
		rows := make([]testsupport.Row, 8)
		for i := range rows {
			rows[i] = testsupport.Row{Topic: fmt.Sprintf("topic-%d", i), Status: queue.StatusPlanned}
		}
		testsupport.SeedLedger(t, store, rows...)

		// Each worker opens its own store so the lock is contended the way
		// separate processes contend it.
		var wg sync.WaitGroup
		errs := make(chan error, len(rows))
		for i := 0; i < len(rows); i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				worker, err := queue.Open(cfg)
				if err != nil {
					errs <- err
					return
				}
				defer worker.Close()
				errs <- worker.Mutate(ctx, func(ledger *queue.Ledger) (bool, error) {
					idx := ledger.FirstIndex(queue.StatusPlanned)
					if idx < 0 {
						return false, nil
					}
					return true, queue.EdgePropose.Apply(&ledger.Items[idx], time.Now())
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("worker: %v", err)
			}
		}

		ledger := testsupport.MustLoad(t, store)
		if n := ledger.Count(queue.StatusApprovedTopic); n != len(rows) {
			t.Fatalf("lost update: %d of %d items approved", n, len(rows))
		}
	})
}

func TestFileStoreCorruptLedgerIsUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteLedgerCSV(t, cfg.Ledger.Path, "topic,status", "A,SOMETHING")
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.LoadAll(context.Background()); !errors.Is(err, queue.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestFileStoreLockTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	holder := queue.NewFileStore(cfg.Ledger.Path)
	waiter := queue.NewFileStore(cfg.Ledger.Path, queue.WithLockTimeout(100*time.Millisecond), queue.WithLockRetry(10*time.Millisecond))
	t.Cleanup(func() {
		holder.Close()
		waiter.Close()
	})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- holder.Mutate(context.Background(), func(*queue.Ledger) (bool, error) {
			close(entered)
			<-release
			return false, nil
		})
	}()
	<-entered

	err := waiter.Mutate(context.Background(), func(*queue.Ledger) (bool, error) { return false, nil })
	close(release)
	if !errors.Is(err, queue.ErrLedgerBusy) {
		t.Fatalf("expected ErrLedgerBusy, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("holder: %v", err)
	}
}

func TestFileStoreWritesCSVWithHeader(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteLedgerCSV(t, cfg.Ledger.Path, "topic,status,notes", "A,READY,keep me")
	store := testsupport.MustOpenStore(t, cfg)
	err := store.UpdateItem(context.Background(), 0, queue.StatusReady, func(item *queue.Item) error {
		return queue.EdgeEnqueue.Apply(item, time.Now())
	})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	content := testsupport.ReadFile(t, cfg.Ledger.Path)
	if !strings.HasPrefix(content, "topic,status,notes,published_at\nA,IN_QUEUE,keep me,\n") {
		t.Fatalf("unexpected ledger content %q", content)
	}
	if _, err := os.Stat(cfg.Ledger.Path + ".lock"); err != nil {
		t.Fatalf("expected lock file: %v", err)
	}
}
