package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"quizline/internal/logging"
	"quizline/internal/stage"
)

// watchLedger triggers a buffer check after the ledger settles following a
// write. Atomic CSV saves show up as a Create of the ledger name; SQLite
// writes land in the -wal sidecar.
func (d *Daemon) watchLedger(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create ledger watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(d.ledgerPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch ledger directory %s: %w", dir, err)
	}

	check := d.job(stage.NameBufferCheck)
	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !d.isLedgerWrite(event) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(d.debounce)
			} else {
				debounce.Reset(d.debounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			if check != nil {
				d.invoke(ctx, check, "ledger-change")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(d.logger, "ledger watch error", "ledger_watch",
				logging.String(logging.FieldImpact, "buffer check waits for its next tick"),
				logging.Error(err),
			)
		}
	}
}

func (d *Daemon) isLedgerWrite(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	base := filepath.Base(d.ledgerPath)
	name := filepath.Base(event.Name)
	if name == base {
		return true
	}
	return strings.HasPrefix(name, base) && strings.HasSuffix(name, "-wal")
}
