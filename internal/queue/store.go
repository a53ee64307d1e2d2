package queue

import (
	"context"
	"fmt"
	"strings"

	"quizline/internal/config"
)

// MutateFunc edits a ledger copy in place. Returning false skips the save.
type MutateFunc func(ledger *Ledger) (bool, error)

// Store persists the ledger.
type Store interface {
	// LoadAll returns the full ledger. A missing or empty ledger is not an error.
	LoadAll(ctx context.Context) (Ledger, error)
	// SaveAll replaces the ledger as one atomic operation.
	SaveAll(ctx context.Context, ledger Ledger) error
	// Mutate runs load, fn and save while holding the single-writer guarantee.
	Mutate(ctx context.Context, fn MutateFunc) error
	// UpdateItem applies fn to the item at index only when it still holds
	// expected. Otherwise it returns ErrConflict without writing.
	UpdateItem(ctx context.Context, index int, expected Status, fn func(*Item) error) error
	// Append adds items at the end of the ledger.
	Append(ctx context.Context, items ...Item) error
	// Path reports where the ledger lives.
	Path() string
	Close() error
}

// Backend names accepted by ledger.backend.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Open returns the store selected by configuration.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("open ledger: config is nil")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	switch strings.ToLower(cfg.Ledger.Backend) {
	case "", BackendCSV:
		return NewFileStore(cfg.Ledger.Path, WithLockTimeout(cfg.LedgerLockTimeout())), nil
	case BackendSQLite:
		return OpenSQLite(cfg.Ledger.Path)
	default:
		return nil, fmt.Errorf("open ledger: unknown backend %q", cfg.Ledger.Backend)
	}
}

// updateLedgerItem applies the conditional single-item update to an
// in-memory ledger and verifies the result is a legal rewrite.
func updateLedgerItem(ledger *Ledger, index int, expected Status, fn func(*Item) error) error {
	if index < 0 || index >= len(ledger.Items) {
		return fmt.Errorf("%w: row %d no longer exists", ErrConflict, index+1)
	}
	current := ledger.Items[index]
	if current.Status != expected {
		return fmt.Errorf("%w: row %d %q is %s, expected %s", ErrConflict, index+1, current.Topic, current.Status, expected)
	}
	before := ledger.Clone()
	next := current.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	ledger.Items[index] = next
	return VerifyRewrite(before, *ledger)
}

func appendItems(ledger *Ledger, items []Item) error {
	for idx, item := range items {
		if item.Status == "" {
			item.Status = StatusPlanned
		}
		item.Topic = strings.TrimSpace(item.Topic)
		if err := item.Validate(); err != nil {
			return fmt.Errorf("append item %d: %w", idx+1, err)
		}
		ledger.Items = append(ledger.Items, item.Clone())
	}
	ledger.normalizeColumns()
	return nil
}
