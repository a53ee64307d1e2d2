package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/gofrs/flock"

	"quizline/internal/fileutil"
)

const (
	defaultLockTimeout = 30 * time.Second
	defaultLockRetry   = 50 * time.Millisecond
	ledgerFileMode     = 0o644
	lockFileSuffix     = ".lock"
)

// FileStore keeps the ledger in a CSV file. Writers serialize on an advisory
// lock file beside the ledger; readers rely on atomic replace and never lock.
type FileStore struct {
	path        string
	lock        *flock.Flock
	lockTimeout time.Duration
	lockRetry   time.Duration
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithLockTimeout bounds how long Mutate waits for the writer lock.
func WithLockTimeout(d time.Duration) FileOption {
	return func(s *FileStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLockRetry sets the lock polling interval.
func WithLockRetry(d time.Duration) FileOption {
	return func(s *FileStore) {
		if d > 0 {
			s.lockRetry = d
		}
	}
}

// NewFileStore returns a CSV-backed store. The file is created on first save.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:        path,
		lock:        flock.New(path + lockFileSuffix),
		lockTimeout: defaultLockTimeout,
		lockRetry:   defaultLockRetry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the ledger file path.
func (s *FileStore) Path() string { return s.path }

// LockPath returns the advisory lock file path.
func (s *FileStore) LockPath() string { return s.lock.Path() }

// LoadAll reads the ledger without taking the writer lock.
func (s *FileStore) LoadAll(ctx context.Context) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return Ledger{}, err
	}
	return s.load()
}

func (s *FileStore) load() (Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewLedger(), nil
		}
		return Ledger{}, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, s.path, err)
	}
	ledger, err := DecodeCSV(bytes.NewReader(data))
	if err != nil {
		return Ledger{}, fmt.Errorf("%w: parse %s: %v", ErrStorageUnavailable, s.path, err)
	}
	return ledger, nil
}

// SaveAll replaces the ledger atomically under the writer lock.
func (s *FileStore) SaveAll(ctx context.Context, ledger Ledger) error {
	return s.withLock(ctx, func() error {
		return s.save(ledger)
	})
}

func (s *FileStore) save(ledger Ledger) error {
	if err := ledger.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	err := fileutil.WriteFileAtomic(s.path, ledgerFileMode, func(w io.Writer) error {
		return EncodeCSV(w, ledger)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	return nil
}

// Mutate holds the writer lock across load, fn and save.
func (s *FileStore) Mutate(ctx context.Context, fn MutateFunc) error {
	return s.withLock(ctx, func() error {
		ledger, err := s.load()
		if err != nil {
			return err
		}
		working := ledger.Clone()
		changed, err := fn(&working)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return s.save(working)
	})
}

// UpdateItem re-reads the ledger under the lock and applies fn when the row
// still holds expected.
func (s *FileStore) UpdateItem(ctx context.Context, index int, expected Status, fn func(*Item) error) error {
	return s.Mutate(ctx, func(ledger *Ledger) (bool, error) {
		if err := updateLedgerItem(ledger, index, expected, fn); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Append adds items at the end of the ledger.
func (s *FileStore) Append(ctx context.Context, items ...Item) error {
	if len(items) == 0 {
		return nil
	}
	return s.Mutate(ctx, func(ledger *Ledger) (bool, error) {
		if err := appendItems(ledger, items); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Close releases the lock handle.
func (s *FileStore) Close() error {
	return s.lock.Close()
}

func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, s.lockRetry)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: waited %s for %s", ErrLedgerBusy, s.lockTimeout, s.lock.Path())
		}
		return fmt.Errorf("%w: lock %s: %v", ErrStorageUnavailable, s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLedgerBusy, s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}
