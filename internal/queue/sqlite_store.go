package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps the ledger in SQLite. Each row carries a version that
// UpdateItem uses as an optimistic concurrency token.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the ledger database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// _txlock=immediate makes every transaction take the write lock up front
	// so two writers cannot both read then fail on upgrade.
	dsn := "file:" + path + "?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %v", ErrStorageUnavailable, err)
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("%w: check schema_version table: %v", ErrStorageUnavailable, err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %v", ErrStorageUnavailable, err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (export with 'quizline queue list --csv' and recreate the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		if err := writeColumns(ctx, tx, coreColumns); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type storedRow struct {
	item    Item
	version int64
}

// LoadAll returns the ledger in position order.
func (s *SQLiteStore) LoadAll(ctx context.Context) (Ledger, error) {
	var ledger Ledger
	err := retryOnBusy(ctx, func() error {
		loaded, _, err := readLedger(ctx, s.db)
		ledger = loaded
		return err
	})
	if err != nil {
		return Ledger{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return ledger, nil
}

func readLedger(ctx context.Context, q queryer) (Ledger, []storedRow, error) {
	columns, err := readColumns(ctx, q)
	if err != nil {
		return Ledger{}, nil, err
	}
	rows, err := q.QueryContext(ctx,
		"SELECT topic, status, published_at, extra_json, version FROM ledger_items ORDER BY position")
	if err != nil {
		return Ledger{}, nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	ledger := Ledger{Columns: columns}
	var stored []storedRow
	for rows.Next() {
		var (
			topic, status, extraJSON string
			publishedAt              sql.NullString
			version                  int64
		)
		if err := rows.Scan(&topic, &status, &publishedAt, &extraJSON, &version); err != nil {
			return Ledger{}, nil, fmt.Errorf("scan item: %w", err)
		}
		item, err := decodeRow(topic, status, publishedAt, extraJSON)
		if err != nil {
			return Ledger{}, nil, fmt.Errorf("row %d: %w", len(stored)+1, err)
		}
		ledger.Items = append(ledger.Items, item)
		stored = append(stored, storedRow{item: item, version: version})
	}
	if err := rows.Err(); err != nil {
		return Ledger{}, nil, err
	}
	ledger.normalizeColumns()
	return ledger, stored, nil
}

func decodeRow(topic, status string, publishedAt sql.NullString, extraJSON string) (Item, error) {
	parsed, ok := ParseStatus(status)
	if !ok {
		return Item{}, fmt.Errorf("unknown status %q", status)
	}
	item := Item{Topic: topic, Status: parsed}
	if publishedAt.Valid && publishedAt.String != "" {
		ts, err := parseTimestamp(publishedAt.String)
		if err != nil {
			return Item{}, err
		}
		item.PublishedAt = &ts
	}
	if extraJSON != "" && extraJSON != "{}" {
		if err := json.Unmarshal([]byte(extraJSON), &item.Extra); err != nil {
			return Item{}, fmt.Errorf("decode passthrough fields: %w", err)
		}
	}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

func readColumns(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM ledger_columns ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func writeColumns(ctx context.Context, e execer, columns []string) error {
	if _, err := e.ExecContext(ctx, "DELETE FROM ledger_columns"); err != nil {
		return fmt.Errorf("clear columns: %w", err)
	}
	for idx, name := range columns {
		if _, err := e.ExecContext(ctx, "INSERT INTO ledger_columns (position, name) VALUES (?, ?)", idx, name); err != nil {
			return fmt.Errorf("insert column %q: %w", name, err)
		}
	}
	return nil
}

func encodeExtra(item Item) (string, error) {
	if len(item.Extra) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(item.Extra)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullableTimestamp(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return formatTimestamp(ts)
}

func insertItem(ctx context.Context, e execer, position int, item Item) error {
	extra, err := encodeExtra(item)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx,
		`INSERT INTO ledger_items (position, topic, status, published_at, extra_json, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		position, item.Topic, string(item.Status), nullableTimestamp(item.PublishedAt), extra, nowText())
	if err != nil {
		return fmt.Errorf("insert item %q: %w", item.Topic, err)
	}
	return nil
}

// updateRow writes item over position when the row still has version.
func updateRow(ctx context.Context, e execer, position int, version int64, item Item) error {
	extra, err := encodeExtra(item)
	if err != nil {
		return err
	}
	res, err := e.ExecContext(ctx,
		`UPDATE ledger_items
		 SET topic = ?, status = ?, published_at = ?, extra_json = ?, version = version + 1, updated_at = ?
		 WHERE position = ? AND version = ?`,
		item.Topic, string(item.Status), nullableTimestamp(item.PublishedAt), extra, nowText(), position, version)
	if err != nil {
		return fmt.Errorf("update row %d: %w", position+1, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: row %d version %d", ErrConflict, position+1, version)
	}
	return nil
}

func nowText() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// SaveAll replaces every row in one transaction.
func (s *SQLiteStore) SaveAll(ctx context.Context, ledger Ledger) error {
	if err := ledger.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	ledger.normalizeColumns()
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_items"); err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
		for idx, item := range ledger.Items {
			if err := insertItem(ctx, tx, idx, item); err != nil {
				return err
			}
		}
		if err := writeColumns(ctx, tx, ledger.Columns); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	return nil
}

// Mutate runs fn inside an immediate transaction and writes only the rows
// that changed plus any appended rows.
func (s *SQLiteStore) Mutate(ctx context.Context, fn MutateFunc) error {
	var fnErr error
	err := retryOnBusy(ctx, func() error {
		fnErr = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		ledger, stored, err := readLedger(ctx, tx)
		if err != nil {
			return err
		}
		working := ledger.Clone()
		changed, err := fn(&working)
		if err != nil {
			fnErr = err
			return nil
		}
		if !changed {
			return nil
		}
		if err := working.Validate(); err != nil {
			fnErr = fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
			return nil
		}
		if len(working.Items) < len(stored) {
			fnErr = fmt.Errorf("%w: items removed", ErrInvalidRewrite)
			return nil
		}
		for idx, row := range stored {
			if row.item.equal(working.Items[idx]) {
				continue
			}
			if err := updateRow(ctx, tx, idx, row.version, working.Items[idx]); err != nil {
				return err
			}
		}
		for idx := len(stored); idx < len(working.Items); idx++ {
			if err := insertItem(ctx, tx, idx, working.Items[idx]); err != nil {
				return err
			}
		}
		working.normalizeColumns()
		if err := writeColumns(ctx, tx, working.Columns); err != nil {
			return err
		}
		return tx.Commit()
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	return nil
}

// UpdateItem reads the row and its version, applies fn and writes back only
// when neither status nor version moved in between.
func (s *SQLiteStore) UpdateItem(ctx context.Context, index int, expected Status, fn func(*Item) error) error {
	var (
		item    Item
		version int64
		fnErr   error
	)
	err := retryOnBusy(ctx, func() error {
		var (
			topic, status, extraJSON string
			publishedAt              sql.NullString
		)
		row := s.db.QueryRowContext(ctx,
			"SELECT topic, status, published_at, extra_json, version FROM ledger_items WHERE position = ?", index)
		if err := row.Scan(&topic, &status, &publishedAt, &extraJSON, &version); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: row %d no longer exists", ErrConflict, index+1)
			}
			return err
		}
		decoded, err := decodeRow(topic, status, publishedAt, extraJSON)
		if err != nil {
			return err
		}
		item = decoded
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if item.Status != expected {
		return fmt.Errorf("%w: row %d %q is %s, expected %s", ErrConflict, index+1, item.Topic, item.Status, expected)
	}

	next := item.Clone()
	if fnErr = fn(&next); fnErr != nil {
		return fnErr
	}
	if err := VerifyRewrite(Ledger{Items: []Item{item}}, Ledger{Items: []Item{next}}); err != nil {
		return err
	}
	err = retryOnBusy(ctx, func() error {
		return updateRow(ctx, s.db, index, version, next)
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	return nil
}

// Append inserts items after the current last position.
func (s *SQLiteStore) Append(ctx context.Context, items ...Item) error {
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
