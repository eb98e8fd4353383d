package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"shapelab/internal/config"
	"shapelab/internal/logging"
)

// SQLiteStore keeps payloads in the payloads table, one row per collection
// and name.
type SQLiteStore struct {
	db         *sql.DB
	mu         sync.RWMutex
	dbPath     string
	collection string
}

// NewSQLiteStore opens (creating if needed) the database at path. driver is
// config.DriverModernc (pure Go, the default) or config.DriverCgo.
func NewSQLiteStore(driver, path, collection string) (*SQLiteStore, error) {
	if driver == "" {
		driver = config.DriverModernc
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, dbPath: path, collection: collection}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Get(logging.CategoryStore).Debug("opened sqlite store",
		zap.String("driver", driver),
		zap.String("path", path),
		zap.String("collection", collection))
	return s, nil
}

// busyTimeoutMillis lets a writer wait for a lock held by another handle on
// the same file, such as the other collection's store.
const busyTimeoutMillis = 5000

// dsn adds the busy timeout, and WAL for file databases, to every connection
// the pool opens. The two drivers spell their pragmas differently.
func dsn(driver, path string) string {
	memory := path == ":memory:"
	if driver == config.DriverCgo {
		if memory {
			return fmt.Sprintf("%s?_busy_timeout=%d", path, busyTimeoutMillis)
		}
		return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busyTimeoutMillis)
	}
	if memory {
		return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busyTimeoutMillis)
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMillis)
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payloads (
		collection TEXT NOT NULL,
		name TEXT NOT NULL,
		payload BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, name)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create payloads table: %w", err)
	}
	return nil
}

// List returns the stored names of the collection in sorted order.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM payloads WHERE collection = ? ORDER BY name", s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list payloads: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Read returns the payload stored under name.
func (s *SQLiteStore) Read(ctx context.Context, name string) ([]byte, error) {
	safe, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload []byte
	err = s.db.QueryRowContext(ctx,
		"SELECT payload FROM payloads WHERE collection = ? AND name = ?", s.collection, safe).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, safe)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return payload, nil
}

// Write upserts payload under name.
func (s *SQLiteStore) Write(ctx context.Context, name string, payload []byte) error {
	safe, err := SanitizeName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payloads (collection, name, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.collection, safe, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
