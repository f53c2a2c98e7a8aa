package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	errorspkg "github.com/elchemista/FormRelay/internal/errors"
	"github.com/elchemista/FormRelay/internal/submission"
)

const (
	createRateLimits = `CREATE TABLE IF NOT EXISTS rate_limits (
	k VARCHAR(191) NOT NULL PRIMARY KEY,
	v VARCHAR(255) NOT NULL,
	expires_at DATETIME NULL
)`

	createSubmissions = `CREATE TABLE IF NOT EXISTS submissions (
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	form VARCHAR(191) NOT NULL,
	payload JSON NOT NULL,
	created_at DATETIME NOT NULL,
	INDEX idx_submissions_form (form, created_at)
)`
)

// Open connects to MySQL using dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// Migrate creates the relay tables when they are missing.
func Migrate(ctx context.Context, db Execer) error {
	for _, stmt := range []string{createRateLimits, createSubmissions} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Execer is the subset of *sql.DB used for writes.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLKV keeps limiter counters in the rate_limits table.
type SQLKV struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLKV wraps db. Migrate must have run.
func NewSQLKV(db *sql.DB) *SQLKV {
	return &SQLKV{db: db, now: time.Now}
}

// Get returns the unexpired value for key.
func (s *SQLKV) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value   string
		expires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, "SELECT v, expires_at FROM rate_limits WHERE k = ?", key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if expires.Valid && !s.now().UTC().Before(expires.Time) {
		return "", false, nil
	}
	return value, true, nil
}

// Set upserts key with an optional expiry.
func (s *SQLKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = s.now().UTC().Add(ttl)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rate_limits (k, v, expires_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v), expires_at = VALUES(expires_at)",
		key, value, expires)
	return err
}

// Archive records accepted submissions in the submissions table.
type Archive struct {
	db    Execer
	now   func() time.Time
	newID func() string

	mu    sync.Mutex
	ready bool
}

// NewArchive wraps db. The table is created on first write.
func NewArchive(db Execer) *Archive {
	return &Archive{db: db, now: time.Now, newID: uuid.NewString}
}

// Write stores sub for form and returns the row id.
func (a *Archive) Write(ctx context.Context, form string, sub *submission.Submission) (string, error) {
	if err := a.ensureSchema(ctx); err != nil {
		return "", errorspkg.Wrap(errorspkg.StorageFailed, err, "archive schema failed")
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		return "", errorspkg.Wrap(errorspkg.StorageFailed, err, "archive encode failed")
	}

	id := a.newID()
	if _, err := a.db.ExecContext(ctx,
		"INSERT INTO submissions (id, form, payload, created_at) VALUES (?, ?, ?, ?)",
		id, form, string(payload), a.now().UTC()); err != nil {
		return "", errorspkg.Wrap(errorspkg.StorageFailed, err, "archive write failed")
	}
	return id, nil
}

// ensureSchema creates the submissions table once. A failed attempt is
// retried on the next write.
func (a *Archive) ensureSchema(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ready {
		return nil
	}
	if _, err := a.db.ExecContext(ctx, createSubmissions); err != nil {
		return err
	}
	a.ready = true
	return nil
}
