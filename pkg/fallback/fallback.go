// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package fallback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
	_ "modernc.org/sqlite"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/metrics"
)

const (
	DriverSQLite    = "sqlite"
	DriverSQLServer = "sqlserver"
)

var (
	// ErrDisabled is returned by the store used when no driver is configured.
	ErrDisabled = errors.New("fallback store is disabled")

	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Record is one failed delivery.
type Record struct {
	SenderEmail string    `json:"senderEmail"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is an append-only log of failed deliveries.
type Store interface {
	Append(ctx context.Context, r Record) error
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

type dialect struct {
	create string
	insert string
	list   string
}

func dialectFor(driver, table string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{
			create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_email TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`, table),
			insert: fmt.Sprintf("INSERT INTO %s (sender_email, message, created_at) VALUES (?, ?, ?)", table),
			list:   fmt.Sprintf("SELECT sender_email, message, created_at FROM %s ORDER BY created_at DESC LIMIT ?", table),
		}, nil
	case DriverSQLServer:
		return dialect{
			create: fmt.Sprintf(`IF OBJECT_ID(N'%[1]s', N'U') IS NULL
CREATE TABLE %[1]s (
	id BIGINT IDENTITY(1,1) PRIMARY KEY,
	sender_email NVARCHAR(320) NOT NULL,
	message NVARCHAR(MAX) NOT NULL,
	created_at DATETIME2 NOT NULL
)`, table),
			insert: fmt.Sprintf("INSERT INTO %s (sender_email, message, created_at) VALUES (@p1, @p2, @p3)", table),
			list:   fmt.Sprintf("SELECT TOP (@p1) sender_email, message, created_at FROM %s ORDER BY created_at DESC", table),
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported fallback driver %q", driver)
	}
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithClock sets the time source used to stamp records.
func WithClock(c clock.PassiveClock) Option {
	return func(s *SQLStore) {
		s.clock = c
	}
}

// SQLStore writes records with database/sql.
type SQLStore struct {
	db      *sql.DB
	driver  string
	dialect dialect
	clock   clock.PassiveClock
	log     *zap.SugaredLogger
}

// NewSQLStore wraps an open database handle. The table is not created; call
// Migrate for that.
func NewSQLStore(db *sql.DB, driver, table string, log *zap.SugaredLogger, opts ...Option) (*SQLStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid fallback table name %q", table)
	}
	d, err := dialectFor(driver, table)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &SQLStore{
		db:      db,
		driver:  driver,
		dialect: d,
		clock:   clock.RealClock{},
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects to the configured database and ensures the table exists. An
// empty driver yields a store that rejects every write with ErrDisabled.
func Open(ctx context.Context, cfg config.Fallback, log *zap.SugaredLogger) (Store, error) {
	if cfg.Driver == "" {
		return Disabled{}, nil
	}
	if cfg.Driver == DriverSQLite {
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening fallback database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s, err := NewSQLStore(db, cfg.Driver, cfg.Table, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to fallback database: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Infow("Fallback store ready", "driver", cfg.Driver, "table", cfg.Table)
	return s, nil
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating fallback database directory: %w", err)
	}
	return nil
}

// Migrate creates the records table when it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.create); err != nil {
		return fmt.Errorf("creating fallback table: %w", err)
	}
	return nil
}

// Append inserts one record as a single statement.
func (s *SQLStore) Append(ctx context.Context, r Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.insert, r.SenderEmail, r.Message, r.CreatedAt); err != nil {
		metrics.FallbackWriteFailures.Inc()
		return fmt.Errorf("inserting fallback record: %w", err)
	}
	metrics.FallbackWrites.Inc()
	return nil
}

// ListRecent returns up to limit records, newest first.
func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.list, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fallback records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.SenderEmail, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning fallback record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fallback records: %w", err)
	}
	return records, nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Disabled is the store used when no database is configured.
type Disabled struct{}

func (Disabled) Append(context.Context, Record) error {
	metrics.FallbackWriteFailures.Inc()
	return ErrDisabled
}

func (Disabled) ListRecent(context.Context, int) ([]Record, error) {
	return nil, ErrDisabled
}

func (Disabled) Close() error { return nil }
