package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DB wraps a database/sql handle. Postgres DSNs go through a pgx pool;
// anything else is treated as a SQLite path (used for local runs and tests).
type DB struct {
	SQL  *sql.DB
	pool *pgxpool.Pool
}

// Open connects to the database named by cfg.DSN.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(cfg, logger)
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "pgx")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "medidocs"

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to database")
	return &DB{SQL: stdlib.OpenDBFromPool(pool), pool: pool}, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := cfg.DSN
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	logger.Info("connecting to database", "driver", "sqlite")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// In-memory databases exist per connection; file databases keep modernc's
	// single-writer behavior honest under the pipeline's concurrent commits.
	db.SetMaxOpenConns(1)
	return &DB{SQL: db}, nil
}

// HealthCheck pings the database with a bounded timeout.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.SQL.PingContext(ctx)
}

// Close closes the underlying handles.
func (d *DB) Close() error {
	err := d.SQL.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		upload_date TIMESTAMP NOT NULL,
		total_pages INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		page_number INTEGER NOT NULL,
		content TEXT NOT NULL,
		image_data TEXT,
		UNIQUE (document_id, page_number)
	)`,
	`CREATE TABLE IF NOT EXISTS prescription_analyses (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL UNIQUE REFERENCES documents(id) ON DELETE CASCADE,
		analysis_date TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS medications (
		id TEXT PRIMARY KEY,
		prescription_id TEXT NOT NULL REFERENCES prescription_analyses(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		dosage TEXT,
		frequency TEXT,
		start_date TIMESTAMP,
		duration TEXT,
		duration_raw TEXT,
		end_date TIMESTAMP,
		instructions TEXT,
		page_number INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS document_summaries (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL UNIQUE REFERENCES documents(id) ON DELETE CASCADE,
		analysis_date TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS summary_extractions (
		id TEXT PRIMARY KEY,
		summary_id TEXT NOT NULL REFERENCES document_summaries(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		page_number INTEGER,
		associated_date TIMESTAMP,
		extraction_date TIMESTAMP NOT NULL
	)`,
}

// EnsureSchema creates the tables if they do not exist. The DDL sticks to
// types both Postgres and SQLite accept; at-most-once analysis is enforced by
// the UNIQUE document_id constraints.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaDDL {
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
