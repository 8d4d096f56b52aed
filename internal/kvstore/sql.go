package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/starford/synka/internal/apperr"
)

// SQLStore keeps entries in a single table of a SQL database.
type SQLStore struct {
	db      *sql.DB
	table   string
	backend Backend
	dsn     string
}

var _ Store = (*SQLStore)(nil)

// OpenSQL opens a sqlite, mysql or postgresql store and creates its table.
//
// DSN formats:
//   - sqlite: a file path, e.g. ./synka.db
//   - mysql: user:password@tcp(host:port)/dbname
//   - postgresql: host=localhost port=5432 user=postgres dbname=synka
func OpenSQL(table string, backend Backend, dsn string) (*SQLStore, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}

	var (
		db  *sql.DB
		err error
	)
	switch backend {
	case SQLiteBackend:
		db, err = sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
		if err != nil {
			return nil, fmt.Errorf("kvstore: open sqlite %q: %w", dsn, err)
		}
		// A single connection avoids "database is locked" under concurrent writers.
		db.SetMaxOpenConns(1)
	case MySQLBackend:
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("kvstore: open mysql: %w", err)
		}
	case PostgreSQLBackend:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("kvstore: open postgresql: %w", err)
		}
	default:
		return nil, fmt.Errorf("kvstore: %s is not a SQL backend", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvstore: ping %s: %w", backend, err)
	}
	if _, err := db.Exec(createTableQuery(table, backend)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvstore: create table %s: %w", table, err)
	}

	return &SQLStore{db: db, table: table, backend: backend, dsn: dsn}, nil
}

func createTableQuery(table string, backend Backend) string {
	quoted := quoteTableName(table, backend)
	switch backend {
	case MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				store_key VARCHAR(255) PRIMARY KEY,
				store_value LONGBLOB NOT NULL,
				updated_at BIGINT NOT NULL
			);
		`, quoted)
	case PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				store_key TEXT PRIMARY KEY,
				store_value BYTEA NOT NULL,
				updated_at BIGINT NOT NULL
			);
		`, quoted)
	default:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				store_key TEXT PRIMARY KEY,
				store_value BLOB NOT NULL,
				updated_at INTEGER NOT NULL
			);
		`, quoted)
	}
}

func (s *SQLStore) placeholder(n int) string {
	if s.backend == PostgreSQLBackend {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) upsertQuery() string {
	quoted := quoteTableName(s.table, s.backend)
	switch s.backend {
	case MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (store_key, store_value, updated_at) VALUES (?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE store_value = new.store_value, updated_at = new.updated_at`, quoted)
	case PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (store_key, store_value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (store_key) DO UPDATE SET store_value = EXCLUDED.store_value, updated_at = EXCLUDED.updated_at`, quoted)
	default:
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (store_key, store_value, updated_at) VALUES (?, ?, ?)`, quoted)
	}
}

// Get returns the value stored under key.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT store_value FROM %s WHERE store_key = %s`,
		quoteTableName(s.table, s.backend), s.placeholder(1))
	var value []byte
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("kvstore: get %s: %w", key, err)
	}
	return value, nil
}

// Set inserts or replaces the value under key.
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("kvstore: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE store_key = %s`,
		quoteTableName(s.table, s.backend), s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

// Status reports entry counts and an approximate table size.
func (s *SQLStore) Status(ctx context.Context) (Status, error) {
	status := Status{Backend: string(s.backend), Connected: s.db != nil}
	quoted := quoteTableName(s.table, s.backend)

	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoted))
	if err := row.Scan(&status.TotalEntries); err != nil {
		return status, fmt.Errorf("kvstore: count entries: %w", err)
	}
	if status.TotalEntries == 0 {
		return status, nil
	}

	var lastMs int64
	row = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(updated_at) FROM %s", quoted))
	if err := row.Scan(&lastMs); err != nil {
		return status, fmt.Errorf("kvstore: last entry time: %w", err)
	}
	status.LastEntryTime = time.UnixMilli(lastMs)

	switch s.backend {
	case SQLiteBackend:
		row = s.db.QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = 0
		}
	case MySQLBackend:
		status.TableSizeBytes = int64(status.TotalEntries) * 1000
		cfg, err := mysql.ParseDSN(s.dsn)
		if err != nil || cfg.DBName == "" {
			break
		}
		row = s.db.QueryRowContext(ctx,
			"SELECT data_length + index_length FROM information_schema.tables WHERE table_schema = ? AND table_name = ?",
			cfg.DBName, s.table)
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000
		}
	case PostgreSQLBackend:
		row = s.db.QueryRowContext(ctx, "SELECT pg_total_relation_size($1)", s.table)
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000
		}
	}
	return status, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
