// Package sqlite implements the deduplicating tick store and the
// derived minute-bar table on a single SQLite database.
//
// Deduplication relies on the (instrument, variant, ts) primary key
// with INSERT OR REPLACE: re-inserting the same row any number of
// times converges on the last write, deterministically at read time.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/fxdata.db"
}

// Store is a single-writer SQLite store for ticks and minute bars.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens the database with WAL mode and initializes the schema.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline: one connection avoids SQLITE_BUSY
	// between the tick writer and the bar rebuilder.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticks (
			instrument TEXT    NOT NULL,
			variant    TEXT    NOT NULL,
			ts         INTEGER NOT NULL, -- unix milliseconds UTC
			bid        REAL    NOT NULL,
			ask        REAL    NOT NULL,
			PRIMARY KEY (instrument, variant, ts)
		);

		CREATE TABLE IF NOT EXISTS bars (
			instrument       TEXT    NOT NULL,
			minute           INTEGER NOT NULL, -- unix seconds UTC, minute aligned
			open             REAL,
			high             REAL,
			low              REAL,
			close            REAL,
			trade_spread_avg REAL    NOT NULL,
			trade_ticks      INTEGER NOT NULL,
			quote_spread_avg REAL    NOT NULL,
			quote_ticks      INTEGER NOT NULL,
			nyse             INTEGER NOT NULL,
			nasdaq           INTEGER NOT NULL,
			tsx              INTEGER NOT NULL,
			lse              INTEGER NOT NULL,
			xetra            INTEGER NOT NULL,
			paris            INTEGER NOT NULL,
			six              INTEGER NOT NULL,
			tokyo            INTEGER NOT NULL,
			hongkong         INTEGER NOT NULL,
			singapore        INTEGER NOT NULL,
			asx              INTEGER NOT NULL,
			us_holiday       INTEGER NOT NULL,
			uk_holiday       INTEGER NOT NULL,
			ny_hour          INTEGER NOT NULL,
			london_hour      INTEGER NOT NULL,
			PRIMARY KEY (instrument, minute)
		);
	`)
	return err
}

// Materialize folds the WAL into the main database so row counts and
// file-size introspection reflect every committed write. Callers that
// need strict-consistency reads (gap detection before an update run)
// call this instead of busy-waiting on checkpoint timing.
func (s *Store) Materialize() error {
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("sqlite checkpoint: %w", err)
	}
	return nil
}

// StorageSize returns the database size in bytes (page_count * page_size).
func (s *Store) StorageSize() (int64, error) {
	var size int64
	err := s.db.QueryRow(`
		SELECT page_count * page_size
		FROM pragma_page_count(), pragma_page_size()
	`).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("sqlite size: %w", err)
	}
	return size, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
