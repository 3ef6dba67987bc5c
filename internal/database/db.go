package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// DB wraps the database connection and owns schema migration and
// corruption recovery.
type DB struct {
	conn *sql.DB
	path string
	log  zerolog.Logger
}

// New opens (creating if necessary) the SQLite database at dbPath. If the
// existing file fails to open with an "unsupported file format" style
// error, it is quarantined with a timestamped .corrupt suffix and a fresh
// empty schema is created in its place, per SPEC_FULL §4.2.
func New(dbPath string, log zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := openAndPing(dbPath)
	if err != nil {
		if !isCorruptionSignal(err) {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		quarantined := fmt.Sprintf("%s.%d.corrupt", dbPath, time.Now().Unix())
		log.Warn().Err(err).Str("quarantined_as", quarantined).
			Msg("database file unreadable, quarantining and recreating schema")
		if renameErr := os.Rename(dbPath, quarantined); renameErr != nil && !os.IsNotExist(renameErr) {
			return nil, fmt.Errorf("failed to quarantine corrupt database: %w", renameErr)
		}

		conn, err = openAndPing(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to recreate database after quarantine: %w", err)
		}
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	db := &DB{conn: conn, path: dbPath, log: log.With().Str("component", "database").Logger()}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

func openAndPing(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// isCorruptionSignal recognizes the sqlite driver's error text for a file
// that isn't a valid database at all (as opposed to a transient I/O error).
func isCorruptionSignal(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "unsupported file format") ||
		strings.Contains(msg, "malformed disk image")
}

func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) Conn() *sql.DB { return db.conn }

// Migrate creates every table this engine needs if it does not already
// exist. Idempotent, safe to call on every start-up.
func (db *DB) Migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (db *DB) Begin() (*sql.Tx, error) { return db.conn.Begin() }

func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("not found")

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		market TEXT NOT NULL,
		exchange TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		sector TEXT NOT NULL DEFAULT '',
		routing_path TEXT NOT NULL DEFAULT '',
		tr_id TEXT NOT NULL DEFAULT '',
		market_code TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		last_updated DATETIME NOT NULL,
		UNIQUE(symbol, market)
	)`,
	`CREATE TABLE IF NOT EXISTS financials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instrument_id INTEGER NOT NULL REFERENCES instruments(id),
		base_date DATE NOT NULL,
		current_price REAL NOT NULL DEFAULT 0,
		market_cap REAL NOT NULL DEFAULT 0,
		per REAL NOT NULL DEFAULT 0,
		pbr REAL NOT NULL DEFAULT 0,
		roe REAL NOT NULL DEFAULT 0,
		eps REAL NOT NULL DEFAULT 0,
		bps REAL NOT NULL DEFAULT 0,
		dividend_yield REAL NOT NULL DEFAULT 0,
		high_52w REAL NOT NULL DEFAULT 0,
		low_52w REAL NOT NULL DEFAULT 0,
		volume REAL NOT NULL DEFAULT 0,
		amount REAL NOT NULL DEFAULT 0,
		rsi REAL NOT NULL DEFAULT 0,
		ema_json TEXT NOT NULL DEFAULT '{}',
		dcf_value REAL NOT NULL DEFAULT 0,
		UNIQUE(instrument_id, base_date)
	)`,
	`CREATE TABLE IF NOT EXISTS api_transactions (
		logical_name TEXT NOT NULL,
		is_simulated INTEGER NOT NULL,
		tr_id TEXT NOT NULL,
		PRIMARY KEY (logical_name, is_simulated)
	)`,
	`CREATE TABLE IF NOT EXISTS dcf_overrides (
		symbol TEXT PRIMARY KEY,
		fcf_per_share REAL,
		beta REAL,
		growth_rate REAL,
		fair_value REAL
	)`,
	`CREATE TABLE IF NOT EXISTS portfolio_holdings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		market TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		average_buy REAL NOT NULL DEFAULT 0,
		current_price REAL NOT NULL DEFAULT 0,
		change_rate REAL NOT NULL DEFAULT 0,
		sector TEXT NOT NULL DEFAULT '',
		last_updated DATETIME NOT NULL,
		UNIQUE(symbol, market)
	)`,
	`CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		idempotency_key TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		market TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		strategy_tag TEXT NOT NULL DEFAULT '',
		result_message TEXT NOT NULL DEFAULT '',
		executed_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS market_regime_history (
		base_date DATE PRIMARY KEY,
		status TEXT NOT NULL,
		score REAL NOT NULL,
		vix REAL NOT NULL DEFAULT 0,
		fear_greed REAL NOT NULL DEFAULT 0,
		yield_10y REAL NOT NULL DEFAULT 0,
		sp500_price REAL NOT NULL DEFAULT 0,
		sp500_ma200 REAL NOT NULL DEFAULT 0,
		percent_dev_ma200 REAL NOT NULL DEFAULT 0,
		components_json TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_run_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		trades_executed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS backup_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL,
		size_bytes INTEGER NOT NULL,
		remote_key TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_state (
		user_id TEXT PRIMARY KEY,
		state_json TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL
	)`,
}
