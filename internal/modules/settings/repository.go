// Package settings implements C11: a key/value settings store with typed
// accessors, a built-in defaults table, and a 30-second read cache that is
// invalidated synchronously on every write.
package settings

import (
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const cacheTTL = 30 * time.Second

type cachedValue struct {
	value     string
	expiresAt time.Time
}

// Store is the C11 settings store: a SQL-backed repository fronted by an
// in-memory TTL cache. Grounded on the upsert-on-conflict shape of
// aristath-sentinel's settings repository; the cache layer is new.
type Store struct {
	db  *sql.DB
	log zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedValue
}

// New creates a settings store without writing to the database; default
// keys not already present are inserted by SeedDefaults.
func New(db *sql.DB, log zerolog.Logger) *Store {
	s := &Store{
		db:    db,
		log:   log.With().Str("component", "settings").Logger(),
		cache: make(map[string]cachedValue),
	}
	return s
}

// SeedDefaults inserts every key in Defaults that does not already exist.
// It also force-resets strategy_tick_enabled to disabled on every start,
// per SPEC_FULL §4.11.
func (s *Store) SeedDefaults() error {
	for key, value := range Defaults {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM settings WHERE key = ?`, key).Scan(&exists)
		if err == sql.ErrNoRows {
			if err := s.set(key, value, Descriptions[key]); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return s.set("strategy_tick_enabled", "0", Descriptions["strategy_tick_enabled"])
}

func (s *Store) get(key string) (string, bool) {
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.value, true
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}

	s.mu.Lock()
	s.cache[key] = cachedValue{value: value, expiresAt: time.Now().Add(cacheTTL)}
	s.mu.Unlock()
	return value, true
}

func (s *Store) set(key, value, description string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, description, time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// GetString returns the string value for key, or def if unset.
func (s *Store) GetString(key, def string) string {
	if v, ok := s.get(key); ok {
		return v
	}
	return def
}

// SetString persists a string value, invalidating the cache entry.
func (s *Store) SetString(key, value string) error {
	return s.set(key, value, Descriptions[key])
}

// GetFloat parses the stored value as float64, tolerating integer-looking
// strings, or returns def.
func (s *Store) GetFloat(key string, def float64) float64 {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (s *Store) SetFloat(key string, value float64) error {
	return s.set(key, strconv.FormatFloat(value, 'f', -1, 64), Descriptions[key])
}

// GetInt parses the stored value as an int, going through float first so
// values like "12.0" still parse, or returns def.
func (s *Store) GetInt(key string, def int) int {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return def
}

func (s *Store) SetInt(key string, value int) error {
	return s.set(key, strconv.Itoa(value), Descriptions[key])
}

// GetBool treats "true"/"1"/"yes"/"on" (case-insensitive) as truthy.
func (s *Store) GetBool(key string, def bool) bool {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

func (s *Store) SetBool(key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return s.set(key, v, Descriptions[key])
}

// Delete removes a key; idempotent.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}
