// Package repositories implements C2's per-table data access: one
// repository struct per table, each embedding BaseRepository for the
// shared *sql.DB/zerolog.Logger handle, following the teacher's
// repository layout (portfolio/trading/universe repositories).
package repositories

import (
	"database/sql"

	"github.com/rs/zerolog"
)

// BaseRepository provides the shared handle every table-specific
// repository embeds.
type BaseRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBase creates a base repository scoped to a named table for logging.
func NewBase(db *sql.DB, log zerolog.Logger, name string) *BaseRepository {
	return &BaseRepository{
		db:  db,
		log: log.With().Str("repo", name).Logger(),
	}
}

// DB returns the underlying connection pool.
func (r *BaseRepository) DB() *sql.DB { return r.db }
