package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BackupRecord describes one uploaded database snapshot.
type BackupRecord struct {
	ID         int64
	Filename   string
	UploadedAt time.Time
	SizeBytes  int64
	RemoteKey  string
}

// BackupRepository tracks nightly backup uploads.
type BackupRepository struct {
	*BaseRepository
}

func NewBackupRepository(db *sql.DB, log zerolog.Logger) *BackupRepository {
	return &BackupRepository{BaseRepository: NewBase(db, log, "backup_records")}
}

func (r *BackupRepository) Record(rec BackupRecord) error {
	_, err := r.db.Exec(`INSERT INTO backup_records (filename, uploaded_at, size_bytes, remote_key) VALUES (?, ?, ?, ?)`,
		rec.Filename, rec.UploadedAt, rec.SizeBytes, rec.RemoteKey)
	if err != nil {
		return fmt.Errorf("record backup %s: %w", rec.Filename, err)
	}
	return nil
}

func (r *BackupRepository) Latest() (BackupRecord, bool, error) {
	row := r.db.QueryRow(`SELECT id, filename, uploaded_at, size_bytes, remote_key FROM backup_records ORDER BY uploaded_at DESC LIMIT 1`)
	var rec BackupRecord
	err := row.Scan(&rec.ID, &rec.Filename, &rec.UploadedAt, &rec.SizeBytes, &rec.RemoteKey)
	if err == sql.ErrNoRows {
		return BackupRecord{}, false, nil
	}
	if err != nil {
		return BackupRecord{}, false, fmt.Errorf("latest backup: %w", err)
	}
	return rec, true, nil
}
