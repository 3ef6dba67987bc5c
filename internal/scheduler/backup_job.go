package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/modules/backup"
)

// BackupJob streams the database file to object storage. Registered in
// the same daily 04:00 slot as MarketDataJob; the two cron entries fire
// together and run independently, so a backup may finish before that
// day's sync does.
type BackupJob struct {
	log      zerolog.Logger
	uploader *backup.Uploader
	dbPath   string
}

func NewBackupJob(uploader *backup.Uploader, dbPath string, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		log:      log.With().Str("job", "backup").Logger(),
		uploader: uploader,
		dbPath:   dbPath,
	}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error {
	if j.uploader == nil {
		j.log.Debug().Msg("backup uploader not configured, skipping")
		return nil
	}
	return j.uploader.Upload(context.Background(), j.dbPath)
}
