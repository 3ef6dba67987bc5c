package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus is a read-only snapshot of one registered job's cron entry,
// for the diagnostic endpoint.
type JobStatus struct {
	Name     string
	Schedule string
	Prev     time.Time
	Next     time.Time
}

type jobEntry struct {
	id       cron.EntryID
	name     string
	schedule string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	entries []jobEntry
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule. A job still running
// when its next tick fires is skipped rather than run concurrently
// (cron.SkipIfStillRunning), since every job here closes over shared
// state (the strategy engine, the broker client) that assumes one
// caller at a time.
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 0 9 * * MON-FRI"  - 9 AM weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogAdapter{s.log})).Then(cron.FuncJob(func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	}))

	id, err := s.cron.AddJob(schedule, wrapped)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, jobEntry{id: id, name: job.Name(), schedule: schedule})

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// Jobs returns a snapshot of every registered job's schedule and next/prev
// run time, for the diagnostic HTTP surface.
func (s *Scheduler) Jobs() []JobStatus {
	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		entry := s.cron.Entry(e.id)
		out = append(out, JobStatus{
			Name:     e.name,
			Schedule: e.schedule,
			Prev:     entry.Prev,
			Next:     entry.Next,
		})
	}
	return out
}

// cronLogAdapter routes cron's internal diagnostics (skipped-overlap
// notices) through zerolog instead of the standard library logger cron
// defaults to.
type cronLogAdapter struct{ log zerolog.Logger }

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.Debug().Fields(pairsToMap(keysAndValues)).Msg(msg)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.log.Error().Err(err).Fields(pairsToMap(keysAndValues)).Msg(msg)
}

func pairsToMap(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}
