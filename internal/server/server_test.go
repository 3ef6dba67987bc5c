package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database"
	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/modules/markethours"
	"github.com/aristath/arduino-trader/internal/scheduler"
	"github.com/aristath/arduino-trader/internal/server"
)

type fakeJob struct {
	name string
	ran  bool
}

func (f *fakeJob) Name() string { return f.name }
func (f *fakeJob) Run() error   { f.ran = true; return nil }

func newTestServer(t *testing.T) (*server.Server, *fakeJob) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sched := scheduler.New(zerolog.Nop())
	job := &fakeJob{name: "hourly_report"}
	require.NoError(t, sched.AddJob("@every 1h", job))
	sched.Start()
	t.Cleanup(sched.Stop)

	srv := server.New(server.Config{
		Port:        0,
		Log:         zerolog.Nop(),
		DevMode:     true,
		Scheduler:   sched,
		Calendar:    markethours.New(),
		Instruments: repositories.NewInstrumentRepository(db.Conn(), zerolog.Nop()),
		Holdings:    repositories.NewHoldingRepository(db.Conn(), zerolog.Nop()),
		RunLog:      repositories.NewRunLogRepository(db.Conn(), zerolog.Nop()),
		Backups:     repositories.NewBackupRepository(db.Conn(), zerolog.Nop()),
		Jobs:        []scheduler.Job{job},
	})
	return srv, job
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_SystemStatus_EmptyDatabase(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["active_instruments_kr"])
	assert.Equal(t, float64(0), body["holding_count"])
}

func TestServer_BackupStatus_NoneRecorded(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/backup", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "none", body["status"])
}

func TestServer_TriggerJob_RunsRegisteredJob(t *testing.T) {
	srv, job := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/system/jobs/hourly_report/run", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, job.ran)
}

func TestServer_TriggerJob_UnknownNameReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/system/jobs/nonexistent/run", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
