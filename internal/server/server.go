package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/modules/markethours"
	"github.com/aristath/arduino-trader/internal/scheduler"
)

// Config holds the HTTP server's dependencies. There is no dashboard or
// public API here; this is the operator-facing diagnostic surface that
// rides alongside the scheduler (health, runtime stats, job/market
// status, manual job triggers).
type Config struct {
	Port        int
	Log         zerolog.Logger
	DevMode     bool
	Scheduler   *scheduler.Scheduler
	Calendar    *markethours.Calendar
	Instruments *repositories.InstrumentRepository
	Holdings    *repositories.HoldingRepository
	RunLog      *repositories.RunLogRepository
	Backups     *repositories.BackupRepository
	Jobs        []scheduler.Job // registered jobs, for manual re-trigger by name
}

// Server is the ambient operational HTTP surface: health check,
// gopsutil-backed runtime stats, and read-only diagnostics over the
// scheduler and trading state. No trading action can be triggered here
// except re-running an already-scheduled job on demand.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/system", func(r chi.Router) {
		r.Get("/status", s.handleSystemStatus)
		r.Get("/stats", s.handleRuntimeStats)
		r.Get("/markets", s.handleMarketsStatus)
		r.Get("/jobs", s.handleJobsStatus)
		r.Post("/jobs/{name}/run", s.handleTriggerJob)
		r.Get("/backup", s.handleBackupStatus)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type systemStatusResponse struct {
	ActiveInstrumentsKR int    `json:"active_instruments_kr"`
	ActiveInstrumentsUS int    `json:"active_instruments_us"`
	HoldingCount        int    `json:"holding_count"`
	LastRunStartedAt    string `json:"last_run_started_at,omitempty"`
	LastRunFinished     bool   `json:"last_run_finished"`
	LastRunTrades       int    `json:"last_run_trades,omitempty"`
	LastRunError        string `json:"last_run_error,omitempty"`
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := systemStatusResponse{}

	if kr, err := s.cfg.Instruments.ListActive(domain.MarketKR); err == nil {
		resp.ActiveInstrumentsKR = len(kr)
	} else {
		s.log.Warn().Err(err).Msg("list active KR instruments")
	}
	if us, err := s.cfg.Instruments.ListActive(domain.MarketUS); err == nil {
		resp.ActiveInstrumentsUS = len(us)
	} else {
		s.log.Warn().Err(err).Msg("list active US instruments")
	}
	if holdings, err := s.cfg.Holdings.GetAll(); err == nil {
		resp.HoldingCount = len(holdings)
	} else {
		s.log.Warn().Err(err).Msg("list holdings")
	}

	if entry, ok, err := s.cfg.RunLog.Latest(); err == nil && ok {
		resp.LastRunStartedAt = entry.StartedAt.Format(time.RFC3339)
		resp.LastRunFinished = entry.FinishedAt.Valid
		resp.LastRunTrades = entry.TradesExecuted
		resp.LastRunError = entry.Error
	}

	s.writeJSON(w, resp)
}

type runtimeStatsResponse struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemTotalMB float64 `json:"mem_total_mb"`
}

func (s *Server) handleRuntimeStats(w http.ResponseWriter, r *http.Request) {
	resp := runtimeStatsResponse{}

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		resp.CPUPercent = pcts[0]
	} else if err != nil {
		s.log.Debug().Err(err).Msg("read cpu percent")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedMB = float64(vm.Used) / 1024 / 1024
		resp.MemTotalMB = float64(vm.Total) / 1024 / 1024
	} else {
		s.log.Debug().Err(err).Msg("read virtual memory")
	}

	s.writeJSON(w, resp)
}

type marketStatus struct {
	Market   string `json:"market"`
	Open     bool   `json:"open"`
	Extended bool   `json:"extended"`
}

func (s *Server) handleMarketsStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	markets := []domain.Market{domain.MarketKR, domain.MarketUS}
	out := make([]marketStatus, 0, len(markets))
	for _, m := range markets {
		out = append(out, marketStatus{
			Market:   string(m),
			Open:     s.cfg.Calendar.IsOpen(m, now),
			Extended: s.cfg.Calendar.IsOpenExtended(m, now),
		})
	}
	s.writeJSON(w, out)
}

type jobStatusResponse struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Prev     string `json:"prev_run,omitempty"`
	Next     string `json:"next_run,omitempty"`
}

func (s *Server) handleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := s.cfg.Scheduler.Jobs()
	out := make([]jobStatusResponse, 0, len(jobs))
	for _, j := range jobs {
		entry := jobStatusResponse{Name: j.Name, Schedule: j.Schedule}
		if !j.Prev.IsZero() {
			entry.Prev = j.Prev.Format(time.RFC3339)
		}
		if !j.Next.IsZero() {
			entry.Next = j.Next.Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	s.writeJSON(w, out)
}

// handleTriggerJob re-runs an already-registered job by name, outside its
// schedule. It cannot register new work, only re-fire existing jobs.
func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, j := range s.cfg.Jobs {
		if j.Name() != name {
			continue
		}
		if err := s.cfg.Scheduler.RunNow(j); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, map[string]string{"status": "triggered", "job": name})
		return
	}
	http.Error(w, "unknown job: "+name, http.StatusNotFound)
}

func (s *Server) handleBackupStatus(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Backups == nil {
		s.writeJSON(w, map[string]string{"status": "disabled"})
		return
	}
	rec, ok, err := s.cfg.Backups.Latest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		s.writeJSON(w, map[string]string{"status": "none"})
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"filename":    rec.Filename,
		"uploaded_at": rec.UploadedAt.Format(time.RFC3339),
		"size_bytes":  rec.SizeBytes,
		"remote_key":  rec.RemoteKey,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("encode json response")
	}
}

// Handler exposes the router directly, for tests driving requests
// through httptest without a listening socket.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting diagnostic HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
