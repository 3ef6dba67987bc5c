package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/arduino-trader/internal/clients/broker"
	"github.com/aristath/arduino-trader/internal/config"
	"github.com/aristath/arduino-trader/internal/database"
	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/marketdata"
	"github.com/aristath/arduino-trader/internal/modules/backup"
	"github.com/aristath/arduino-trader/internal/modules/macro"
	"github.com/aristath/arduino-trader/internal/modules/markethours"
	"github.com/aristath/arduino-trader/internal/modules/notifier"
	"github.com/aristath/arduino-trader/internal/modules/portfolio"
	"github.com/aristath/arduino-trader/internal/modules/settings"
	"github.com/aristath/arduino-trader/internal/modules/strategy"
	"github.com/aristath/arduino-trader/internal/modules/tickerstate"
	"github.com/aristath/arduino-trader/internal/scheduler"
	"github.com/aristath/arduino-trader/internal/server"
	"github.com/aristath/arduino-trader/pkg/logger"
	"github.com/rs/zerolog"
)

// defaultUserID scopes the strategy/tick state rows. The engine is
// built for a single brokerage account per deployment, so one fixed
// key is enough; a future multi-account build would derive this from
// config instead.
const defaultUserID = "default"

func main() {
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("starting trading engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.LogLevel != "" {
		log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	}

	db, err := database.New(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	// Repositories
	instruments := repositories.NewInstrumentRepository(db.Conn(), log)
	holdings := repositories.NewHoldingRepository(db.Conn(), log)
	trades := repositories.NewTradeRepository(db.Conn(), log)
	stateRepo := repositories.NewStrategyStateRepository(db.Conn(), log)
	runLog := repositories.NewRunLogRepository(db.Conn(), log)
	financials := repositories.NewFinancialRepository(db.Conn(), log)
	dcfOverrides := repositories.NewDCFOverrideRepository(db.Conn(), log)
	marketRegime := repositories.NewMarketRegimeRepository(db.Conn(), log)
	apiTransactions := repositories.NewApiTransactionRepository(db.Conn(), log)
	backupRecords := repositories.NewBackupRepository(db.Conn(), log)

	// Broker adapter (C1)
	brokerClient := broker.NewClient(broker.Config{
		BaseURL:      cfg.BrokerBaseURL,
		AppKey:       cfg.BrokerAppKey,
		AppSecret:    cfg.BrokerAppSecret,
		AccountNo:    cfg.BrokerAccountNo,
		IsSimulated:  cfg.BrokerIsSimulated,
		AfterHoursOK: true,
		TokenPath:    cfg.TokenCachePath,
	}, log)
	defer brokerClient.Close()
	if err := brokerClient.SetTransactionRepository(apiTransactions); err != nil {
		log.Fatal().Err(err).Msg("failed to seed broker transaction-id table")
	}

	// Settings store (C11)
	settingsStore := settings.New(db.Conn(), log)
	if err := settingsStore.SeedDefaults(); err != nil {
		log.Fatal().Err(err).Msg("failed to seed default settings")
	}
	if err := settingsStore.SetBool("strategy_tick_enabled", false); err != nil {
		log.Warn().Err(err).Msg("failed to reset strategy_tick_enabled on boot")
	}

	// Market calendar, notifier, macro regime, portfolio sync
	calendar := markethours.New()
	notify := notifier.New(cfg.WebhookURL, log)
	notify.Start()
	defer notify.Close()

	macroSvc := macro.New(brokerClient, marketRegime, log)
	portfolioSvc := portfolio.New(brokerClient, holdings, settingsStore, log)

	// Ticker-state cache (C4) and market-data websocket feed (C5)
	tickerCache := tickerstate.New(brokerClient, financials, calendar, log)
	if err := tickerCache.LoadSnapshot(cfg.TickerSnapshotPath); err != nil {
		log.Warn().Err(err).Msg("failed to load ticker-state warm-restart snapshot")
	}

	feed := marketdata.New(cfg.BrokerWSBaseURL, brokerClient, tickerCache, log)
	feedCtx, feedCancel := context.WithCancel(context.Background())
	feed.Start(feedCtx)

	// Strategy engine (C8)
	engine := strategy.New(
		brokerClient, tickerCache, portfolioSvc, macroSvc, calendar,
		instruments, holdings, trades, stateRepo, runLog,
		settingsStore, notify, systemClock{}, log,
	)

	// Backup uploader (optional, only active when a bucket is configured)
	uploader, err := backup.New(context.Background(), backup.Config{
		Bucket:    cfg.BackupBucket,
		Region:    cfg.BackupRegion,
		Endpoint:  cfg.BackupEndpoint,
		AccessKey: cfg.BackupAccessKey,
		SecretKey: cfg.BackupSecretKey,
	}, backupRecords, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize backup uploader")
	}

	// Scheduler (C9)
	sched := scheduler.New(log)
	jobs := registerJobs(registerJobsInput{
		sched:        sched,
		engine:       engine,
		portfolioSvc: portfolioSvc,
		feed:         feed,
		uploader:     uploader,
		broker:       brokerClient,
		instruments:  instruments,
		financials:   financials,
		dcfOverrides: dcfOverrides,
		dbPath:       cfg.DatabasePath,
		log:          log,
	})
	sched.Start()
	defer sched.Stop()

	// Diagnostic HTTP surface
	srv := server.New(server.Config{
		Port:        cfg.Port,
		Log:         log,
		DevMode:     cfg.DevMode,
		Scheduler:   sched,
		Calendar:    calendar,
		Instruments: instruments,
		Holdings:    holdings,
		RunLog:      runLog,
		Backups:     backupRecords,
		Jobs:        jobs,
	})

	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("trading engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	if err := tickerCache.SaveSnapshot(cfg.TickerSnapshotPath); err != nil {
		log.Warn().Err(err).Msg("failed to persist ticker-state warm-restart snapshot")
	}
	feedCancel()
	feed.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	log.Info().Msg("shutdown complete")
}

type registerJobsInput struct {
	sched        *scheduler.Scheduler
	engine       *strategy.Engine
	portfolioSvc *portfolio.Service
	feed         *marketdata.Feed
	uploader     *backup.Uploader
	broker       domain.BrokerClient
	instruments  *repositories.InstrumentRepository
	financials   *repositories.FinancialRepository
	dcfOverrides *repositories.DCFOverrideRepository
	dbPath       string
	log          zerolog.Logger
}

// registerJobs wires every background job onto the scheduler per
// spec.md §4.9's cron table and returns the full job list for the
// diagnostic HTTP surface's manual-trigger endpoint.
func registerJobs(in registerJobsInput) []scheduler.Job {
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{"0 */1 * * * *", scheduler.NewStrategyRunJob(in.engine, defaultUserID, in.log)},
		{"0 */10 * * * *", scheduler.NewPortfolioSyncJob(in.portfolioSvc, in.log)},
		{"0 0 * * * *", scheduler.NewHourlyReportJob(in.engine, in.log)},
		{"0 0 4 * * *", scheduler.NewMarketDataJob(in.broker, in.instruments, in.financials, in.dcfOverrides, systemClock{}, in.log)},
		{"0 0 4 * * *", scheduler.NewBackupJob(in.uploader, in.dbPath, in.log)},
		{"0 30 8 * * *", scheduler.NewUniverseRefreshJob(in.engine, in.feed, in.log)},
		{"0 10 9 * * *", scheduler.NewSectorRebalanceJob(in.engine, defaultUserID, in.log)},
	}

	registered := make([]scheduler.Job, 0, len(jobs))
	for _, j := range jobs {
		if err := in.sched.AddJob(j.schedule, j.job); err != nil {
			in.log.Fatal().Err(err).Str("job", j.job.Name()).Msg("failed to register job")
		}
		registered = append(registered, j.job)
	}
	return registered
}

// systemClock is the production domain.Clock; tests use a fixed clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
