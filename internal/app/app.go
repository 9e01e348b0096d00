package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/nearby-backend/internal/clients/oracle"
	"github.com/yungbote/nearby-backend/internal/data/db"
	"github.com/yungbote/nearby-backend/internal/data/repos"
	apphttp "github.com/yungbote/nearby-backend/internal/http"
	httpH "github.com/yungbote/nearby-backend/internal/http/handlers"
	httpMW "github.com/yungbote/nearby-backend/internal/http/middleware"
	"github.com/yungbote/nearby-backend/internal/jobs/pipeline/pair_analysis"
	"github.com/yungbote/nearby-backend/internal/jobs/pipeline/profile_enrichment"
	"github.com/yungbote/nearby-backend/internal/jobs/queue"
	"github.com/yungbote/nearby-backend/internal/jobs/runtime"
	"github.com/yungbote/nearby-backend/internal/jobs/worker"
	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
	"github.com/yungbote/nearby-backend/internal/realtime"
	"github.com/yungbote/nearby-backend/internal/services"
	"github.com/yungbote/nearby-backend/internal/temporalx"
	"github.com/yungbote/nearby-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Auth      services.AuthService
	Proximity services.ProximityIndex
	Nearby    services.NearbyService
	Scheduler services.PairScheduler
	Profiles  services.ProfileService
	Analyses  services.AnalysisService
	Blocks    services.BlockService
}

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Repos    repos.Set
	Services Services
	Metrics  *observability.Metrics

	Bus      *realtime.Bus
	Hub      *realtime.Hub
	Relay    *realtime.RedisRelay
	Queue    *queue.Queue
	Executor *runtime.Executor
	Worker   *worker.Worker
	Server   *apphttp.Server

	temporal       temporalsdkclient.Client
	temporalRunner *temporalworker.Runner
	pg             *db.PostgresService
	shutdownOtel   func(context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
}

// deps are the externally owned handles build wires around.
type deps struct {
	DB       *gorm.DB
	Oracle   oracle.Oracle
	Metrics  *observability.Metrics
	Temporal temporalsdkclient.Client
}

func New(cfg Config) (*App, error) {
	log, err := logger.NewWithOptions(logger.Options{
		Mode:     cfg.LogMode,
		Redact:   cfg.LogRedaction,
		HashSalt: cfg.LogHashSalt,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdownOtel := observability.InitOTel(context.Background(), log, cfg.Otel.otel())
	metrics := observability.Init()

	pg, err := db.NewPostgresService(cfg.Postgres.db(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}

	client, err := oracle.NewClient(log, cfg.Oracle.client())
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("init oracle client: %w", err)
	}

	tc, err := temporalx.NewClient(log, cfg.Temporal.client())
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("init temporal client: %w", err)
	}

	a, err := build(log, cfg, deps{DB: pg.DB(), Oracle: client, Metrics: metrics, Temporal: tc})
	if err != nil {
		if tc != nil {
			tc.Close()
		}
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	a.pg = pg
	a.shutdownOtel = shutdownOtel
	return a, nil
}

func build(log *logger.Logger, cfg Config, d deps) (*App, error) {
	log.Info("Wiring application...")
	reposet := repos.NewSet(d.DB, log)

	bus := realtime.NewBus(log)
	hub := realtime.NewHub(log)
	bus.SubscribeAll(hub.Handle)
	bus.SubscribeAll(realtime.CountEvents)

	var relay *realtime.RedisRelay
	if cfg.Redis.Addr != "" {
		r, err := realtime.NewRedisRelay(log, cfg.Redis.relay(), hub)
		if err != nil {
			return nil, fmt.Errorf("init redis relay: %w", err)
		}
		relay = r
		bus.SubscribeAll(relay.Handle)
	}

	q := queue.New(log, reposet.Jobs, queue.Config{MaxAttempts: cfg.Jobs.MaxAttempts})
	txr := db.NewTxRunner(d.DB)

	index := services.NewProximityIndex(log, reposet.Profiles)
	scheduler := services.NewPairScheduler(log, index, reposet.Blocks, q)
	svcs := Services{
		Auth:      services.NewAuthService(log, cfg.JWTSecretKey),
		Proximity: index,
		Nearby:    services.NewNearbyService(log, index),
		Scheduler: scheduler,
		Profiles:  services.NewProfileService(log, reposet.Profiles, scheduler, q, cfg.DefaultRadiusMeters),
		Analyses:  services.NewAnalysisService(log, reposet.Profiles, reposet.Blocks, reposet.Analyses, q),
		Blocks:    services.NewBlockService(log, txr, reposet.Profiles, reposet.Blocks, reposet.Analyses),
	}

	pair := pair_analysis.New(log, txr, reposet.Profiles, reposet.Blocks, reposet.Analyses, d.Oracle, bus)
	enrich := profile_enrichment.New(log, reposet.Profiles, d.Oracle, scheduler, cfg.DefaultRadiusMeters)
	registry, err := runtime.NewRegistry(pair, enrich)
	if err != nil {
		return nil, fmt.Errorf("job registry: %w", err)
	}
	exec := runtime.NewExecutor(log, reposet.Jobs, registry, runtime.ExecutorConfig{
		RetryDelay:   cfg.Jobs.RetryDelay,
		StaleRunning: cfg.Jobs.StaleRunning,
	})

	a := &App{
		Log:      log,
		Cfg:      cfg,
		DB:       d.DB,
		Repos:    reposet,
		Services: svcs,
		Metrics:  d.Metrics,
		Bus:      bus,
		Hub:      hub,
		Relay:    relay,
		Queue:    q,
		Executor: exec,
		temporal: d.Temporal,
	}

	if d.Temporal != nil {
		runner, err := temporalworker.NewRunner(log, d.Temporal, cfg.Temporal.client(), exec, reposet.Jobs, temporalworker.Options{
			Concurrency:  cfg.Jobs.Concurrency,
			StartMaxWait: cfg.Temporal.DialMaxWait,
		})
		if err != nil {
			return nil, err
		}
		q.SetDispatcher(temporalx.NewDispatcher(d.Temporal, cfg.Temporal.client()))
		a.temporalRunner = runner
	} else {
		a.Worker = worker.NewWorker(log, exec, reposet.Jobs, q.Wake(), worker.Config{
			Concurrency:  cfg.Jobs.Concurrency,
			PollInterval: cfg.Jobs.PollInterval,
		})
	}

	authMW := httpMW.NewAuthMiddleware(log, svcs.Auth, svcs.Profiles)
	ws := realtime.NewWSServer(log, hub, svcs.Auth)
	a.Server = apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		ServiceName:     otelServiceName(cfg.Otel),
		CORSOrigins:     cfg.CORSOrigins,
		Metrics:         d.Metrics,
		AuthMiddleware:  authMW,
		NearbyHandler:   httpH.NewNearbyHandler(svcs.Nearby, cfg.DefaultRadiusMeters),
		ScheduleHandler: httpH.NewScheduleHandler(log, scheduler, cfg.DefaultRadiusMeters),
		AnalysisHandler: httpH.NewAnalysisHandler(svcs.Analyses),
		ProfileHandler:  httpH.NewProfileHandler(svcs.Profiles),
		BlockHandler:    httpH.NewBlockHandler(svcs.Blocks),
		RealtimeHandler: httpH.NewRealtimeHandler(ws),
		HealthHandler:   httpH.NewHealthHandler(d.DB),
	})
	return a, nil
}

func otelServiceName(c OtelConfig) string {
	if !c.Enabled {
		return ""
	}
	return c.ServiceName
}

// Start launches the background machinery: the relay and whichever job
// backend is configured.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)

	if a.Relay != nil {
		if err := a.Relay.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("start relay: %w", err)
		}
	}
	if a.temporalRunner != nil {
		if err := a.temporalRunner.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	if a.Worker != nil {
		a.Worker.Start(ctx)
	}
	a.cancel = cancel
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", a.Cfg.Addr())
	return a.Server.Run(a.Cfg.Addr())
}

// Close stops intake first, then drains in-flight work, then releases
// connections.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()

	if a.Worker != nil {
		a.Worker.Stop()
	}
	if a.temporalRunner != nil {
		a.temporalRunner.Stop()
	}
	if a.Services.Scheduler != nil {
		a.Services.Scheduler.Wait()
	}
	if a.Bus != nil {
		a.Bus.Close()
	}
	if a.Relay != nil {
		if err := a.Relay.Close(); err != nil {
			errs = append(errs, fmt.Errorf("relay close: %w", err))
		}
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.shutdownOtel != nil {
		otelCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.shutdownOtel(otelCtx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
		cancel()
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
