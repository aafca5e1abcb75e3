// Package main is the entry point of the campus portal core: the callable
// HTTP server, the risk trigger and the role mirror reconciler in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/campus-portal/portal-core/config"
	"github.com/campus-portal/portal-core/internal/application/command"
	"github.com/campus-portal/portal-core/internal/application/eventhandler"
	"github.com/campus-portal/portal-core/internal/application/query"
	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/company"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
	"github.com/campus-portal/portal-core/internal/infrastructure/identity"
	"github.com/campus-portal/portal-core/internal/infrastructure/messaging"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/memory"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/postgres"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/redis"
	"github.com/campus-portal/portal-core/internal/infrastructure/scheduler"
	"github.com/campus-portal/portal-core/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/campus-portal/portal-core/internal/interface/http"
	"github.com/campus-portal/portal-core/pkg/logger"
	"github.com/campus-portal/portal-core/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "portal: %v\n", err)
		os.Exit(1)
	}
}

// eventBus is what both bus implementations offer.
type eventBus interface {
	shared.EventBus
	Drain()
	Close() error
}

// stores groups the repositories the handlers run against.
type stores struct {
	students  student.Repository
	companies company.Repository
	accounts  account.Repository
	claims    account.ClaimsStore
}

func run() error {
	// ─────────────────────────────────────────────────────────────────────
	// 1. Configuration, logging, metrics
	// ─────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: cfg.IsDevelopment(),
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
	defer func() { _ = log.Sync() }()

	var m *metrics.Manager
	if cfg.Observability.MetricsEnabled {
		m = metrics.NewManager(metrics.WithRuntimeCollectors())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := httpserver.NewHealthChecker(cfg.App.Version)

	log.Info("starting portal core",
		logger.String("environment", string(cfg.App.Environment)),
	)

	// ─────────────────────────────────────────────────────────────────────
	// 2. Primary storage
	// ─────────────────────────────────────────────────────────────────────
	var (
		st          stores
		pgConn      *postgres.Connection
		memStudents *memory.StudentRepository
	)
	if cfg.Database.URL != "" {
		pgCfg := postgres.DefaultConfig(cfg.Database.URL)
		if cfg.Database.MaxOpenConns > 0 {
			pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		}
		if cfg.Database.ConnMaxIdleTime > 0 {
			pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		}

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer conn.Close()

		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		st = stores{
			students:  postgres.NewStudentRepository(conn),
			companies: postgres.NewCompanyRepository(conn),
			accounts:  postgres.NewAccountRepository(conn),
			claims:    memory.NewClaimsStore(),
		}
		health.AddReport("postgres", func(ctx context.Context) (string, error) {
			stats, err := conn.Health(ctx)
			if err != nil {
				return "", err
			}
			return stats.String(), nil
		})
		pgConn = conn
		log.Info("connected to postgres")
	} else {
		memStudents = memory.NewStudentRepository()
		st = stores{
			students:  memStudents,
			companies: memory.NewCompanyRepository(),
			accounts:  memory.NewAccountRepository(),
			claims:    memory.NewClaimsStore(),
		}
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// ─────────────────────────────────────────────────────────────────────
	// 3. Redis: claims, company cache, distributed events
	// ─────────────────────────────────────────────────────────────────────
	var bus eventBus
	if !cfg.Redis.Disabled {
		rcfg := redis.DefaultConfig()
		rcfg.Addr = cfg.Redis.Addr()
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			rcfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.MinIdleConns > 0 {
			rcfg.MinIdleConns = cfg.Redis.MinIdleConns
		}
		if cfg.Redis.DialTimeout > 0 {
			rcfg.DialTimeout = cfg.Redis.DialTimeout
		}

		client, err := redis.NewClient(ctx, rcfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()

		cache := redis.NewCache(client)
		st.claims = redis.NewClaimsStore(cache)
		if cfg.Features.Enabled(config.FeatureCompanyCache) {
			st.companies = redis.NewCompanyCache(st.companies, cache, cfg.Pipeline.CompanyCacheTTL, log)
		}
		health.AddCheck("redis", httpserver.PingCheck(cache))

		if cfg.Features.Enabled(config.FeatureDistributedEvents) {
			rbus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
				Client:         redis.NewPubSub(client),
				ChannelName:    cfg.Pipeline.EventChannel,
				LocalBusConfig: localBusConfig(cfg, log, m),
				Logger:         log,
			})
			if err != nil {
				return fmt.Errorf("start redis event bus: %w", err)
			}
			bus = rbus
		}
		log.Info("connected to redis", logger.String("addr", rcfg.Addr))
	} else {
		log.Warn("redis disabled, claim sets are process-local")
		for _, f := range []string{config.FeatureCompanyCache, config.FeatureDistributedEvents} {
			if err := cfg.Features.DisableFeature(f); err != nil {
				log.Warn("feature flag update failed", logger.String("feature", f), logger.Err(err))
			}
		}
	}
	if bus == nil {
		bus = messaging.NewInMemoryEventBus(localBusConfig(cfg, log, m))
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────
	// 4. Risk trigger
	// ─────────────────────────────────────────────────────────────────────
	// Committed record changes come from the store itself: the table trigger
	// in postgres mode, the repository's watch hook in memory mode.
	feed := messaging.NewChangeFeed(bus, log)
	risk := eventhandler.NewOnStudentRecordChangedHandler(st.students, log, m, eventhandler.DefaultRecordChangedConfig())
	if err := bus.Subscribe(shared.EventStudentRecordChanged, risk.Handle); err != nil {
		return fmt.Errorf("subscribe risk scorer: %w", err)
	}

	listenerDone := make(chan struct{})
	if pgConn != nil {
		listener := postgres.NewChangeListener(pgConn, feed.Notify, log, postgres.DefaultChangeListenerConfig())
		go func() {
			defer close(listenerDone)
			if err := listener.Run(ctx); err != nil {
				log.Error("change listener stopped", logger.Err(err))
			}
		}()
	} else {
		close(listenerDone)
		memStudents.Watch(feed.Notify)
	}

	// ─────────────────────────────────────────────────────────────────────
	// 5. Callables
	// ─────────────────────────────────────────────────────────────────────
	validUntil := cfg.Pipeline.CredentialValidUntil
	reconciler := command.NewReconcileRoleMirrorHandler(st.accounts, st.claims, log, m)
	provider := identity.NewProvider(identity.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
	}, st.accounts, st.claims)

	deps := httpserver.Dependencies{
		PlacementReadiness: command.NewComputePlacementReadinessHandler(st.students, log, m),
		SetUserRole: command.NewSetUserRoleHandler(st.accounts, st.claims, bus, log, m, command.SetUserRoleConfig{
			WriteAttempts: cfg.Pipeline.RoleWriteAttempts,
		}),
		AnalyzeSkillGap:   query.NewAnalyzeSkillGapHandler(st.students, st.companies),
		GenerateDigitalID: query.NewGenerateDigitalIDHandler(st.students, validUntil),
		VerifyDigitalID:   query.NewVerifyDigitalIDHandler(st.students, validUntil),
		Auth:              provider,
		SignIn:            provider,
		Features:          cfg.Features,
		Health:            health,
		Metrics:           m,
		Logger:            log,
	}

	// ─────────────────────────────────────────────────────────────────────
	// 6. Scheduler
	// ─────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		scfg := scheduler.DefaultConfig()
		if cfg.Scheduler.MaxConcurrentJobs > 0 {
			scfg.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
		}
		sched = scheduler.New(scfg, log, m)

		job := jobs.NewReconcileRolesJob(reconciler, cfg.Features, log, jobs.ReconcileRolesConfig{
			BatchSize: cfg.Scheduler.RoleReconcileBatch,
			Timeout:   cfg.Scheduler.JobTimeout,
		})
		if err := sched.Register(job, scheduler.Every(cfg.Scheduler.RoleReconcileInterval)); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────
	// 7. HTTP server
	// ─────────────────────────────────────────────────────────────────────
	hcfg := httpserver.DefaultConfig()
	hcfg.Host = cfg.HTTP.Host
	hcfg.Port = cfg.HTTP.Port
	hcfg.ReadTimeout = cfg.HTTP.ReadTimeout
	hcfg.WriteTimeout = cfg.HTTP.WriteTimeout
	hcfg.IdleTimeout = cfg.HTTP.IdleTimeout
	hcfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	hcfg.RateLimitRPS = cfg.HTTP.RateLimitRPS
	hcfg.TrustedProxies = cfg.HTTP.TrustedProxies
	hcfg.Version = cfg.App.Version
	hcfg.MetricsPath = ""
	if cfg.Observability.MetricsEnabled {
		hcfg.MetricsPath = cfg.Observability.MetricsPath
	}

	srv := httpserver.NewServer(hcfg, deps)
	serveErr := srv.StartAsync()

	// ─────────────────────────────────────────────────────────────────────
	// 8. Wait for shutdown
	// ─────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}
	if sched != nil {
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Error("scheduler stop failed", logger.Err(err))
		}
	}
	cancel()
	<-listenerDone
	bus.Drain()

	log.Info("portal core stopped")
	return runErr
}

func localBusConfig(cfg *config.Config, log *logger.Logger, m *metrics.Manager) messaging.InMemoryEventBusConfig {
	bc := messaging.DefaultInMemoryEventBusConfig()
	bc.AsyncMode = cfg.Pipeline.AsyncEvents
	if cfg.Pipeline.EventWorkers > 0 {
		bc.WorkerPoolSize = cfg.Pipeline.EventWorkers
	}
	bc.Logger = log
	bc.Metrics = m
	return bc
}
