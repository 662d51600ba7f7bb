package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/urfave/cli/v2"

	"github.com/luispfcanales/daemon-dnsq/internal/application/actors"
	"github.com/luispfcanales/daemon-dnsq/internal/application/api"
	"github.com/luispfcanales/daemon-dnsq/internal/application/events"
	"github.com/luispfcanales/daemon-dnsq/internal/application/report"
	"github.com/luispfcanales/daemon-dnsq/internal/application/scheduler"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
	"github.com/luispfcanales/daemon-dnsq/internal/core/stats"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/adapters/probers"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/logger"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/metrics"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/repositories"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/repositories/postgres"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/services"
)

const serviceName = "dnsq"

// runApp validates the configuration, then runs either as a Windows service
// or in the console until interrupted.
func runApp(c *cli.Context) error {
	if !c.IsSet("interval") {
		return cli.Exit("error: --interval is required", 1)
	}
	cfg, err := buildConfigFromCLI(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}

	isService, err := isWindowsService()
	if err != nil {
		return fmt.Errorf("detecting execution mode: %w", err)
	}
	if isService {
		return runAsService(serviceName, cfg)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runApplication(ctx, cfg); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// runApplication wires every component and blocks until ctx is cancelled or
// a stop is requested through the API or stdin.
func runApplication(ctx context.Context, cfg *AppConfig) error {
	log, logCloser, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	repo, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Kind, err)
	}
	defer repo.Close()

	statsEngine := stats.NewEngine(stats.WithVarianceTolerance(cfg.VarianceTolerance))
	if cfg.Resume {
		if err := resumeProfiles(ctx, repo, statsEngine, log); err != nil {
			return err
		}
	}

	prober, err := newProber(cfg.Prober)
	if err != nil {
		return fmt.Errorf("creating %s prober: %w", cfg.Prober.Kind, err)
	}

	eventBus := events.NewEventBus(log)
	recorder := metrics.NewRecorder()

	engine, err := actor.NewEngine(actor.NewEngineConfig())
	if err != nil {
		return fmt.Errorf("creating actor engine: %w", err)
	}
	loggerPID := engine.Spawn(actors.NewConsoleLogger(log), "logger")
	engine.Subscribe(loggerPID)
	defer engine.Poison(loggerPID)

	pool := actors.NewProberPool(engine, cfg.Scheduler.Domains, actors.ProberDeps{
		Prober:       prober,
		Stats:        statsEngine,
		Repository:   repo,
		EventBus:     eventBus,
		ProbeTimeout: cfg.Prober.DNS.Timeout,
		StoreTimeout: cfg.Store.Timeout,
		Log:          log,
	})
	defer func() {
		if err := pool.Stop(); err != nil {
			log.Warn("stopping domain probers", "error", err)
		}
	}()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	opts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithObservers(recorder, eventBus),
	}
	if cfg.Report {
		opts = append(opts, scheduler.WithReporter(report.NewTableReporter(repo, os.Stdout)))
	}
	if len(cfg.NotifyRecipients) > 0 {
		mailer := services.NewEmailService(cfg.Email)
		opts = append(opts, scheduler.WithNotifier(services.NewMonitoringNotifier(mailer, cfg.NotifyRecipients)))
	}
	sched, err := scheduler.New(cfg.Scheduler, pool, opts...)
	if err != nil {
		return err
	}

	if cfg.StdinExit {
		go watchStdin(runCtx, os.Stdin, stop, log)
	}

	var server *http.Server
	serverErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		router := api.NewRouter(api.RouterConfig{
			Store:    repo,
			Live:     statsEngine,
			Status:   sched,
			Stop:     stop,
			EventBus: eventBus,
			Metrics:  recorder.Handler(),
			Log:      log,
		})
		server = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			log.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
				stop()
			}
		}()
	}

	log.Info("dnsq started",
		"version", AppVersion,
		"prober", cfg.Prober.Kind,
		"store", cfg.Store.Kind,
		"domains", cfg.Scheduler.Domains)

	runErr := sched.Run(runCtx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown", "error", err)
		}
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	return runErr
}

func openStore(ctx context.Context, cfg StoreConfig, log *slog.Logger) (ports.ProfileRepository, error) {
	switch cfg.Kind {
	case "memory":
		return repositories.NewInMemoryProfileRepository(), nil
	case "csv":
		return repositories.NewCSVProfileRepository(cfg.CSVPath)
	case "postgres":
		dsn, err := cfg.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		return postgres.Open(ctx, dsn, log)
	case "redis":
		return repositories.NewRedisProfileRepository(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Kind)
}

func newProber(cfg ProberConfig) (ports.LatencyProber, error) {
	switch cfg.Kind {
	case "dns":
		return probers.NewDNSProber(cfg.DNS)
	case "system":
		return probers.NewSystemProber(cfg.DNS.Timeout, cfg.DNS.CacheBust), nil
	case "icmp":
		return probers.NewICMPProber(cfg.DNS.Timeout, cfg.ICMPPrivileged, cfg.DNS.Family), nil
	}
	return nil, fmt.Errorf("unknown prober %q", cfg.Kind)
}

func resumeProfiles(ctx context.Context, repo ports.ProfileReader, engine *stats.Engine, log *slog.Logger) error {
	profiles, err := repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("reading stored profiles: %w", err)
	}
	skipped := engine.Restore(profiles)
	for _, name := range skipped {
		log.Warn("skipping invalid stored profile", "domain", name)
	}
	log.Info("profiles resumed", "restored", len(profiles)-len(skipped), "skipped", len(skipped))
	return nil
}
