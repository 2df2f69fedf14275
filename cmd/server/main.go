/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the customs case engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, parse flags, resolve config (defaults -> file -> env)
  2. Initialize SQLite store
  3. Load org chart and seed fine rules
  4. Build the fine service and the access controller
  5. Connect notification sinks (log, optional Redis)
  6. Configure HTTP router and start the sync scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (default: config.yaml, optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sync scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (shutdown timeout)
  4. Close Redis and database connections

EXAMPLES:
  # Run with file database
  ./server -db="./data/cases.db"

  # Run with in-memory database and reject unknown officers
  UNKNOWN_OFFICER_POLICY=reject ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Configuration and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/customs-les/case-engine/access"
	"github.com/customs-les/case-engine/api"
	"github.com/customs-les/case-engine/config"
	"github.com/customs-les/case-engine/factory"
	"github.com/customs-les/case-engine/fines"
	"github.com/customs-les/case-engine/notify"
	"github.com/customs-les/case-engine/store/sqlite"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Flags
	configPath := flag.String("config", "config.yaml", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	// Used until the configured logger exists.
	boot, _ := zap.NewProduction()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal("failed to load config", zap.Error(err))
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		boot.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	// Org chart
	chart := access.DefaultOrgChart()
	if cfg.Access.OrgChartFile != "" {
		chart, err = access.LoadOrgChart(cfg.Access.OrgChartFile)
		if err != nil {
			return err
		}
		logger.Info("org chart loaded", zap.String("file", cfg.Access.OrgChartFile))
	}

	// Seed rules
	if err := seedRules(ctx, cfg.Rules, store, logger); err != nil {
		return err
	}

	// Notification sinks
	sinks := notify.Fanout{notify.NewLogNotifier(logger)}
	var inbox api.InboxReader
	if cfg.Redis.Enabled {
		rn, err := notify.DialRedis(notify.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Prefix:    cfg.Redis.Prefix,
			InboxSize: cfg.Redis.InboxSize,
		})
		if err != nil {
			return err
		}
		defer rn.Close()
		sinks = append(sinks, rn)
		inbox = rn
		logger.Info("redis notifications enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// Domain components
	service := fines.NewService(store, store)

	controller := access.NewController(chart, store)
	controller.Cases = store
	controller.Notifier = sinks
	controller.Logger = logger.Named("access")
	controller.Policy = cfg.Access.Policy()
	controller.Fallback = cfg.Access.FallbackChain()

	// HTTP
	handler := api.NewHandler(service, controller)
	handler.Store = store
	handler.Inbox = inbox
	handler.Logger = logger.Named("http")

	scheduler := api.NewSyncScheduler(controller, store, logger.Named("sync"), handler.Metrics)
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Enabled = cfg.Scheduler.Enabled
	handler.Scheduler = scheduler

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg.Server.CORSOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.Database.Path),
			zap.String("unknown_officer_policy", string(controller.Policy)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		scheduler.Stop()
		return err
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// seedRules loads the configured seed file, or the presets when none is set.
// Rules that already exist are left alone.
func seedRules(ctx context.Context, cfg config.RulesConfig, store fines.RuleStore, logger *zap.Logger) error {
	var (
		rules []fines.CalculationRule
		err   error
	)
	switch {
	case cfg.SeedFile != "":
		rules, err = factory.LoadRules(cfg.SeedFile)
	case cfg.SeedDefaults:
		rules, err = factory.DefaultRules()
	default:
		return nil
	}
	if err != nil {
		return err
	}

	created, err := factory.Seed(ctx, store, rules)
	if err != nil {
		return err
	}
	logger.Info("rules seeded", zap.Int("created", created), zap.Int("total", len(rules)))
	return nil
}
