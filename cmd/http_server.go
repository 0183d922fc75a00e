package cmd

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

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/auth"
	"github.com/frahmantamala/evaluation-sync/internal/core/events"
	"github.com/frahmantamala/evaluation-sync/internal/directory"
	"github.com/frahmantamala/evaluation-sync/internal/level"
	"github.com/frahmantamala/evaluation-sync/internal/metrics"
	"github.com/frahmantamala/evaluation-sync/internal/reconciliation"
	reconciliationPostgres "github.com/frahmantamala/evaluation-sync/internal/reconciliation/postgres"
	"github.com/frahmantamala/evaluation-sync/internal/relationship"
	relationshipPostgres "github.com/frahmantamala/evaluation-sync/internal/relationship/postgres"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
	tenancyPostgres "github.com/frahmantamala/evaluation-sync/internal/tenancy/postgres"
	"github.com/frahmantamala/evaluation-sync/internal/transport"
	"github.com/frahmantamala/evaluation-sync/internal/transport/rest"
	"github.com/frahmantamala/evaluation-sync/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server exposing sync, relationship and health endpoints`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config        *internal.Config
	DB            *sqlx.DB
	Gorm          *gorm.DB
	Redis         *redis.Client
	Router        *chi.Mux
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Bus           *events.EventBus
	Issuer        auth.TokenIssuer
	Tenants       tenancy.RepositoryAPI
	Sync          *reconciliation.Service
	Relationships *relationship.Service

	closers []func() error
}

// Close releases every connection the dependencies opened, newest first.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Error("close failed", "error", err)
		}
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	if deps.Issuer == nil {
		fmt.Fprintln(os.Stderr, "directory.service_token_secret is required to serve tenant routes")
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	base := transport.NewBaseHandler(deps.Logger)

	routes := rest.Routes{
		DB:                  deps.DB.DB,
		Redis:               deps.Redis,
		Issuer:              deps.Issuer,
		Violations:          deps.Metrics,
		SyncHandler:         reconciliation.NewHandler(base, deps.Sync),
		RelationshipHandler: relationship.NewHandler(base, deps.Relationships),
		Logger:              deps.Logger,
	}
	if deps.Config.Observability.Metrics.Enabled {
		routes.Metrics = deps.Metrics.Handler()
		routes.MetricsPath = deps.Config.Observability.Metrics.Path
	}
	rest.RegisterAllRoutes(deps.Router, routes)
}

func initializeDependencies() (*Dependencies, error) {
	return newDependencies(false)
}

// initializeOneShotDependencies delivers events before Publish returns, so
// a command that exits right after one run still logs them.
func initializeOneShotDependencies() (*Dependencies, error) {
	return newDependencies(true)
}

func newDependencies(inlineEvents bool) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	deps := &Dependencies{
		Config:  config,
		Logger:  lg,
		Router:  chi.NewRouter(),
		Metrics: metrics.NewMetrics(),
		Bus:     events.NewEventBus(lg),
	}
	fail := func(err error) (*Dependencies, error) {
		deps.Close()
		return nil, err
	}

	db, err := initDB(config.Database)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize database: %w", err))
	}
	deps.DB = db
	deps.closers = append(deps.closers, db.Close)

	deps.Gorm, err = initGorm(db)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize gorm: %w", err))
	}

	if config.Redis.Addr != "" {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		deps.closers = append(deps.closers, deps.Redis.Close)
	}

	if config.Directory.ServiceTokenSecret != "" {
		deps.Issuer = auth.NewJWTTokenIssuer(config.Directory.ServiceTokenSecret, config.Directory.ServiceTokenTTL)
	}

	subscribeSyncEvents(deps.Bus, lg)

	deps.Tenants = tenancyPostgres.NewTenantRepository(deps.Gorm)
	guard := tenancy.NewGuard(deps.Tenants, deps.Metrics, lg)
	if err := guard.Register(deps.Gorm); err != nil {
		return fail(fmt.Errorf("failed to register tenancy callbacks: %w", err))
	}

	source, err := buildSource(deps, lg)
	if err != nil {
		return fail(err)
	}

	normalizer, err := buildNormalizer(config.Normalization)
	if err != nil {
		return fail(err)
	}

	policies, err := buildPolicies(config.Evaluation)
	if err != nil {
		return fail(err)
	}

	locker := buildLocker(config.Sync, deps.Redis, lg)
	lg.Info("level normalizer ready", "rules", len(normalizer.Rules()))

	var publisher events.Publisher = deps.Bus
	if inlineEvents {
		publisher = deps.Bus.Inline()
	}

	deps.Relationships = relationship.NewService(
		relationshipPostgres.NewRelationshipRepository(deps.Gorm),
		guard, policies, locker, publisher, deps.Metrics, lg)

	deps.Sync = reconciliation.NewService(reconciliation.Dependencies{
		Guard:        guard,
		Source:       source,
		Normalizer:   normalizer,
		Store:        reconciliationPostgres.NewStore(deps.Gorm),
		Generator:    deps.Relationships,
		Locker:       locker,
		Publisher:    publisher,
		Recorder:     deps.Metrics,
		Logger:       lg,
		FetchTimeout: config.Directory.FetchTimeout,
	})

	return deps, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm so both see the same limits.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

func buildSource(deps *Dependencies, lg *slog.Logger) (directory.Source, error) {
	cfg := deps.Config.Directory

	var source directory.Source
	switch cfg.Kind {
	case internal.DirectoryKindSQL:
		dirDB, err := sqlx.Connect("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to directory database: %w", err)
		}
		deps.closers = append(deps.closers, dirDB.Close)
		source = directory.NewSQLSource(dirDB, cfg.FetchTimeout, lg)
	default:
		source = directory.NewHTTPSource(directory.HTTPConfig{
			BaseURL:  cfg.BaseURL,
			PageSize: cfg.PageSize,
			Timeout:  cfg.FetchTimeout,
		}, deps.Issuer, lg)
	}

	return directory.WithRetry(source, cfg.RetryAttempts, 0, lg), nil
}

func buildNormalizer(cfg internal.NormalizationConfig) (*level.Normalizer, error) {
	if len(cfg.Rules) == 0 {
		return level.Default(), nil
	}
	rules := make([]level.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, level.Rule{Pattern: r.Pattern, Match: level.MatchKind(r.Match), Level: r.Level})
	}
	normalizer, err := level.NewNormalizer(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid normalization rules: %w", err)
	}
	return normalizer, nil
}

func buildPolicies(cfg internal.EvaluationConfig) (*relationship.Policies, error) {
	defaults := relationship.Policy{
		SeniorThreshold: cfg.SeniorThreshold,
		ManagerPatterns: cfg.ManagerPatterns,
		MiddleBand:      relationship.LevelBand{Min: cfg.MiddleBandMin, Max: cfg.MiddleBandMax},
	}
	policies, err := relationship.LoadPolicies(cfg.PolicyFile, defaults)
	if err != nil {
		return nil, fmt.Errorf("invalid evaluation policy: %w", err)
	}
	return policies, nil
}

// buildLocker picks redis when configured so that several replicas never
// sync one tenant at the same time.
func buildLocker(cfg internal.SyncConfig, client *redis.Client, lg *slog.Logger) tenancy.Locker {
	if client == nil {
		return tenancy.NewLocalLocker()
	}
	return tenancy.NewRedisLocker(client, cfg.LockTTL, lg)
}

func subscribeSyncEvents(bus *events.EventBus, lg *slog.Logger) {
	logEvent := func(_ context.Context, event events.Event) error {
		lg.Info("sync event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	}
	bus.Subscribe(events.EventTypeEmployeesReconciled, logEvent)
	bus.Subscribe(events.EventTypeRelationshipsGenerated, logEvent)
	bus.Subscribe(events.EventTypeSyncFailed, logEvent)
}
