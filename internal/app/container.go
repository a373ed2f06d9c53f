// Package app wires application dependencies for the CLI, API, worker,
// and MCP entrypoints.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/services"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	anniversariesPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/infrastructure/persistence"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/infrastructure/caldav"
	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/infrastructure/google"
	calendarPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/infrastructure/persistence"
	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/infrastructure/resilience"
	"github.com/raziel-gershoni/calbrew-sub001/internal/identity/application/oauth"
	identityPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/identity/infrastructure/persistence"
	sharedApplication "github.com/raziel-gershoni/calbrew-sub001/internal/shared/application"
	sharedCrypto "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/crypto"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/database"
	databasePostgres "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/database/postgres"
	databaseSQLite "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/database/sqlite"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/eventbus"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/lock"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/migrations"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/config"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/observability"
)

// Google OAuth2 endpoints and the calendar scope the service needs.
const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	googleScope    = "https://www.googleapis.com/auth/calendar"
)

// Container holds all application dependencies. Server mode runs on
// PostgreSQL with Redis locks and RabbitMQ; local mode runs everything
// in-process on SQLite.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics

	// Storage. Exactly one of DB and SQLiteDB is set.
	DB       *pgxpool.Pool
	SQLiteDB *sql.DB
	DBDriver database.Driver

	RedisClient *redis.Client

	// Repositories
	EventRepo      domain.EventRepository
	OccurrenceRepo domain.OccurrenceRepository
	SyncRunRepo    domain.SyncRunRepository
	BindingRepo    calendarDomain.CalendarBindingRepository
	TokenRepo      oauth.TokenRepository
	OutboxRepo     outbox.Repository

	UnitOfWork sharedApplication.UnitOfWork
	Locker     lock.Locker

	EventPublisher  eventbus.Publisher
	OutboxProcessor *outbox.Processor

	// Calendar access
	OAuthService     *oauth.Service
	ProviderRegistry *calendarApp.ProviderRegistry
	BindingResolver  *calendarApp.BindingResolver

	// Application services
	Materializer      *services.OccurrenceMaterializer
	ProgressionSyncer *services.ProgressionSyncer

	// Command handlers
	CreateEventHandler            *commands.CreateEventHandler
	UpdateEventHandler            *commands.UpdateEventHandler
	DeleteEventHandler            *commands.DeleteEventHandler
	SyncNewYearsHandler           *commands.SyncNewYearsHandler
	ProcessUserProgressionHandler *commands.ProcessUserProgressionHandler

	// Query handlers
	ListEventsHandler       *queries.ListEventsHandler
	GetEventHandler         *queries.GetEventHandler
	CheckProgressionHandler *queries.CheckProgressionHandler
	ListSyncRunsHandler     *queries.ListSyncRunsHandler

	Health *observability.HealthRegistry
}

// NewContainer creates and wires all dependencies. The database driver is
// detected from DATABASE_URL; an empty URL selects local SQLite mode.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NoopMetrics{},
		Health:  observability.NewHealthRegistry(),
	}

	var err error
	switch database.DetectDriver(cfg.DatabaseURL) {
	case database.DriverSQLite:
		err = c.initSQLite(ctx)
	default:
		err = c.initPostgres(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := c.initRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}

	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}

	if err := c.initProviders(); err != nil {
		c.Close()
		return nil, err
	}

	c.initApplication()

	return c, nil
}

// initPostgres connects the pgx pool, runs goose migrations, and builds
// the PostgreSQL repositories.
func (c *Container) initPostgres(ctx context.Context) error {
	cfg := c.Config

	pool, err := databasePostgres.Connect(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	c.Logger.Info("connected to database", "driver", database.DriverPostgres)

	// goose needs database/sql; borrow a stdlib view of the pool.
	migrationDB := stdlib.OpenDBFromPool(pool)
	if err := migrations.UpPostgres(ctx, migrationDB, c.Logger); err != nil {
		_ = migrationDB.Close()
		pool.Close()
		return fmt.Errorf("run postgres migrations: %w", err)
	}
	if err := migrationDB.Close(); err != nil {
		c.Logger.Warn("error closing migration connection", "error", err)
	}

	c.DB = pool
	c.DBDriver = database.DriverPostgres

	c.EventRepo = anniversariesPersistence.NewPostgresEventRepository(pool)
	c.OccurrenceRepo = anniversariesPersistence.NewPostgresOccurrenceRepository(pool)
	c.SyncRunRepo = anniversariesPersistence.NewPostgresSyncRunRepository(pool)
	c.BindingRepo = calendarPersistence.NewPostgresCalendarBindingRepository(pool)
	c.TokenRepo = identityPersistence.NewPostgresTokenRepository(pool)
	c.OutboxRepo = outbox.NewPostgresRepository(pool)
	c.UnitOfWork = sharedPersistence.NewPostgresUnitOfWork(pool)

	c.Health.Register("database", observability.DatabaseHealthChecker(pool.Ping))

	return nil
}

// initSQLite opens the local database, applies migrations, and builds
// the SQLite repositories.
func (c *Container) initSQLite(ctx context.Context) error {
	cfg := c.Config

	db, err := databaseSQLite.Open(ctx, database.Config{
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	c.Logger.Info("connected to database", "driver", database.DriverSQLite)

	if err := migrations.UpSQLite(ctx, db, c.Logger); err != nil {
		_ = db.Close()
		return fmt.Errorf("run sqlite migrations: %w", err)
	}

	c.SQLiteDB = db
	c.DBDriver = database.DriverSQLite

	c.EventRepo = anniversariesPersistence.NewSQLiteEventRepository(db)
	c.OccurrenceRepo = anniversariesPersistence.NewSQLiteOccurrenceRepository(db)
	c.SyncRunRepo = anniversariesPersistence.NewSQLiteSyncRunRepository(db)
	c.BindingRepo = calendarPersistence.NewSQLiteCalendarBindingRepository(db)
	c.TokenRepo = identityPersistence.NewSQLiteTokenRepository(db)
	c.OutboxRepo = outbox.NewSQLiteRepository(db)
	c.UnitOfWork = sharedPersistence.NewSQLiteUnitOfWork(db)

	c.Health.Register("database", observability.DatabaseHealthChecker(db.PingContext))

	return nil
}

// initRedis connects the lock backend. Sync locks fall back to in-process
// locking when Redis is not configured or unreachable in development.
func (c *Container) initRedis(ctx context.Context) error {
	cfg := c.Config

	if cfg.RedisURL == "" {
		c.Locker = lock.NewMemoryLocker()
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if cfg.IsProduction() {
			return fmt.Errorf("parse redis url: %w", err)
		}
		c.Logger.Warn("invalid redis url, using in-process locks", "error", err)
		c.Locker = lock.NewMemoryLocker()
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if cfg.IsProduction() {
			return fmt.Errorf("connect to redis: %w", err)
		}
		c.Logger.Warn("redis not available, using in-process locks", "error", err)
		c.Locker = lock.NewMemoryLocker()
		return nil
	}

	c.RedisClient = client
	c.Locker = lock.NewRedisLocker(client, c.Logger)
	c.Logger.Info("connected to redis")

	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))

	return nil
}

// initPublisher connects RabbitMQ and the outbox processor. Development
// falls back to the noop publisher when no broker is reachable.
func (c *Container) initPublisher() error {
	cfg := c.Config

	if cfg.RabbitMQURL == "" {
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
	} else {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, c.Logger)
		if err != nil {
			if cfg.IsProduction() {
				return fmt.Errorf("connect to rabbitmq: %w", err)
			}
			c.Logger.Warn("rabbitmq not available, using noop publisher", "error", err)
			c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		} else {
			c.EventPublisher = publisher
			c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(func(context.Context) error {
				return publisher.Healthy()
			}))
		}
	}

	processorConfig := outbox.DefaultProcessorConfig()
	processorConfig.PollInterval = cfg.OutboxPollInterval
	processorConfig.BatchSize = cfg.OutboxBatchSize
	processorConfig.MaxRetries = cfg.OutboxMaxRetries
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorConfig, c.Logger)

	return nil
}

// initProviders builds the OAuth service and registers the configured
// calendar providers, each wrapped in the retry and breaker decorator.
func (c *Container) initProviders() error {
	cfg := c.Config

	c.ProviderRegistry = calendarApp.NewProviderRegistry()

	if cfg.GoogleConfigured() {
		if cfg.TokenEncKey == "" {
			return fmt.Errorf("google oauth configured but TOKEN_ENC_KEY is not set")
		}
		encrypter, err := sharedCrypto.NewAESGCMFromBase64Key(cfg.TokenEncKey)
		if err != nil {
			return fmt.Errorf("token encryption key: %w", err)
		}

		service, err := oauth.NewService(
			string(calendarDomain.ProviderGoogle),
			oauth.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				AuthURL:      googleAuthURL,
				TokenURL:     googleTokenURL,
				RedirectURL:  cfg.GoogleRedirectURL,
				Scopes:       []string{googleScope},
			},
			c.TokenRepo,
			encrypter,
			c.Logger,
		)
		if err != nil {
			return fmt.Errorf("create oauth service: %w", err)
		}
		c.OAuthService = service

		provider := google.NewProvider(service, c.Logger)
		c.ProviderRegistry.Register(
			calendarDomain.ProviderGoogle,
			resilience.NewProvider("google", provider, c.Logger, resilience.DefaultConfig()),
		)
		c.Logger.Info("registered calendar provider", "provider", calendarDomain.ProviderGoogle)
	}

	if cfg.CalDAVConfigured() {
		baseURL := cfg.CalDAVBaseURL
		if baseURL == "" {
			baseURL = caldav.AppleCalDAVURL
		}
		provider := caldav.NewProvider(baseURL, cfg.CalDAVUsername, cfg.CalDAVPassword, c.Logger)
		c.ProviderRegistry.Register(
			calendarDomain.ProviderCalDAV,
			resilience.NewProvider("caldav", provider, c.Logger, resilience.DefaultConfig()),
		)
		c.Logger.Info("registered calendar provider", "provider", calendarDomain.ProviderCalDAV)
	}

	if len(c.ProviderRegistry.Types()) == 0 {
		c.Logger.Warn("no calendar provider configured, sync operations will fail until one is set up")
	}

	return nil
}

// initApplication wires the domain services and the command and query
// handlers on top of the repositories and providers.
func (c *Container) initApplication() {
	c.BindingResolver = calendarApp.NewBindingResolver(c.BindingRepo, c.ProviderRegistry, c.OutboxRepo, c.Logger)
	c.Materializer = services.NewOccurrenceMaterializer(c.Logger)
	c.ProgressionSyncer = services.NewProgressionSyncer(
		c.EventRepo,
		c.OccurrenceRepo,
		c.OutboxRepo,
		c.BindingResolver,
		c.ProviderRegistry,
		c.Materializer,
		c.Locker,
		c.UnitOfWork,
		c.Logger,
	)

	c.CreateEventHandler = commands.NewCreateEventHandler(c.EventRepo, c.OutboxRepo, c.UnitOfWork, c.ProgressionSyncer, c.Logger)
	c.UpdateEventHandler = commands.NewUpdateEventHandler(c.EventRepo, c.OccurrenceRepo, c.OutboxRepo, c.UnitOfWork, c.BindingResolver, c.ProviderRegistry, c.Materializer, c.Logger)
	c.DeleteEventHandler = commands.NewDeleteEventHandler(c.EventRepo, c.OccurrenceRepo, c.OutboxRepo, c.UnitOfWork, c.BindingResolver, c.ProviderRegistry, c.Logger)
	c.SyncNewYearsHandler = commands.NewSyncNewYearsHandler(c.EventRepo, c.ProgressionSyncer)
	c.ProcessUserProgressionHandler = commands.NewProcessUserProgressionHandler(c.EventRepo, c.SyncRunRepo, c.OutboxRepo, c.ProgressionSyncer, c.Logger)

	c.ListEventsHandler = queries.NewListEventsHandler(c.EventRepo)
	c.GetEventHandler = queries.NewGetEventHandler(c.EventRepo, c.OccurrenceRepo)
	c.CheckProgressionHandler = queries.NewCheckProgressionHandler(c.EventRepo)
	c.ListSyncRunsHandler = queries.NewListSyncRunsHandler(c.SyncRunRepo)
}

// Close releases all resources in reverse dependency order.
func (c *Container) Close() {
	if c.OutboxProcessor != nil && c.OutboxProcessor.IsRunning() {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing redis connection", "error", err)
		}
	}

	if c.DB != nil {
		c.DB.Close()
	}

	if c.SQLiteDB != nil {
		if err := c.SQLiteDB.Close(); err != nil {
			c.Logger.Warn("error closing sqlite database", "error", err)
		}
	}
}
