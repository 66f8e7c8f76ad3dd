package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"tsgate/internal/audit"
	"tsgate/internal/codec"
	"tsgate/internal/config"
	"tsgate/internal/constants"
	"tsgate/internal/eventsearch"
	"tsgate/internal/filterpreset"
	"tsgate/internal/httpapi"
	"tsgate/internal/logger"
	"tsgate/internal/messagestream"
	"tsgate/internal/search"
	"tsgate/internal/store"
	"tsgate/pkg/bootstrap"
	"tsgate/pkg/health"
	"tsgate/pkg/migrations"
	"tsgate/pkg/tracing"
)

const postgresMigrationsDir = "migrations/postgres"

// App is the top-level wiring of spec.md section 5 into one process:
// StoreGateway (Mongo, optionally Redis-cached and retrying), the search
// engines, the codec broker against the external decoder, the
// filter-preset admin surface, the search-audit publisher, and the gin
// HTTP/SSE router, following the same Initialize/Run/Shutdown lifecycle
// the rest of this stack's services use.
type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector

	postgresDB  *sql.DB
	redisClient *redis.Client
	mongoClient *mongo.Client

	searchService *search.Service
	presetService *filterpreset.Service

	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("tsgate")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	presetService, err := a.initFilterPresets(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize filter presets: %w", err)
	}
	a.presetService = presetService

	searchService, err := a.initSearchService(presetService)
	if err != nil {
		return fmt.Errorf("failed to initialize search service: %w", err)
	}
	a.searchService = searchService

	tp, err := tracing.Init(a.Config.Tracing, "tsgate")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.postgresDB = db

	if a.postgresDB != nil && a.Config.Database.RunMigrations {
		if err := migrations.RunPostgresMigrations(a.postgresDB, postgresMigrationsDir); err != nil {
			return err
		}
	}

	if a.Config.Database.Redis.Host != "" {
		redisClient, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			a.Logger.WarnwCtx(ctx, "Redis connection failed, continuing without resume-lookup cache", "error", err)
		} else {
			a.redisClient = redisClient
		}
	}

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	if a.mongoClient != nil && a.Config.Database.RunMigrations {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		if err := migrations.EnsureMongoCollections(ctx, a.mongoClient.Database(dbName)); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) initFilterPresets(ctx context.Context) (*filterpreset.Service, error) {
	if a.postgresDB == nil {
		a.Logger.WarnwCtx(ctx, "PostgreSQL not configured, filter presets disabled")
		return nil, nil
	}

	repo := filterpreset.NewRepository(a.postgresDB)
	versioningRepo := filterpreset.NewVersioningRepository(a.postgresDB)
	return filterpreset.NewService(repo, versioningRepo, a.Logger)
}

func (a *App) initSearchService(presetService *filterpreset.Service) (*search.Service, error) {
	if a.mongoClient == nil {
		return nil, fmt.Errorf("mongodb is required for search")
	}

	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}

	var gateway store.StoreGateway = store.NewMongoGateway(a.mongoClient.Database(dbName))
	if a.redisClient != nil {
		ttl := time.Duration(a.Config.Database.Redis.TTLSeconds) * time.Second
		gateway = store.NewCachedGateway(gateway, a.redisClient, a.Logger, ttl)
	}
	gateway = store.NewResilient(gateway, store.RetryConfig{
		Delay:       time.Duration(a.Config.Search.DbRetryDelayMs) * time.Millisecond,
		MaxAttempts: a.Config.Search.DbRetryMaxAttempts,
	})

	engine := eventsearch.NewEngine(gateway, eventsearch.Config{
		EventSearchGap:            time.Duration(a.Config.Search.EventSearchGapMs) * time.Millisecond,
		EventSearchPipelineBuffer: a.Config.Search.EventSearchPipelineBuffer,
		DefaultLimitForParent:     a.Config.Search.DefaultLimitForParent,
		DefaultResultCountLimit:   a.Config.Search.DefaultResultCountLimit,
	}, a.Logger)

	initializer := messagestream.NewInitializer(gateway, a.Logger)

	transport := codec.NewHTTPTransport(
		a.Config.Codec.Address,
		time.Duration(a.Config.Codec.ResponseTimeoutMs)*time.Millisecond,
		nil,
		a.Logger,
	)
	codecBroker := codec.NewBroker(transport, codec.Config{
		MaxPendingRequests:     a.Config.Codec.PendingBatchLimit,
		ResponseTimeout:        time.Duration(a.Config.Codec.ResponseTimeoutMs) * time.Millisecond,
		RequestThreadPoolSize:  a.Config.Codec.RequestThreadPoolSize,
		CallbackThreadPoolSize: a.Config.Codec.CallbackThreadPoolSize,
		AdmissionPollInterval:  time.Duration(a.Config.Codec.AdmissionPollMs) * time.Millisecond,
	}, a.Logger)
	transport.SetBroker(codecBroker)
	codecPipeline := codec.NewPipeline(codecBroker)

	var auditRecorder search.AuditRecorder
	if a.Producer != nil && a.Config.Broker.Kafka.AuditTopic != "" {
		auditRecorder = audit.NewRecorder(a.Producer, a.Config.Broker.Kafka.AuditTopic, a.Logger)
	}

	svc := search.NewService(gateway, engine, initializer, codecPipeline, a.Config.Search, auditRecorder, a.Logger)
	if presetService != nil {
		svc = svc.WithPresetEvaluator(presetService)
	}
	return svc, nil
}

func (a *App) initHTTPServer() error {
	healthRegistry := health.NewCheckerRegistry()
	if a.postgresDB != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB))
	}
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	searchHandler := httpapi.NewSearchHandler(a.searchService, a.Config.Search, a.Logger)

	var presetHandler *filterpreset.Handler
	if a.presetService != nil {
		presetHandler = filterpreset.NewHandler(a.presetService, a.Logger)
	}

	router := httpapi.NewRouter(a.Config, a.Logger, searchHandler, presetHandler, healthRegistry)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: 0, // SSE responses can run far longer than any fixed write timeout
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if a.presetService != nil {
		go func() {
			if err := a.presetService.StartReloader(ctx, a.Config.FilterPreset.Reload.IntervalSeconds); err != nil && ctx.Err() == nil {
				a.Logger.WarnwCtx(ctx, "filter preset reloader stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down tsgate")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.postgresDB, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
