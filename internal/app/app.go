// Package app is the composition root: it wires configuration, storage,
// locking, health, routing, analytics, gateway clients and the admin surface
// into one runnable application, and owns the background sweeps.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"transfer-router/internal/analytics"
	"transfer-router/internal/common/logging"
	"transfer-router/internal/config"
	"transfer-router/internal/events"
	"transfer-router/internal/fees"
	"transfer-router/internal/gateways"
	"transfer-router/internal/handlers"
	"transfer-router/internal/health"
	"transfer-router/internal/locks"
	"transfer-router/internal/middleware"
	"transfer-router/internal/orchestrator"
	"transfer-router/internal/phone"
	"transfer-router/internal/redis"
	"transfer-router/internal/routing"
	"transfer-router/internal/server"
	"transfer-router/internal/stock"
)

// App holds every wired component
type App struct {
	Config       *config.Config
	Monitor      *health.Monitor
	Ledger       *stock.Ledger
	Dynamic      *routing.DynamicConfig
	Routes       routing.RouteRepository
	Bridge       *routing.BridgeService
	Operators    *routing.OperatorDirectory
	Registry     *gateways.Registry
	Analytics    *analytics.Analytics
	Metrics      *analytics.Metrics
	Orchestrator *orchestrator.Orchestrator
	Server       *server.Server
	Logger       logging.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client
	publisher   events.Publisher
	cron        *cron.Cron
}

// New wires the application from configuration
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	if err := app.initStorage(ctx); err != nil {
		return nil, err
	}
	locker := app.initLocking()
	app.initEvents()

	app.Monitor = health.NewMonitor(health.Config{
		FailureThreshold: cfg.FailureThreshold,
		RecoveryTimeout:  cfg.RecoveryTimeout,
		MetricsWindow:    cfg.MetricsWindow,
	}, nil)

	stockRepo, routeRepo, err := app.repositories(ctx)
	if err != nil {
		return nil, err
	}
	app.Ledger = stock.NewLedger(stockRepo, locker, nil)
	app.Routes = routeRepo

	app.Dynamic = routing.NewDynamicConfig(nil)
	if err := app.Dynamic.SetWeights(routing.Weights{
		Cost:        cfg.ScoreWeights[0],
		Reliability: cfg.ScoreWeights[1],
		Speed:       cfg.ScoreWeights[2],
		Stock:       cfg.ScoreWeights[3],
		Operator:    cfg.ScoreWeights[4],
	}); err != nil {
		return nil, fmt.Errorf("invalid score weights: %w", err)
	}
	if err := app.Dynamic.SetMinScoreThreshold(cfg.MinScoreThreshold); err != nil {
		return nil, fmt.Errorf("invalid min score threshold: %w", err)
	}
	if err := app.Dynamic.SetSplitThreshold(cfg.SplitThreshold); err != nil {
		return nil, fmt.Errorf("invalid split threshold: %w", err)
	}

	app.Operators = routing.NewOperatorDirectory()
	scorer := routing.NewScorer(app.Monitor, app.Ledger, app.Dynamic, app.Operators)
	app.Bridge = routing.NewBridgeService(app.Routes, app.Monitor, app.Ledger,
		cfg.BridgeHubs, cfg.BridgeOverheadPercent, nil)

	if err := app.initGateways(); err != nil {
		return nil, err
	}

	app.Metrics = analytics.NewMetrics()
	app.Analytics = analytics.New(app.Metrics, nil)

	app.Orchestrator = orchestrator.New(
		orchestrator.Config{
			MaxRetries:     cfg.MaxRetries,
			GatewayTimeout: cfg.GatewayTimeout,
		},
		phone.NewResolver(),
		app.Routes,
		scorer,
		app.Dynamic,
		app.Bridge,
		app.Monitor,
		app.Ledger,
		app.Registry,
		fees.NewCalculator(cfg.AppFeePercent, cfg.AppFeeCap),
		app.Analytics,
		app.publisher,
		nil,
	)

	h := handlers.New(
		app.Orchestrator, app.Monitor, app.Ledger, app.Dynamic, app.Routes,
		app.Bridge, app.Operators, app.Registry, app.Analytics, app.Metrics, nil,
	)
	app.Server = server.New(middleware.Logging(h.Router()), cfg.Port, nil)

	if err := app.initSweeps(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *App) initStorage(ctx context.Context) error {
	if app.Config.DatabaseURL == "" {
		app.Logger.Info("no DATABASE_URL configured, using in-memory repositories")
		return nil
	}

	pool, err := pgxpool.New(ctx, app.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.pool = pool
	return nil
}

func (app *App) repositories(ctx context.Context) (stock.Repository, routing.RouteRepository, error) {
	if app.pool == nil {
		return stock.NewMemoryRepository(), routing.NewMemoryRouteRepository(), nil
	}

	stockRepo, err := stock.NewPostgresRepository(ctx, app.pool)
	if err != nil {
		return nil, nil, err
	}
	routeRepo, err := routing.NewPostgresRouteRepository(ctx, app.pool)
	if err != nil {
		return nil, nil, err
	}
	return stockRepo, routeRepo, nil
}

// initLocking picks the stock lock manager: Redis when configured so that
// multiple instances serialize on the same rows, striped in-process mutexes
// otherwise.
func (app *App) initLocking() locks.Locker {
	if app.Config.RedisAddress == "" {
		return locks.NewKeyedMutex()
	}

	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
	})
	if err != nil {
		app.Logger.Warn("redis unavailable, falling back to in-process locks",
			logging.String("error", err.Error()))
		return locks.NewKeyedMutex()
	}
	app.redisClient = client
	return locks.NewRedisLocker(client)
}

func (app *App) initEvents() {
	if app.Config.RabbitMQURL == "" {
		app.publisher = events.NoopPublisher{}
		return
	}

	publisher, err := events.NewAMQPPublisher(app.Config.RabbitMQURL, app.Config.EventsExchange, nil)
	if err != nil {
		app.Logger.Warn("rabbitmq unavailable, payout events disabled",
			logging.String("error", err.Error()))
		app.publisher = events.NoopPublisher{}
		return
	}
	app.publisher = publisher
}

func (app *App) initGateways() error {
	app.Registry = gateways.NewRegistry()
	for name, baseURL := range app.Config.Gateways {
		gw, err := gateways.NewHTTPGateway(&gateways.HTTPConfig{
			Name:    name,
			BaseURL: baseURL,
			APIKey:  app.Config.GatewayAPIKeys[name],
			Timeout: app.Config.GatewayTimeout,
		})
		if err != nil {
			return fmt.Errorf("invalid gateway %s: %w", name, err)
		}
		app.Registry.Register(gw)
		app.Logger.Info("gateway registered", logging.String("gateway", name))
	}
	return nil
}

// initSweeps schedules the background maintenance jobs: hourly health counter
// decay, minutely alert expiry and breaker gauge refresh, daily analytics
// pruning.
func (app *App) initSweeps() error {
	c := cron.New()

	if _, err := c.AddFunc("@hourly", func() {
		app.Monitor.Decay()
	}); err != nil {
		return err
	}
	if _, err := c.AddFunc("@every 1m", func() {
		app.Analytics.ExpireAlerts()
		app.Metrics.RefreshBreakerStates(app.Monitor.SnapshotAll())
	}); err != nil {
		return err
	}
	if _, err := c.AddFunc("@daily", func() {
		app.Analytics.Prune()
	}); err != nil {
		return err
	}

	app.cron = c
	return nil
}

// Start launches the admin server and the background sweeps
func (app *App) Start() {
	app.cron.Start()
	app.Server.Start()
}

// Shutdown stops the sweeps and drains the server, then closes external
// connections.
func (app *App) Shutdown(ctx context.Context) error {
	app.cron.Stop()

	err := app.Server.Shutdown(ctx)

	if closeErr := app.publisher.Close(); closeErr != nil {
		app.Logger.Warn("failed to close event publisher",
			logging.String("error", closeErr.Error()))
	}
	if app.redisClient != nil {
		if closeErr := app.redisClient.Close(); closeErr != nil {
			app.Logger.Warn("failed to close redis client",
				logging.String("error", closeErr.Error()))
		}
	}
	if app.pool != nil {
		app.pool.Close()
	}
	return err
}
