package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/sundayezeilo/linktracker/internal/config"
	"github.com/sundayezeilo/linktracker/internal/linktracker"
	"github.com/sundayezeilo/linktracker/internal/migrate"
	"github.com/sundayezeilo/linktracker/internal/server"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DBPool  *pgxpool.Pool // set when the postgres driver is active
	DB      *sql.DB       // set when the sqlite driver is active
	Server  *server.Server
	Handler *linktracker.Handler
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"service", cfg.App.ServiceName,
		"env", cfg.App.Environment,
		"store_driver", cfg.Database.Driver,
	)

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var repo linktracker.Repository
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		repo, err = app.connectPostgres(ctx)
	case config.DriverSQLite:
		repo, err = app.connectSQLite(ctx)
	default:
		err = fmt.Errorf("unsupported store driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	resolver := linktracker.NewResolver(repo)
	svc := linktracker.NewService(repo, resolver, nil)
	handler := linktracker.NewHandler(linktracker.HandlerConfig{
		Service:  svc,
		Resolver: resolver,
		Logger:   logger,
		BaseURL:  cfg.Server.BaseURL,
	})

	app.Handler = handler
	app.Server = server.New(cfg, logger, handler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return app, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("postgres connection pool closed")
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close sqlite store: %w", err)
		}
		a.Logger.Info("sqlite store closed")
	}

	return nil
}

// connectPostgres establishes the pgx pool, runs migrations, and builds the
// postgres repository.
func (a *App) connectPostgres(ctx context.Context) (linktracker.Repository, error) {
	cfg := a.Config

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	a.Logger.Info("connecting to postgres",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// goose needs database/sql; borrow a connection from the pool.
	migrationDB := stdlib.OpenDBFromPool(pool)
	if err := migrate.Up(ctx, migrationDB, config.DriverPostgres); err != nil {
		pool.Close()
		return nil, err
	}
	if err := migrationDB.Close(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to release migration connection: %w", err)
	}

	a.Logger.Info("postgres connection established")

	a.DBPool = pool
	return linktracker.NewPostgresRepository(pool, nil), nil
}

// connectSQLite opens the embedded store, runs migrations, and builds the
// sqlite repository.
func (a *App) connectSQLite(ctx context.Context) (linktracker.Repository, error) {
	cfg := a.Config

	a.Logger.Info("opening sqlite store", "path", cfg.Database.SQLitePath)

	db, err := sql.Open("sqlite", cfg.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite store: %w", err)
	}

	if err := migrate.Up(ctx, db, config.DriverSQLite); err != nil {
		db.Close()
		return nil, err
	}

	a.DB = db
	return linktracker.NewSQLiteRepository(db, nil), nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}
