// internal/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "futures-desk/internal/api"
	"futures-desk/internal/api/handler"
	"futures-desk/internal/config"
	"futures-desk/internal/lock"
	"futures-desk/internal/repository"
	"futures-desk/internal/repository/sqlstore"
	"futures-desk/internal/service"
	"futures-desk/internal/telemetry"
	"futures-desk/internal/util"
	"futures-desk/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	AccountRepository    repository.AccountRepository
	PredictionRepository repository.PredictionRepository
	LedgerRepository     repository.LedgerRepository

	// Services
	Locker        lock.Locker
	LedgerService service.LedgerService

	// HTTP API
	HTTPHandler http.Handler

	// LogOutput receives log records; stdout when nil.
	LogOutput io.Writer

	redisLocker       *lock.RedisLocker
	shutdownTelemetry func(context.Context) error
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: slog.Default()}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(util.LoggerOptions{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: app.LogOutput})
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Tracing
	app.shutdownTelemetry, err = telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	// 4. Connect to Database
	database, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.", "driver", cfg.DB.Driver)

	if cfg.DB.AutoMigrate {
		if err := db.Migrate(ctx, app.DB); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		app.Logger.Info("Database schema is up to date.")
	}

	// 5. Initialize Repositories
	app.AccountRepository = sqlstore.NewAccountRepository()
	app.PredictionRepository = sqlstore.NewPredictionRepository()
	app.LedgerRepository = sqlstore.NewLedgerRepository()

	// 6. Account lock
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		app.redisLocker, err = lock.NewRedisLocker(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Locker = app.redisLocker
	default:
		app.Locker = lock.NewKeyedMutex()
	}
	app.Logger.Info("Account lock initialized.", "backend", cfg.LockBackend)

	// 7. Initialize Services
	app.LedgerService = service.NewLedgerService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.AccountRepository,
		app.PredictionRepository,
		app.LedgerRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		service.WithLocker(app.Locker),
		service.WithLogger(app.Logger),
		service.WithHistoryLimit(cfg.Ledger.HistoryLimit),
	)
	app.Logger.Info("Services initialized.")

	// 8. Initialize HTTP Handlers and Router
	deskHandler := handler.NewDeskHandler(app.LedgerService, app.Logger)
	app.HTTPHandler = router.NewRouter(deskHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	var errs []error
	if app.redisLocker != nil {
		if err := app.redisLocker.Close(); err != nil {
			app.Logger.Error("Failed to close redis connection", "error", err)
			errs = append(errs, fmt.Errorf("failed to close redis connection: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}
	if app.shutdownTelemetry != nil {
		if err := app.shutdownTelemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
