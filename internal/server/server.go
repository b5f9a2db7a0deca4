package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/skeinhq/skein/backend/internal/queue"
	mid "github.com/skeinhq/skein/backend/internal/server/middleware"
	"github.com/skeinhq/skein/backend/internal/util"
	"github.com/skeinhq/skein/backend/pkg/explore"
	"github.com/skeinhq/skein/backend/pkg/logger"
	"github.com/skeinhq/skein/backend/pkg/store"
	graphstorage "github.com/skeinhq/skein/backend/pkg/store/pgx"
)

const (
	dbConnectTries = 30
	dbConnectDelay = 2 * time.Second
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("DATABASE_URL must be set")
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	// The database usually comes up alongside the backend, give it time.
	if err := util.RetryErrWithDelay(ctx, dbConnectTries, dbConnectDelay, conn.Ping); err != nil {
		logger.Fatal("Database never became reachable", "err", err)
	}

	if err := runMigrations(databaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	storage := graphstorage.NewGraphDBStorage(conn)
	shared := store.NewSharedSource(storage,
		time.Duration(util.GetEnvInt("GRAPH_CACHE_SECONDS", 0))*time.Second)

	sessions := explore.NewManager(shared,
		explore.WithGraphLimit(util.GetEnvInt("GRAPH_LIMIT", 0)),
		explore.WithIdleTimeout(time.Duration(util.GetEnvInt("SESSION_IDLE_MINUTES", 30))*time.Minute),
	)
	defer sessions.Stop()

	var ch *amqp.Channel
	if queue.Configured() {
		que, err := queue.Init()
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", "err", err)
		}
		defer que.Close()

		ch, err = que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}

		go func() {
			err := queue.ListenGraphUpdates(ctx, que, func(queue.UpdateMsg) {
				shared.Invalidate()
				sessions.RefreshAll()
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("[Queue] Update listener stopped", "err", err)
			}
		}()
	} else {
		logger.Info("RABBITMQ_HOST not set, running without update notifications")
	}

	e.Use(mid.AppContextMiddleware(conn, shared, sessions, ch))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// runMigrations brings the schema up to date. A database that is already
// current is not an error.
func runMigrations(databaseURL string) error {
	source := util.GetEnvString("MIGRATIONS_URL", "file://migrations")

	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Info("Migrations applied", "version", version, "dirty", dirty)
	return nil
}
