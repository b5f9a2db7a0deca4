package middleware

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/skeinhq/skein/backend/pkg/explore"
	"github.com/skeinhq/skein/backend/pkg/store"
)

// App bundles the shared dependencies handlers pull from the request
// context. Queue is nil when the backend runs without a broker.
type App struct {
	DBConn   *pgxpool.Pool
	Source   *store.SharedSource
	Sessions *explore.Manager
	Queue    *amqp091.Channel
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(
	db *pgxpool.Pool,
	source *store.SharedSource,
	sessions *explore.Manager,
	queue *amqp091.Channel,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			app := &App{
				DBConn:   db,
				Source:   source,
				Sessions: sessions,
				Queue:    queue,
			}
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
