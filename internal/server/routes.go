package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mid "github.com/skeinhq/skein/backend/internal/server/middleware"
	"github.com/skeinhq/skein/backend/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", mid.Metrics)

	// Graph provider routes
	apiRoutes.GET("/graph", routes.GetGraphHandler)
	apiRoutes.GET("/graph/search", routes.SearchEntitiesHandler)
	apiRoutes.GET("/graph/entities/:id", routes.GetEntityHandler)
	apiRoutes.GET("/graph/entities/:id/meetings", routes.GetEntityMeetingsHandler)

	// Exploration session routes
	apiRoutes.POST("/explore", routes.CreateSessionHandler)
	apiRoutes.GET("/explore/:id", routes.GetSessionHandler)
	apiRoutes.GET("/explore/:id/stream", routes.StreamSessionHandler)
	apiRoutes.POST("/explore/:id/select", routes.SelectNodeHandler)
	apiRoutes.POST("/explore/:id/filter", routes.SetFilterHandler)
	apiRoutes.POST("/explore/:id/search", routes.SetSearchHandler)
	apiRoutes.POST("/explore/:id/clear", routes.ClearSelectionHandler)
	apiRoutes.POST("/explore/:id/dismiss", routes.DismissNoticeHandler)
	apiRoutes.DELETE("/explore/:id", routes.DeleteSessionHandler)
}
