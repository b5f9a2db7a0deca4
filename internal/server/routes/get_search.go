package routes

import (
	"net/http"
	"strings"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/skeinhq/skein/backend/internal/server/middleware"
	"github.com/skeinhq/skein/backend/pkg/logger"
	"github.com/skeinhq/skein/backend/pkg/store"
)

// SearchEntitiesHandler matches entities by name, best matches first.
func SearchEntitiesHandler(c echo.Context) error {
	type searchQuery struct {
		Q     string `query:"q"`
		Limit int    `query:"limit"`
	}

	data := new(searchQuery)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}

	if strings.TrimSpace(data.Q) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Query must not be empty"})
	}

	ctx := c.Request().Context()
	src := c.(*middleware.AppContext).App.Source

	matches, err := src.SearchEntities(ctx, data.Q, data.Limit)
	if err != nil {
		logger.Error("[Graph] Search failed", "query", data.Q, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	if matches == nil {
		matches = []store.Match{}
	}
	return c.JSON(http.StatusOK, matches)
}
