package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/skeinhq/skein/backend/internal/server/middleware"
)

// DeleteSessionHandler closes a session and frees its slot.
func DeleteSessionHandler(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Session id required"})
	}

	sessions := c.(*middleware.AppContext).App.Sessions
	if !sessions.Close(id) {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Session not found"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Session closed"})
}
