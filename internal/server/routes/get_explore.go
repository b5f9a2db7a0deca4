package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/skeinhq/skein/backend/internal/server/middleware"
	"github.com/skeinhq/skein/backend/pkg/explore"
)

// lookupSession resolves the :id route param to a live session, writing
// the 404 itself. A nil session means the response has been sent.
func lookupSession(c echo.Context) *explore.Session {
	id := c.Param("id")
	if id == "" {
		_ = c.JSON(http.StatusBadRequest, map[string]string{"message": "Session id required"})
		return nil
	}

	sessions := c.(*middleware.AppContext).App.Sessions
	s := sessions.Get(id)
	if s == nil {
		_ = c.JSON(http.StatusNotFound, map[string]string{"message": "Session not found"})
		return nil
	}
	return s
}

// GetSessionHandler returns the current view snapshot.
func GetSessionHandler(c echo.Context) error {
	s := lookupSession(c)
	if s == nil {
		return nil
	}
	return c.JSON(http.StatusOK, s.View())
}
