package routes

import (
	"errors"
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/explore"
	"github.com/skeinhq/skein/backend/pkg/logger"
)

// respondView maps a session event result onto the HTTP response.
func respondView(c echo.Context, view explore.View, err error) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, view)
	case errors.Is(err, explore.ErrSessionClosed):
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Session not found"})
	case errors.Is(err, explore.ErrEmptyEntityID), errors.Is(err, explore.ErrInvalidFilter):
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	default:
		logger.Error("[Explore] Session event failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
}

// SelectNodeHandler selects an entity, expanding its neighborhood.
// Selecting the expanded entity again collapses it.
func SelectNodeHandler(c echo.Context) error {
	type selectNodeBody struct {
		NodeID string `json:"node_id" validate:"required"`
	}

	s := lookupSession(c)
	if s == nil {
		return nil
	}

	data := new(selectNodeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	view, err := s.SelectNode(data.NodeID)
	return respondView(c, view, err)
}

// SetFilterHandler narrows the session to one entity type. An empty or
// null type widens back to all.
func SetFilterHandler(c echo.Context) error {
	type setFilterBody struct {
		Type string `json:"type"`
	}

	s := lookupSession(c)
	if s == nil {
		return nil
	}

	data := new(setFilterBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	view, err := s.SetTypeFilter(common.NodeType(data.Type))
	return respondView(c, view, err)
}

// SetSearchHandler updates the session's highlight query.
func SetSearchHandler(c echo.Context) error {
	type setSearchBody struct {
		Query string `json:"query"`
	}

	s := lookupSession(c)
	if s == nil {
		return nil
	}

	data := new(setSearchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	view, err := s.SetSearchQuery(data.Query)
	return respondView(c, view, err)
}

// ClearSelectionHandler drops the selection and expansion.
func ClearSelectionHandler(c echo.Context) error {
	s := lookupSession(c)
	if s == nil {
		return nil
	}

	view, err := s.ClearSelection()
	return respondView(c, view, err)
}

// DismissNoticeHandler clears the session's notice.
func DismissNoticeHandler(c echo.Context) error {
	s := lookupSession(c)
	if s == nil {
		return nil
	}

	view, err := s.DismissNotice()
	return respondView(c, view, err)
}
