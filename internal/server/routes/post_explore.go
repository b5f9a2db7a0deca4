package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/skeinhq/skein/backend/internal/server/middleware"
	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/explore"
	"github.com/skeinhq/skein/backend/pkg/logger"
)

// CreateSessionHandler starts an exploration session. The base graph
// loads in the background, the returned view already carries the session
// id and the pending fetch markers.
func CreateSessionHandler(c echo.Context) error {
	type createSessionBody struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Filter string  `json:"filter"`
		Seed   int64   `json:"seed"`
	}

	type createSessionResponse struct {
		Message   string        `json:"message,omitempty"`
		SessionID string        `json:"session_id,omitempty"`
		View      *explore.View `json:"view,omitempty"`
	}

	data := new(createSessionBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createSessionResponse{
			Message: "Invalid request body",
		})
	}

	var filter common.NodeType
	if data.Filter != "" {
		t, ok := common.ParseNodeType(data.Filter)
		if !ok || !t.Filterable() {
			return c.JSON(http.StatusBadRequest, createSessionResponse{
				Message: "Unknown entity type",
			})
		}
		filter = t
	}

	sessions := c.(*middleware.AppContext).App.Sessions
	s, err := sessions.Create(explore.CreateParams{
		Width:  data.Width,
		Height: data.Height,
		Filter: filter,
		Seed:   data.Seed,
	})
	if err != nil {
		logger.Error("[Explore] Failed to create session", "err", err)
		return c.JSON(http.StatusInternalServerError, createSessionResponse{
			Message: "Internal server error",
		})
	}

	view := s.View()
	return c.JSON(http.StatusOK, createSessionResponse{
		SessionID: s.ID(),
		View:      &view,
	})
}
