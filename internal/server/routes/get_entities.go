package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/skeinhq/skein/backend/internal/server/middleware"
	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/logger"
	"github.com/skeinhq/skein/backend/pkg/store"
)

// GetEntityHandler serves one entity with its direct neighborhood. An
// unknown id yields a null entity with empty lists, not a 404, so the
// client can render a soft notice instead of an error page.
func GetEntityHandler(c echo.Context) error {
	type getEntityParams struct {
		ID string `param:"id" validate:"required"`
	}

	params := new(getEntityParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}

	ctx := c.Request().Context()
	src := c.(*middleware.AppContext).App.Source

	detail, err := src.FetchEntityDetail(ctx, params.ID)
	if err != nil {
		logger.Error("[Graph] Failed to fetch entity", "id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	if detail.Neighbors == nil {
		detail.Neighbors = []common.Node{}
	}
	if detail.Edges == nil {
		detail.Edges = []common.Edge{}
	}
	return c.JSON(http.StatusOK, detail)
}

// GetEntityMeetingsHandler lists the meetings an entity took part in or
// was mentioned in, newest first.
func GetEntityMeetingsHandler(c echo.Context) error {
	type getMeetingsParams struct {
		ID string `param:"id" validate:"required"`
	}

	params := new(getMeetingsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}

	ctx := c.Request().Context()
	src := c.(*middleware.AppContext).App.Source

	refs, err := src.EntityMeetings(ctx, params.ID)
	if err != nil {
		logger.Error("[Graph] Failed to fetch meetings", "id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	if refs == nil {
		refs = []store.MeetingRef{}
	}
	return c.JSON(http.StatusOK, refs)
}
