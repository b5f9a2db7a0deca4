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

// GetGraphHandler serves the overview graph, optionally narrowed to one
// entity type or expanded around one entity.
func GetGraphHandler(c echo.Context) error {
	type getGraphQuery struct {
		Type     string `query:"type"`
		EntityID string `query:"entity_id"`
		Limit    int    `query:"limit"`
	}

	type getGraphResponse struct {
		Message string        `json:"message,omitempty"`
		Nodes   []common.Node `json:"nodes"`
		Edges   []common.Edge `json:"edges"`
	}

	data := new(getGraphQuery)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, getGraphResponse{
			Message: "Invalid request",
		})
	}

	var nodeType common.NodeType
	if data.Type != "" {
		t, ok := common.ParseNodeType(data.Type)
		if !ok || !t.Filterable() {
			return c.JSON(http.StatusBadRequest, getGraphResponse{
				Message: "Unknown entity type",
			})
		}
		nodeType = t
	}

	ctx := c.Request().Context()
	src := c.(*middleware.AppContext).App.Source

	g, err := src.FetchGraph(ctx, store.GraphFilter{
		Type:     nodeType,
		EntityID: data.EntityID,
		Limit:    data.Limit,
	})
	if err != nil {
		logger.Error("[Graph] Failed to fetch graph", "err", err)
		return c.JSON(http.StatusInternalServerError, getGraphResponse{
			Message: "Internal server error",
		})
	}

	resp := getGraphResponse{Nodes: g.Nodes, Edges: g.Edges}
	if resp.Nodes == nil {
		resp.Nodes = []common.Node{}
	}
	if resp.Edges == nil {
		resp.Edges = []common.Edge{}
	}

	return c.JSON(http.StatusOK, resp)
}
