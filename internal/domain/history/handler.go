package history

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rhuis/rhuis/internal/platform/auth"
	"github.com/rhuis/rhuis/internal/platform/errs"
	"github.com/rhuis/rhuis/pkg/pagination"
)

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/history", h.ListHistory, auth.RequireRole("doctor", "staff"))
}

// ListHistory returns per-patient visit summaries. The sort query param
// takes recent, oldest or name.
func (h *Handler) ListHistory(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	cursor, err := h.agg.Build(ctx, c.QueryParam("sort"))
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}

	summaries := []*Summary{}
	for i := 0; i < pg.Offset+pg.Limit && i < cursor.Len(); i++ {
		s, ok, err := cursor.Next(ctx)
		if err != nil {
			return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
		}
		if !ok {
			break
		}
		if i >= pg.Offset {
			summaries = append(summaries, s)
		}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(summaries, cursor.Len(), pg.Limit, pg.Offset))
}
