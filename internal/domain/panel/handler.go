package panel

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/prw/warehouse-core/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "analyst"))
	readGroup.GET("/panel/summary", h.GetSummary)

	writeGroup := api.Group("", auth.RequireRole("admin"))
	writeGroup.POST("/panel/run", h.RunAssignment)
}

func (h *Handler) GetSummary(c echo.Context) error {
	counts, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"by_trace": counts})
}

func (h *Handler) RunAssignment(c echo.Context) error {
	summary, err := h.svc.Run(c.Request().Context())
	if err != nil {
		var shapeErr *ShapeError
		if errors.As(err, &shapeErr) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, shapeErr.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}
