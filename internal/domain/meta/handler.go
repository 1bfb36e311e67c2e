package meta

import (
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
	readGroup.GET("/meta", h.ListDatasets)
}

func (h *Handler) ListDatasets(c echo.Context) error {
	datasets, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"datasets": datasets})
}
