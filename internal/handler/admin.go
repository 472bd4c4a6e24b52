package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-checkout/internal/service"
)

// SweepRunner runs one expiry pass.
type SweepRunner interface {
	RunOnce(ctx context.Context) service.SweepResult
}

// AdminHandler serves operator endpoints guarded by the ADMIN role.
type AdminHandler struct {
	Sweeper SweepRunner
}

// Sweep handles POST /admin/sweep and reports what the pass reclaimed.
func (h *AdminHandler) Sweep(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Sweeper.RunOnce(c.Request().Context()))
}
