package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-inbox-backend/internal/delivery"
)

// StatusUpdater applies provider delivery receipts
type StatusUpdater interface {
	Update(ctx context.Context, update delivery.StatusUpdate) delivery.Result
}

// DeliveryHandler receives delivery status webhooks. Providers retry on
// non-2xx, so every outcome is acknowledged with 200 and a success flag.
type DeliveryHandler struct {
	updater StatusUpdater
}

// NewDeliveryHandler creates a new DeliveryHandler
func NewDeliveryHandler(updater StatusUpdater) *DeliveryHandler {
	return &DeliveryHandler{updater: updater}
}

// Webhook handles POST /api/webhooks/delivery
func (h *DeliveryHandler) Webhook(c echo.Context) error {
	var update delivery.StatusUpdate
	if err := c.Bind(&update); err != nil {
		return c.JSON(http.StatusOK, delivery.Result{Success: false, Error: "invalid request body"})
	}

	return c.JSON(http.StatusOK, h.updater.Update(c.Request().Context(), update))
}
