package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-inbox-backend/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/ingest"
)

// MaxBatchSize bounds the number of emails in one batch request
const MaxBatchSize = 500

// Ingester runs the ingestion pipeline
type Ingester interface {
	Ingest(ctx context.Context, payload *ingest.InboundPayload) (*ingest.Result, error)
	IngestBatch(ctx context.Context, req ingest.BatchRequest) *ingest.BatchResult
}

// InboundHandler receives inbound email webhooks
type InboundHandler struct {
	ingester Ingester
	logger   *slog.Logger
}

// NewInboundHandler creates a new InboundHandler
func NewInboundHandler(ingester Ingester, logger *slog.Logger) *InboundHandler {
	return &InboundHandler{ingester: ingester, logger: logger}
}

// Receive handles POST /api/inbound
func (h *InboundHandler) Receive(c echo.Context) error {
	var payload ingest.InboundPayload
	if err := c.Bind(&payload); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	result, err := h.ingester.Ingest(c.Request().Context(), &payload)
	if err != nil {
		switch {
		case apperrors.IsDuplicateEntry(err), apperrors.IsParseError(err):
			return response.Error(c, err)
		default:
			if h.logger != nil {
				h.logger.Error("inbound ingestion failed",
					slog.String("message_id", payload.MessageID),
					slog.Any("error", err))
			}
			return response.InternalError(c, "failed to store email")
		}
	}

	return c.JSON(http.StatusOK, result)
}

// ReceiveBatch handles POST /api/inbound/batch. Every item is reported;
// a failing item never fails the request.
func (h *InboundHandler) ReceiveBatch(c echo.Context) error {
	var req ingest.BatchRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Emails == nil {
		return response.BadRequest(c, "emails is required")
	}
	if len(req.Emails) > MaxBatchSize {
		return response.BadRequest(c, "too many emails in one batch")
	}
	if req.MaxConcurrent < 0 {
		return response.BadRequest(c, "maxConcurrent must not be negative")
	}

	result := h.ingester.IngestBatch(c.Request().Context(), req)
	return c.JSON(http.StatusOK, result)
}
