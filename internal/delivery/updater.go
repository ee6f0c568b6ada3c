// Package delivery reconciles outbound delivery receipts with stored messages.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
)

// MessageStore is the message access the updater needs
type MessageStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.Message, error)
	UpdateDeliveryStatus(ctx context.Context, id uint, state models.DeliveryState, errMsg *string, at time.Time) error
}

// StatusUpdate is a receipt from the delivery provider. MessageID is the
// provider's identifier, not the RFC Message-ID.
type StatusUpdate struct {
	MessageID    string  `json:"message_id"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// Result is reported back to the provider
type Result struct {
	Success   bool   `json:"success"`
	MessageID uint   `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

var providerStatuses = map[string]models.DeliveryState{
	"sent":       models.DeliverySent,
	"queued":     models.DeliverySent,
	"delivered":  models.DeliveryDelivered,
	"failed":     models.DeliveryFailed,
	"bounced":    models.DeliveryFailed,
	"complained": models.DeliveryFailed,
}

// MapStatus maps the provider vocabulary onto the stored enum
func MapStatus(status string) (models.DeliveryState, bool) {
	state, ok := providerStatuses[strings.ToLower(strings.TrimSpace(status))]
	return state, ok
}

// Updater applies delivery receipts
type Updater struct {
	messages MessageStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewUpdater creates an Updater
func NewUpdater(messages MessageStore, logger *slog.Logger, m *metrics.Metrics) *Updater {
	return &Updater{
		messages: messages,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Update records a receipt. It never returns an error: late, unknown or
// malformed receipts are reported with Success false.
func (u *Updater) Update(ctx context.Context, update StatusUpdate) Result {
	externalID := strings.TrimSpace(update.MessageID)
	if externalID == "" {
		u.metrics.DeliveryUpdate("unknown_message")
		return Result{Error: "message_id is required"}
	}

	state, ok := MapStatus(update.Status)
	if !ok {
		u.metrics.DeliveryUpdate("unknown_status")
		u.warn("unknown delivery status", externalID, update.Status, nil)
		return Result{Error: "unknown delivery status: " + update.Status}
	}

	msg, err := u.messages.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			u.metrics.DeliveryUpdate("unknown_message")
			u.warn("delivery receipt for unknown message", externalID, update.Status, nil)
			return Result{Error: "message not found: " + externalID}
		}
		u.metrics.DeliveryUpdate("error")
		u.warn("delivery receipt lookup failed", externalID, update.Status, err)
		return Result{Error: apperrors.ErrDeliveryStatus.Error()}
	}

	errMsg := update.ErrorMessage
	if errMsg != nil && strings.TrimSpace(*errMsg) == "" {
		errMsg = nil
	}
	if err := u.messages.UpdateDeliveryStatus(ctx, msg.ID, state, errMsg, u.now()); err != nil {
		u.metrics.DeliveryUpdate("error")
		u.warn("failed to store delivery status", externalID, update.Status, err)
		return Result{MessageID: msg.ID, Error: apperrors.ErrDeliveryStatus.Error()}
	}

	u.metrics.DeliveryUpdate("updated")
	if u.logger != nil {
		u.logger.Info("delivery status updated",
			slog.Uint64("message_id", uint64(msg.ID)),
			slog.String("external_id", externalID),
			slog.String("status", string(state)))
	}
	return Result{Success: true, MessageID: msg.ID}
}

func (u *Updater) warn(msg, externalID, status string, err error) {
	if u.logger == nil {
		return
	}
	attrs := []any{slog.String("external_id", externalID), slog.String("status", status)}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	u.logger.Warn(msg, attrs...)
}
