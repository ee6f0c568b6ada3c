package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"gorm.io/gorm"
)

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	// CreateWithThread inserts a new thread and its first message atomically.
	CreateWithThread(ctx context.Context, thread *models.Thread, message *models.Message, attachments []models.Attachment) error
	// AppendToThread inserts a follow-up message and updates the thread's
	// activity, participants and status atomically.
	AppendToThread(ctx context.Context, threadID uint, message *models.Message, attachments []models.Attachment, participants []models.Participant) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	FindByMessageID(ctx context.Context, teamID uint, messageID string) (*models.Message, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Message, error)
	ListByThread(ctx context.Context, threadID uint) ([]models.Message, error)
	UpdateDeliveryStatus(ctx context.Context, id uint, state models.DeliveryState, errMsg *string, at time.Time) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// CreateWithThread stores thread and message in one transaction. A unique
// violation on either row yields ErrDuplicateEntry and nothing is written.
func (r *messageRepository) CreateWithThread(ctx context.Context, thread *models.Thread, message *models.Message, attachments []models.Attachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if message.CreatedAt.IsZero() {
			message.CreatedAt = time.Now().UTC()
		}
		thread.MessageCount = 1
		if thread.LastMessageAt.IsZero() {
			thread.LastMessageAt = message.CreatedAt
		}
		if err := tx.Omit("Messages").Create(thread).Error; err != nil {
			return wrapCreateError("thread", thread.MessageID, err)
		}

		message.ThreadID = thread.ID
		message.TeamID = thread.TeamID
		return createMessage(tx, message, attachments)
	})
}

// AppendToThread stores a follow-up message in an existing thread
func (r *messageRepository) AppendToThread(ctx context.Context, threadID uint, message *models.Message, attachments []models.Attachment, participants []models.Participant) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var thread models.Thread
		if err := tx.Select("id", "team_id", "participants").First(&thread, threadID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load thread: %w", err)
		}

		message.ThreadID = thread.ID
		message.TeamID = thread.TeamID
		if err := createMessage(tx, message, attachments); err != nil {
			return err
		}

		merged, _ := models.MergeParticipants(thread.Participants, participants)
		update := models.Thread{Participants: merged, Status: models.ThreadStatusUnread}
		if err := tx.Model(&thread).Select("participants", "status").Updates(&update).Error; err != nil {
			return fmt.Errorf("failed to update thread: %w", err)
		}
		if err := tx.Model(&thread).UpdateColumn("message_count", gorm.Expr("message_count + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to update thread message count: %w", err)
		}
		return advanceLastMessageAt(tx, thread.ID, message.CreatedAt)
	})
}

func createMessage(tx *gorm.DB, message *models.Message, attachments []models.Attachment) error {
	if err := tx.Omit("Attachments").Create(message).Error; err != nil {
		return wrapCreateError("message", message.MessageID, err)
	}
	for i := range attachments {
		attachments[i].MessageID = message.ID
		if err := tx.Create(&attachments[i]).Error; err != nil {
			return fmt.Errorf("failed to create attachment: %w", err)
		}
	}
	message.Attachments = attachments
	return nil
}

// GetByID retrieves a message by its ID with preloaded attachments
func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Preload("Attachments").First(&message, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", result.Error)
	}
	return &message, nil
}

// FindByMessageID looks up a message by its RFC Message-ID within a team
func (r *messageRepository) FindByMessageID(ctx context.Context, teamID uint, messageID string) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).
		Where("team_id = ? AND message_id = ?", teamID, messageID).
		First(&message)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message by message-id: %w", result.Error)
	}
	return &message, nil
}

// FindByExternalID looks up an outbound message by its delivery provider id
func (r *messageRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&message)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message by external id: %w", result.Error)
	}
	return &message, nil
}

// ListByThread retrieves a thread's messages oldest first
func (r *messageRepository) ListByThread(ctx context.Context, threadID uint) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list messages: %w", result.Error)
	}
	return messages, nil
}

// UpdateDeliveryStatus records a delivery attempt outcome on a message
func (r *messageRepository) UpdateDeliveryStatus(ctx context.Context, id uint, state models.DeliveryState, errMsg *string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(map[string]interface{}{
		"delivery_status":          state,
		"delivery_attempts":        gorm.Expr("delivery_attempts + ?", 1),
		"delivery_last_attempt_at": at,
		"delivery_error_message":   errMsg,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update delivery status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
