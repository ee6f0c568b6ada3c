package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/storage"
	"gorm.io/gorm"
)

// AttachmentRepository reads stored attachments. Rows are written together
// with their message by MessageRepository.
type AttachmentRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Attachment, error)
	ListByMessage(ctx context.Context, messageID uint) ([]models.Attachment, error)
	ListByThread(ctx context.Context, threadID uint) ([]models.Attachment, error)
	RemoveTeamFiles(ctx context.Context, teamID uint) (int, error)
}

type attachmentRepository struct {
	db          *gorm.DB
	fileStorage storage.FileStorage
}

// NewAttachmentRepository creates a new AttachmentRepository instance.
// fileStorage may be nil when files never need removing.
func NewAttachmentRepository(db *gorm.DB, fileStorage storage.FileStorage) AttachmentRepository {
	return &attachmentRepository{
		db:          db,
		fileStorage: fileStorage,
	}
}

// GetByID retrieves an attachment by its ID
func (r *attachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	result := r.db.WithContext(ctx).First(&attachment, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment by ID: %w", result.Error)
	}
	return &attachment, nil
}

// ListByMessage retrieves all attachments for a message in arrival order
func (r *attachmentRepository) ListByMessage(ctx context.Context, messageID uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	result := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&attachments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", result.Error)
	}
	return attachments, nil
}

// ListByThread retrieves every attachment of a conversation, oldest message first
func (r *attachmentRepository) ListByThread(ctx context.Context, threadID uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	result := r.db.WithContext(ctx).
		Joins("JOIN messages ON messages.id = attachments.message_id").
		Where("messages.thread_id = ?", threadID).
		Order("messages.created_at ASC, attachments.id ASC").
		Find(&attachments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list thread attachments: %w", result.Error)
	}
	return attachments, nil
}

// RemoveTeamFiles deletes the stored files of a team's attachments. Rows
// are left to the team's cascading delete. Missing files are skipped.
func (r *attachmentRepository) RemoveTeamFiles(ctx context.Context, teamID uint) (int, error) {
	if r.fileStorage == nil {
		return 0, nil
	}

	var paths []string
	result := r.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Joins("JOIN messages ON messages.id = attachments.message_id").
		Where("messages.team_id = ? AND attachments.file_path <> ''", teamID).
		Pluck("attachments.file_path", &paths)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to list team attachment files: %w", result.Error)
	}

	removed := 0
	for _, p := range paths {
		if err := r.fileStorage.Delete(p); err == nil {
			removed++
		}
	}
	return removed, nil
}
