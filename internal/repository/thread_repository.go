package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"gorm.io/gorm"
)

// ThreadRepository defines the interface for thread data access
type ThreadRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Thread, error)
	GetWithMessages(ctx context.Context, id uint) (*models.Thread, error)
	ListByTeam(ctx context.Context, teamID uint, status models.ThreadStatus, limit, offset int) ([]models.ThreadListItem, int64, error)
	UpdateStatus(ctx context.Context, id uint, status models.ThreadStatus) error
	UpdateClassification(ctx context.Context, id uint, c models.Classification, at time.Time) error
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new ThreadRepository instance
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

// GetByID retrieves a thread without its messages
func (r *threadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	result := r.db.WithContext(ctx).First(&thread, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get thread by ID: %w", result.Error)
	}
	return &thread, nil
}

// GetWithMessages retrieves a thread with its messages oldest first
func (r *threadRepository) GetWithMessages(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	result := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Messages.Attachments").
		First(&thread, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get thread with messages: %w", result.Error)
	}
	return &thread, nil
}

// ListByTeam lists a team's threads, most recently active first.
// An empty status lists all statuses.
func (r *threadRepository) ListByTeam(ctx context.Context, teamID uint, status models.ThreadStatus, limit, offset int) ([]models.ThreadListItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Thread{}).Where("team_id = ?", teamID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count threads: %w", err)
	}

	var items []models.ThreadListItem
	err := query.
		Select("id, team_id, subject, status, priority, category, message_count, last_message_at").
		Order("last_message_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list threads: %w", err)
	}
	return items, total, nil
}

// UpdateStatus changes the workflow status of a thread
func (r *threadRepository) UpdateStatus(ctx context.Context, id uint, status models.ThreadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown thread status %q: %w", status, ErrInvalidInput)
	}
	result := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update thread status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateClassification stores the classifier's verdict on a thread
func (r *threadRepository) UpdateClassification(ctx context.Context, id uint, c models.Classification, at time.Time) error {
	if !c.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", c.Priority, ErrInvalidInput)
	}
	category := c.Category
	confidence := c.Confidence
	result := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", id).Updates(map[string]interface{}{
		"category":                  &category,
		"priority":                  c.Priority,
		"classification_confidence": &confidence,
		"classified_at":             at,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update thread classification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// advanceLastMessageAt moves last_message_at forward to at. Older timestamps
// are ignored so concurrent appends can never move it backwards.
func advanceLastMessageAt(tx *gorm.DB, threadID uint, at time.Time) error {
	err := tx.Model(&models.Thread{}).
		Where("id = ? AND last_message_at < ?", threadID, at).
		UpdateColumn("last_message_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to advance thread activity: %w", err)
	}
	return nil
}
