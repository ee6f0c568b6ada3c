package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
)

// MockTeamRepository implements repository.TeamRepository
type MockTeamRepository struct {
	mock.Mock
}

// Create creates a new team
func (m *MockTeamRepository) Create(ctx context.Context, team *models.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

// GetByID retrieves a team by its ID
func (m *MockTeamRepository) GetByID(ctx context.Context, id uint) (*models.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

// GetByDomain retrieves the team owning a domain
func (m *MockTeamRepository) GetByDomain(ctx context.Context, domain string) (*models.Team, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

// List retrieves teams, optionally only active ones
func (m *MockTeamRepository) List(ctx context.Context, activeOnly bool) ([]models.Team, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Team), args.Error(1)
}

// Update saves a team
func (m *MockTeamRepository) Update(ctx context.Context, team *models.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

// Delete deletes a team by its ID
func (m *MockTeamRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockThreadRepository implements repository.ThreadRepository
type MockThreadRepository struct {
	mock.Mock
}

// GetByID retrieves a thread by its ID
func (m *MockThreadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Thread), args.Error(1)
}

// GetWithMessages retrieves a thread and its messages
func (m *MockThreadRepository) GetWithMessages(ctx context.Context, id uint) (*models.Thread, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Thread), args.Error(1)
}

// ListByTeam lists a team's threads
func (m *MockThreadRepository) ListByTeam(ctx context.Context, teamID uint, status models.ThreadStatus, limit, offset int) ([]models.ThreadListItem, int64, error) {
	args := m.Called(ctx, teamID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.ThreadListItem), args.Get(1).(int64), args.Error(2)
}

// UpdateStatus changes a thread's status
func (m *MockThreadRepository) UpdateStatus(ctx context.Context, id uint, status models.ThreadStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// UpdateClassification stores a classification verdict
func (m *MockThreadRepository) UpdateClassification(ctx context.Context, id uint, c models.Classification, at time.Time) error {
	args := m.Called(ctx, id, c, at)
	return args.Error(0)
}

// MockMessageRepository implements repository.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// CreateWithThread inserts a thread and its first message
func (m *MockMessageRepository) CreateWithThread(ctx context.Context, thread *models.Thread, message *models.Message, attachments []models.Attachment) error {
	args := m.Called(ctx, thread, message, attachments)
	return args.Error(0)
}

// AppendToThread inserts a follow-up message
func (m *MockMessageRepository) AppendToThread(ctx context.Context, threadID uint, message *models.Message, attachments []models.Attachment, participants []models.Participant) error {
	args := m.Called(ctx, threadID, message, attachments, participants)
	return args.Error(0)
}

// GetByID retrieves a message by its ID
func (m *MockMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// FindByMessageID looks up a message by RFC Message-ID within a team
func (m *MockMessageRepository) FindByMessageID(ctx context.Context, teamID uint, messageID string) (*models.Message, error) {
	args := m.Called(ctx, teamID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// FindByExternalID looks up a message by provider id
func (m *MockMessageRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Message, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// ListByThread lists a thread's messages
func (m *MockMessageRepository) ListByThread(ctx context.Context, threadID uint) ([]models.Message, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

// UpdateDeliveryStatus patches delivery tracking fields
func (m *MockMessageRepository) UpdateDeliveryStatus(ctx context.Context, id uint, state models.DeliveryState, errMsg *string, at time.Time) error {
	args := m.Called(ctx, id, state, errMsg, at)
	return args.Error(0)
}

// MockAttachmentRepository implements repository.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

// GetByID retrieves an attachment by its ID
func (m *MockAttachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// ListByMessage lists a message's attachments
func (m *MockAttachmentRepository) ListByMessage(ctx context.Context, messageID uint) ([]models.Attachment, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// ListByThread lists every attachment in a thread
func (m *MockAttachmentRepository) ListByThread(ctx context.Context, threadID uint) ([]models.Attachment, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// RemoveTeamFiles removes a team's stored files
func (m *MockAttachmentRepository) RemoveTeamFiles(ctx context.Context, teamID uint) (int, error) {
	args := m.Called(ctx, teamID)
	return args.Int(0), args.Error(1)
}
