package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"gorm.io/gorm"
)

// MessageRepositoryTestSuite is the test suite for MessageRepository
type MessageRepositoryTestSuite struct {
	suite.Suite
	db        *gorm.DB
	repo      MessageRepository
	testTeam  *models.Team
	otherTeam *models.Team
}

func (s *MessageRepositoryTestSuite) SetupSuite() {
	s.db = openTestDB(s.T())
	s.repo = NewMessageRepository(s.db)
}

func (s *MessageRepositoryTestSuite) TearDownSuite() {
	closeTestDB(s.db)
}

// SetupTest cleans up data and creates two teams
func (s *MessageRepositoryTestSuite) SetupTest() {
	cleanTables(s.db)

	s.testTeam = &models.Team{Name: "Acme", Domain: "acme.com", IsActive: true}
	require.NoError(s.T(), s.db.Create(s.testTeam).Error)
	s.otherTeam = &models.Team{Name: "Globex", Domain: "globex.com", IsActive: true}
	require.NoError(s.T(), s.db.Create(s.otherTeam).Error)
}

func TestMessageRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MessageRepositoryTestSuite))
}

func (s *MessageRepositoryTestSuite) createThread(rootID string, minutes int) (*models.Thread, *models.Message) {
	thread := newThreadDraft(s.testTeam.ID, rootID)
	message := newInboundMessage(rootID, fixedTime(minutes))
	require.NoError(s.T(), s.repo.CreateWithThread(context.Background(), thread, message, nil))
	return thread, message
}

// ==================== CreateWithThread Tests ====================

func (s *MessageRepositoryTestSuite) TestCreateWithThread_Success() {
	// Arrange
	thread := newThreadDraft(s.testTeam.ID, "<root@example.com>")
	message := newInboundMessage("<root@example.com>", fixedTime(0))
	attachments := []models.Attachment{
		{Filename: "invoice.pdf", ContentType: "application/pdf", FilePath: "a/invoice.pdf", SizeBytes: 1024},
	}

	// Act
	err := s.repo.CreateWithThread(context.Background(), thread, message, attachments)

	// Assert
	require.NoError(s.T(), err)
	assert.NotZero(s.T(), thread.ID)
	assert.NotZero(s.T(), message.ID)
	assert.Equal(s.T(), thread.ID, message.ThreadID)
	assert.Equal(s.T(), s.testTeam.ID, message.TeamID)

	saved, err := s.repo.GetByID(context.Background(), message.ID)
	require.NoError(s.T(), err)
	assert.Len(s.T(), saved.Attachments, 1)

	var stored models.Thread
	require.NoError(s.T(), s.db.First(&stored, thread.ID).Error)
	assert.Equal(s.T(), 1, stored.MessageCount)
	assert.True(s.T(), stored.LastMessageAt.Equal(fixedTime(0)))
	assert.Len(s.T(), stored.Participants, 2)
}

func (s *MessageRepositoryTestSuite) TestCreateWithThread_DuplicateMessageIDRollsBack() {
	// Arrange
	s.createThread("<dup@example.com>", 0)

	// Act
	err := s.repo.CreateWithThread(context.Background(),
		newThreadDraft(s.testTeam.ID, "<dup@example.com>"), newInboundMessage("<dup@example.com>", fixedTime(5)), nil)

	// Assert
	assert.ErrorIs(s.T(), err, ErrDuplicateEntry)
	var threads, messages int64
	s.db.Model(&models.Thread{}).Count(&threads)
	s.db.Model(&models.Message{}).Count(&messages)
	assert.Equal(s.T(), int64(1), threads)
	assert.Equal(s.T(), int64(1), messages)
}

func (s *MessageRepositoryTestSuite) TestCreateWithThread_SameMessageIDOtherTeam() {
	// Arrange
	s.createThread("<shared@example.com>", 0)

	// Act
	err := s.repo.CreateWithThread(context.Background(),
		newThreadDraft(s.otherTeam.ID, "<shared@example.com>"), newInboundMessage("<shared@example.com>", fixedTime(0)), nil)

	// Assert
	assert.NoError(s.T(), err)
}

// ==================== AppendToThread Tests ====================

func (s *MessageRepositoryTestSuite) TestAppendToThread_UpdatesThread() {
	// Arrange
	thread, _ := s.createThread("<root@example.com>", 0)
	require.NoError(s.T(), s.db.Model(thread).Update("status", models.ThreadStatusClosed).Error)
	reply := newInboundMessage("<reply@example.com>", fixedTime(10))
	reply.InReplyTo = "<root@example.com>"
	newcomer := []models.Participant{
		{Address: "Customer@Example.com", Role: models.RoleFrom},
		{Address: "manager@example.com", Role: models.RoleCc},
	}

	// Act
	err := s.repo.AppendToThread(context.Background(), thread.ID, reply, nil, newcomer)

	// Assert
	require.NoError(s.T(), err)
	var stored models.Thread
	require.NoError(s.T(), s.db.First(&stored, thread.ID).Error)
	assert.Equal(s.T(), 2, stored.MessageCount)
	assert.Equal(s.T(), models.ThreadStatusUnread, stored.Status)
	assert.True(s.T(), stored.LastMessageAt.Equal(fixedTime(10)))
	assert.Len(s.T(), stored.Participants, 3)
	assert.Equal(s.T(), s.testTeam.ID, reply.TeamID)
}

func (s *MessageRepositoryTestSuite) TestAppendToThread_OlderMessageKeepsLastMessageAt() {
	// Arrange
	thread, _ := s.createThread("<root@example.com>", 30)
	late := newInboundMessage("<late@example.com>", fixedTime(5))

	// Act
	err := s.repo.AppendToThread(context.Background(), thread.ID, late, nil, nil)

	// Assert
	require.NoError(s.T(), err)
	var stored models.Thread
	require.NoError(s.T(), s.db.First(&stored, thread.ID).Error)
	assert.True(s.T(), stored.LastMessageAt.Equal(fixedTime(30)))
}

func (s *MessageRepositoryTestSuite) TestAppendToThread_Duplicate() {
	// Arrange
	thread, _ := s.createThread("<root@example.com>", 0)

	// Act
	err := s.repo.AppendToThread(context.Background(), thread.ID, newInboundMessage("<root@example.com>", fixedTime(1)), nil, nil)

	// Assert
	assert.ErrorIs(s.T(), err, ErrDuplicateEntry)
	var stored models.Thread
	require.NoError(s.T(), s.db.First(&stored, thread.ID).Error)
	assert.Equal(s.T(), 1, stored.MessageCount)
}

func (s *MessageRepositoryTestSuite) TestAppendToThread_ThreadNotFound() {
	// Act
	err := s.repo.AppendToThread(context.Background(), 99999, newInboundMessage("<x@example.com>", fixedTime(0)), nil, nil)

	// Assert
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== Lookup Tests ====================

func (s *MessageRepositoryTestSuite) TestFindByMessageID_ScopedToTeam() {
	// Arrange
	_, message := s.createThread("<root@example.com>", 0)

	// Act
	found, err := s.repo.FindByMessageID(context.Background(), s.testTeam.ID, "<root@example.com>")
	require.NoError(s.T(), err)
	other, otherErr := s.repo.FindByMessageID(context.Background(), s.otherTeam.ID, "<root@example.com>")

	// Assert
	assert.Equal(s.T(), message.ID, found.ID)
	assert.ErrorIs(s.T(), otherErr, ErrNotFound)
	assert.Nil(s.T(), other)
}

func (s *MessageRepositoryTestSuite) TestFindByExternalID() {
	// Arrange
	_, message := s.createThread("<root@example.com>", 0)
	externalID := "prov-123"
	require.NoError(s.T(), s.db.Model(message).Update("external_id", externalID).Error)

	// Act
	found, err := s.repo.FindByExternalID(context.Background(), externalID)
	_, missingErr := s.repo.FindByExternalID(context.Background(), "nope")

	// Assert
	require.NoError(s.T(), err)
	assert.Equal(s.T(), message.ID, found.ID)
	assert.ErrorIs(s.T(), missingErr, ErrNotFound)
}

func (s *MessageRepositoryTestSuite) TestListByThread_OldestFirst() {
	// Arrange
	thread, _ := s.createThread("<root@example.com>", 0)
	require.NoError(s.T(), s.repo.AppendToThread(context.Background(), thread.ID, newInboundMessage("<r2@example.com>", fixedTime(20)), nil, nil))
	require.NoError(s.T(), s.repo.AppendToThread(context.Background(), thread.ID, newInboundMessage("<r1@example.com>", fixedTime(10)), nil, nil))

	// Act
	messages, err := s.repo.ListByThread(context.Background(), thread.ID)

	// Assert
	require.NoError(s.T(), err)
	require.Len(s.T(), messages, 3)
	assert.Equal(s.T(), "<root@example.com>", messages[0].MessageID)
	assert.Equal(s.T(), "<r1@example.com>", messages[1].MessageID)
	assert.Equal(s.T(), "<r2@example.com>", messages[2].MessageID)
}

// ==================== UpdateDeliveryStatus Tests ====================

func (s *MessageRepositoryTestSuite) TestUpdateDeliveryStatus_IncrementsAttempts() {
	// Arrange
	_, message := s.createThread("<out@acme.com>", 0)
	reason := "mailbox full"

	// Act
	require.NoError(s.T(), s.repo.UpdateDeliveryStatus(context.Background(), message.ID, models.DeliverySent, nil, fixedTime(1)))
	err := s.repo.UpdateDeliveryStatus(context.Background(), message.ID, models.DeliveryFailed, &reason, fixedTime(2))

	// Assert
	require.NoError(s.T(), err)
	stored, err := s.repo.GetByID(context.Background(), message.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.DeliveryFailed, stored.Delivery.Status)
	assert.Equal(s.T(), 2, stored.Delivery.Attempts)
	require.NotNil(s.T(), stored.Delivery.ErrorMessage)
	assert.Equal(s.T(), reason, *stored.Delivery.ErrorMessage)
	require.NotNil(s.T(), stored.Delivery.LastAttemptAt)
	assert.True(s.T(), stored.Delivery.LastAttemptAt.Equal(fixedTime(2)))
}

func (s *MessageRepositoryTestSuite) TestUpdateDeliveryStatus_NotFound() {
	// Act
	err := s.repo.UpdateDeliveryStatus(context.Background(), 99999, models.DeliverySent, nil, fixedTime(0))

	// Assert
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== Schema Tests ====================

func (s *MessageRepositoryTestSuite) TestSchema_MessageIDIsTextColumn() {
	// Arrange
	columns, err := s.db.Migrator().ColumnTypes(&models.Message{})
	require.NoError(s.T(), err)

	// Assert
	var found bool
	for _, col := range columns {
		if col.Name() != "message_id" {
			continue
		}
		found = true
		assert.NotContains(s.T(), strings.ToLower(col.DatabaseTypeName()), "int")
	}
	assert.True(s.T(), found, "messages.message_id column missing")

	var referenced []string
	require.NoError(s.T(), s.db.Raw(`SELECT "table" FROM pragma_foreign_key_list('messages')`).Scan(&referenced).Error)
	assert.NotContains(s.T(), referenced, "attachments")
}

func (s *MessageRepositoryTestSuite) TestSchema_AttachmentsCascadeWithMessage() {
	// Arrange
	var fkEnabled int
	require.NoError(s.T(), s.db.Raw("PRAGMA foreign_keys").Scan(&fkEnabled).Error)
	require.Equal(s.T(), 1, fkEnabled)

	thread := newThreadDraft(s.testTeam.ID, "<m1@acme.com>")
	message := newInboundMessage("<m1@acme.com>", fixedTime(0))
	attachments := []models.Attachment{{Filename: "a.txt", ContentType: "text/plain", FilePath: "a/a.txt", SizeBytes: 3}}
	require.NoError(s.T(), s.repo.CreateWithThread(context.Background(), thread, message, attachments))

	stored, err := s.repo.FindByMessageID(context.Background(), s.testTeam.ID, "<m1@acme.com>")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "<m1@acme.com>", stored.MessageID)

	// Act
	require.NoError(s.T(), s.db.Delete(&models.Message{}, message.ID).Error)

	// Assert
	var count int64
	s.db.Model(&models.Attachment{}).Where("message_id = ?", message.ID).Count(&count)
	assert.Zero(s.T(), count)
}
