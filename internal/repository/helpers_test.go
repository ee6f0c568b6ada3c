package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens an in-memory SQLite database with the inbox schema.
// The pool is pinned to one connection so every query sees the same memory DB.
func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// Enable foreign keys for SQLite (required for cascade delete)
	db.Exec("PRAGMA foreign_keys = ON")

	err = db.AutoMigrate(&models.Team{}, &models.Thread{}, &models.Message{}, &models.Attachment{})
	require.NoError(t, err)
	return db
}

func cleanTables(db *gorm.DB) {
	db.Exec("DELETE FROM attachments")
	db.Exec("DELETE FROM messages")
	db.Exec("DELETE FROM threads")
	db.Exec("DELETE FROM teams")
}

func closeTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

func newThreadDraft(teamID uint, rootID string) *models.Thread {
	return &models.Thread{
		TeamID:    teamID,
		Subject:   "Subject of " + rootID,
		MessageID: rootID,
		Participants: []models.Participant{
			{Address: "customer@example.com", Role: models.RoleFrom},
			{Address: "support@acme.com", Role: models.RoleTo},
		},
		Status:   models.ThreadStatusUnread,
		Priority: models.PriorityNormal,
		Tags:     []string{},
	}
}

func newInboundMessage(messageID string, at time.Time) *models.Message {
	text := "Body of " + messageID
	return &models.Message{
		MessageID:   messageID,
		FromAddress: "customer@example.com",
		To:          []models.Address{{Address: "support@acme.com"}},
		Subject:     "Subject of " + messageID,
		TextContent: &text,
		Direction:   models.DirectionInbound,
		CreatedAt:   at,
	}
}

// fixedTime returns a deterministic UTC timestamp offset by the given minutes
func fixedTime(minutes int) time.Time {
	return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}
