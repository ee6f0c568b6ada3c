package ingest

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
)

// openTestDB opens an in-memory SQLite database pinned to one connection
func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, db.AutoMigrate(&models.Team{}, &models.Thread{}, &models.Message{}, &models.Attachment{}))
	return db
}

func closeTestDB(db *gorm.DB) {
	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}
}

// steppingClock returns a clock that advances one minute per call
func steppingClock() func() time.Time {
	var n atomic.Int64
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Minute)
	}
}

func inbound(messageID string) *InboundPayload {
	text := "Body of " + messageID
	return &InboundPayload{
		From:      "customer@acme.com",
		To:        StringList{"support@ourteam.io"},
		Subject:   "Order problem",
		MessageID: messageID,
		Text:      &text,
	}
}
