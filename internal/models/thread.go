package models

import (
	"time"
)

// ThreadStatus is the workflow state of a conversation
type ThreadStatus string

const (
	ThreadStatusUnread   ThreadStatus = "unread"
	ThreadStatusRead     ThreadStatus = "read"
	ThreadStatusReplied  ThreadStatus = "replied"
	ThreadStatusClosed   ThreadStatus = "closed"
	ThreadStatusArchived ThreadStatus = "archived"
)

// Valid reports whether s is a known thread status
func (s ThreadStatus) Valid() bool {
	switch s {
	case ThreadStatusUnread, ThreadStatusRead, ThreadStatusReplied, ThreadStatusClosed, ThreadStatusArchived:
		return true
	}
	return false
}

// Priority is the urgency assigned to a thread
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Thread groups related messages within a team
type Thread struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	TeamID       uint          `gorm:"not null;uniqueIndex:idx_threads_team_message_id,priority:1;index" json:"team_id"`
	Subject      string        `json:"subject"`
	MessageID    string        `gorm:"not null;size:998;uniqueIndex:idx_threads_team_message_id,priority:2" json:"message_id"`
	InReplyTo    string        `gorm:"size:998" json:"in_reply_to,omitempty"`
	References   []string      `gorm:"type:text;serializer:json" json:"references"`
	Participants []Participant `gorm:"type:text;serializer:json" json:"participants"`
	Status       ThreadStatus  `gorm:"not null;size:20;default:unread;index" json:"status"`
	Priority     Priority      `gorm:"not null;size:20;default:normal" json:"priority"`
	Tags         []string      `gorm:"type:text;serializer:json" json:"tags"`
	MessageCount int           `gorm:"not null;default:0" json:"message_count"`
	// LastMessageAt only moves forward, see ThreadRepository.AdvanceLastMessageAt.
	LastMessageAt time.Time `gorm:"not null;index" json:"last_message_at"`

	Summary                  *string    `json:"summary,omitempty"`
	Category                 *string    `gorm:"size:100" json:"category,omitempty"`
	ClassificationConfidence *float64   `json:"classification_confidence,omitempty"`
	ClassifiedAt             *time.Time `json:"classified_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Team     Team      `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []Message `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName returns the table name for Thread
func (Thread) TableName() string {
	return "threads"
}

// Classification is the AI verdict applied to a thread
type Classification struct {
	Category   string   `json:"category"`
	Priority   Priority `json:"priority"`
	Confidence float64  `json:"confidence"`
}

// ThreadListItem is a lightweight version for list views
type ThreadListItem struct {
	ID            uint         `json:"id"`
	TeamID        uint         `json:"team_id"`
	Subject       string       `json:"subject"`
	Status        ThreadStatus `json:"status"`
	Priority      Priority     `json:"priority"`
	Category      *string      `json:"category,omitempty"`
	MessageCount  int          `json:"message_count"`
	LastMessageAt time.Time    `json:"last_message_at"`
}
