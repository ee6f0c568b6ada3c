package models

import (
	"time"
)

// Direction tells whether a message was received or sent by the team
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryState is the provider-reported state of an outbound message
type DeliveryState string

const (
	DeliverySent      DeliveryState = "sent"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// DeliveryStatus tracks outbound delivery attempts
type DeliveryStatus struct {
	Status        DeliveryState `gorm:"size:20" json:"status,omitempty"`
	Attempts      int           `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt *time.Time    `json:"last_attempt_at,omitempty"`
	ErrorMessage  *string       `json:"error_message,omitempty"`
}

// Message is a single email within a thread
type Message struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	TeamID      uint              `gorm:"not null;uniqueIndex:idx_messages_team_message_id,priority:1" json:"team_id"`
	ThreadID    uint              `gorm:"not null;index" json:"thread_id"`
	MessageID   string            `gorm:"not null;size:998;uniqueIndex:idx_messages_team_message_id,priority:2" json:"message_id"`
	InReplyTo   string            `gorm:"size:998" json:"in_reply_to,omitempty"`
	References  []string          `gorm:"type:text;serializer:json" json:"references"`
	FromAddress string            `gorm:"not null;size:320" json:"from_address"`
	FromName    string            `gorm:"size:255" json:"from_name,omitempty"`
	To          []Address         `gorm:"type:text;serializer:json" json:"to"`
	Cc          []Address         `gorm:"type:text;serializer:json" json:"cc,omitempty"`
	Bcc         []Address         `gorm:"type:text;serializer:json" json:"bcc,omitempty"`
	Subject     string            `json:"subject"`
	TextContent *string           `json:"text_content,omitempty"`
	HTMLContent *string           `json:"html_content,omitempty"`
	Headers     map[string]string `gorm:"type:text;serializer:json" json:"headers,omitempty"`
	Direction   Direction         `gorm:"not null;size:10;default:inbound" json:"direction"`
	// ExternalID is the delivery provider's id for outbound messages
	ExternalID *string        `gorm:"size:255;uniqueIndex" json:"external_id,omitempty"`
	Delivery   DeliveryStatus `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery"`
	SentAt     *time.Time     `json:"sent_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`

	// Relationships
	Thread      Thread       `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
	Attachments []Attachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// Sender returns the From address as an Address value
func (m *Message) Sender() Address {
	return Address{Address: m.FromAddress, Name: m.FromName}
}

// ClassificationInput picks the content sent to the classifier:
// text body, then HTML body, then subject.
func (m *Message) ClassificationInput() string {
	if m.TextContent != nil && *m.TextContent != "" {
		return *m.TextContent
	}
	if m.HTMLContent != nil && *m.HTMLContent != "" {
		return *m.HTMLContent
	}
	return m.Subject
}
