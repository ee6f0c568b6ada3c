package models

import "time"

// Attachment is a file carried by an ingested message. The bytes live in
// file storage; FilePath is the storage key.
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MessageID   uint      `gorm:"not null;index" json:"message_id"`
	Filename    string    `gorm:"size:255" json:"filename"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	FilePath    string    `gorm:"size:500" json:"-"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `gorm:"size:64" json:"checksum,omitempty"` // hex sha256 of the stored bytes
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for Attachment
func (Attachment) TableName() string {
	return "attachments"
}

// IsImage reports whether the attachment can be previewed inline.
func (a Attachment) IsImage() bool {
	return len(a.ContentType) > 6 && a.ContentType[:6] == "image/"
}
