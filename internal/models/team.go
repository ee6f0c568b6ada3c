package models

import (
	"time"
)

// Team owns the shared inbox for one receiving domain
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Domain    string    `gorm:"uniqueIndex;not null;size:255" json:"domain"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Threads []Thread `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Team
func (Team) TableName() string {
	return "teams"
}
