package model

import (
	"time"

	"gorm.io/datatypes"
)

// Customer links one application user to one Polar customer. Rows are never
// rewritten once created.
type Customer struct {
	Mirror
	UserID   string            `gorm:"size:128;uniqueIndex;not null" json:"userId" validate:"required"`
	Email    string            `gorm:"size:255" json:"email"`
	Metadata datatypes.JSONMap `json:"metadata"`
}

func (*Customer) Kind() Kind { return KindCustomer }

// User is owned by the host application; the bridge only reads it.
type User struct {
	ID    string `gorm:"primaryKey;size:128" json:"id"`
	Email string `gorm:"size:255;not null" json:"email"`
	Name  string `gorm:"size:255" json:"name"`
}

type WebhookEvent struct {
	EventID         string `gorm:"primaryKey;size:128;not null"`
	EventType       string `gorm:"size:64;index"`
	Outcome         string `gorm:"size:32"`
	ProcessingError string `gorm:"type:text"`
	Deliveries      int    `gorm:"not null;default:1"`
	ProcessedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
