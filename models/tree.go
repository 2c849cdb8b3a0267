package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TreeStatusPending  = "pending"
	TreeStatusVerified = "verified"
	TreeStatusRejected = "rejected"
)

// Tree is a planting submission owned by one member. tokens_allocated is a
// denormalized running total incremented whenever a reward transaction
// referencing this tree is created.
type Tree struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	PlantedDate     time.Time       `gorm:"type:date;not null" json:"planted_date"`
	Location        string          `gorm:"size:255;not null" json:"location"`
	Latitude        *float64        `gorm:"type:decimal(10,8)" json:"latitude,omitempty"`
	Longitude       *float64        `gorm:"type:decimal(11,8)" json:"longitude,omitempty"`
	TreeType        string          `gorm:"size:100;not null" json:"tree_type"`
	Photo           string          `gorm:"size:255;not null" json:"photo"`
	Status          string          `gorm:"size:50;default:'pending';index" json:"status"`
	TokensAllocated decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"tokens_allocated"`
	VerifiedBy      *uint           `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	Notes           *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (Tree) TableName() string {
	return "trees"
}
