package models

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Email             string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password          *string   `gorm:"size:255" json:"-"`
	Name              string    `gorm:"size:255;not null" json:"name"`
	Role              string    `gorm:"size:50;default:'member';index" json:"role"`
	Country           *string   `gorm:"size:100" json:"country,omitempty"`
	Address           *string   `gorm:"type:text" json:"address,omitempty"`
	Phone             *string   `gorm:"size:50" json:"phone,omitempty"`
	Photo             *string   `gorm:"size:255" json:"photo,omitempty"`
	GoogleID          *string   `gorm:"size:255;uniqueIndex" json:"-"`
	WithdrawalAddress *string   `gorm:"size:255" json:"withdrawal_address,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
