package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the marketplace role attached to a user account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// User represents a user in the system (customer, provider or admin)
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ExternalID string         `gorm:"uniqueIndex;not null" json:"external_id"` // identity provider subject ('sub' claim)
	Name       string         `gorm:"not null" json:"name"`
	Email      string         `gorm:"uniqueIndex;not null" json:"email"`
	Role       Role           `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	IsActive   bool           `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
