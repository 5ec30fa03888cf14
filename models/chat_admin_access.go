package models

import "time"

// AccessStatus is the state of an admin chat-access grant.
type AccessStatus string

const (
	AccessApproved AccessStatus = "APPROVED"
	AccessRejected AccessStatus = "REJECTED"
	AccessExpired  AccessStatus = "EXPIRED"
)

// ChatAdminAccess is a customer-issued, time-boxed capability letting one admin
// decrypt one conversation. Only a digest of the bearer token is stored.
type ChatAdminAccess struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	ConversationID   uint         `gorm:"not null;index" json:"conversation_id"`
	CustomerID       uint         `gorm:"not null;index" json:"customer_id"`
	RequestedByAdmin uint         `gorm:"not null;index" json:"requested_by_admin"`
	Status           AccessStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	AccessTokenHash  string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	Reason           string       `gorm:"type:text" json:"reason"`
	CustomerResponse string       `gorm:"type:text" json:"customer_response"`
	ExpiresAt        time.Time    `gorm:"not null;index" json:"expires_at"`
	ApprovedAt       *time.Time   `json:"approved_at"`
	RevokedAt        *time.Time   `json:"revoked_at"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// TableName specifies the table name for the ChatAdminAccess model
func (ChatAdminAccess) TableName() string {
	return "chat_admin_accesses"
}

// UsableAt reports whether the grant still authorizes reads at the given instant.
func (a *ChatAdminAccess) UsableAt(now time.Time) bool {
	return a.Status == AccessApproved && now.Before(a.ExpiresAt)
}
