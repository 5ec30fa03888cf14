package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProviderService is one service a provider lists on the marketplace.
// BasePrice is snapshotted onto every order created against it.
type ProviderService struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ProviderID  uint            `gorm:"not null;index" json:"provider_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	BasePrice   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_price"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the ProviderService model
func (ProviderService) TableName() string {
	return "provider_services"
}
