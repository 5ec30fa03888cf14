package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DetailStatus is the negotiation state of one proposed cost line.
type DetailStatus string

const (
	DetailProposed DetailStatus = "PROPOSED"
	DetailApproved DetailStatus = "APPROVED"
	DetailRejected DetailStatus = "REJECTED"
)

// OrderDetail is one additive cost line proposed against an order (extra parts,
// extra labour). Only APPROVED lines count toward the order's final amount.
type OrderDetail struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"not null;index" json:"order_id"`
	Description     string          `gorm:"not null" json:"description"`
	Quantity        int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	PricePerUnit    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price_per_unit"`
	Status          DetailStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	AddedByUserID   uint            `gorm:"not null" json:"added_by_user_id"`
	DecidedByUserID *uint           `json:"decided_by_user_id"`
	DecidedAt       *time.Time      `json:"decided_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the OrderDetail model
func (OrderDetail) TableName() string {
	return "order_details"
}

// LineTotal is quantity × price per unit.
func (d OrderDetail) LineTotal() decimal.Decimal {
	return d.PricePerUnit.Mul(decimal.NewFromInt(int64(d.Quantity)))
}
