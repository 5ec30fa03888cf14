package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the canonical lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPendingAcceptance   OrderStatus = "PENDING_ACCEPTANCE"
	OrderStatusAccepted            OrderStatus = "ACCEPTED"
	OrderStatusInProgress          OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted           OrderStatus = "COMPLETED"
	OrderStatusRejectedByProvider  OrderStatus = "REJECTED_BY_PROVIDER"
	OrderStatusCancelledByCustomer OrderStatus = "CANCELLED_BY_CUSTOMER"
	OrderStatusDisputed            OrderStatus = "DISPUTED"
)

// AllOrderStatuses lists every order status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusPendingAcceptance,
	OrderStatusAccepted,
	OrderStatusInProgress,
	OrderStatusCompleted,
	OrderStatusRejectedByProvider,
	OrderStatusCancelledByCustomer,
	OrderStatusDisputed,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsActive reports whether the order is still open for work and cost negotiation.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusPendingAcceptance, OrderStatusAccepted, OrderStatusInProgress:
		return true
	}
	return false
}

// AttendanceStatus is the provider-reported on-site progress. The zero value means
// the provider has not reported anything yet.
type AttendanceStatus string

const (
	AttendanceNone      AttendanceStatus = ""
	AttendanceOnTheWay  AttendanceStatus = "ON_THE_WAY"
	AttendanceArrived   AttendanceStatus = "ARRIVED"
	AttendanceWorking   AttendanceStatus = "WORKING"
	AttendanceCompleted AttendanceStatus = "COMPLETED"
)

var attendanceSequence = []AttendanceStatus{
	AttendanceNone,
	AttendanceOnTheWay,
	AttendanceArrived,
	AttendanceWorking,
	AttendanceCompleted,
}

// Next returns the status that follows s, or false when s is final or unknown.
func (s AttendanceStatus) Next() (AttendanceStatus, bool) {
	for i, step := range attendanceSequence {
		if step == s && i+1 < len(attendanceSequence) {
			return attendanceSequence[i+1], true
		}
	}
	return "", false
}

// Valid reports whether s is a reportable attendance status.
func (s AttendanceStatus) Valid() bool {
	for _, step := range attendanceSequence[1:] {
		if s == step {
			return true
		}
	}
	return false
}

// VerificationStatus is the customer's acceptance decision on the provider's work.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = ""
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// PaymentMethod is how the customer intends to settle the final amount.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentEWallet      PaymentMethod = "e_wallet"
)

// Order is one engagement between a customer and a provider for one listed service.
// Orders are never deleted; rejection and cancellation are terminal statuses.
type Order struct {
	ID                         uint                `gorm:"primaryKey" json:"id"`
	CustomerID                 uint                `gorm:"not null;index" json:"customer_id"`
	ProviderID                 uint                `gorm:"not null;index" json:"provider_id"`
	ProviderServiceID          uint                `gorm:"not null;index" json:"provider_service_id"`
	Status                     OrderStatus         `gorm:"type:varchar(32);not null;index" json:"status"`
	ScheduledDate              time.Time           `gorm:"not null" json:"scheduled_date"`
	JobAddress                 string              `gorm:"not null" json:"job_address"`
	JobDistrict                string              `json:"job_district"`
	JobSubDistrict             string              `json:"job_sub_district"`
	JobWard                    string              `json:"job_ward"`
	JobDescriptionNotes        string              `gorm:"type:text" json:"job_description_notes"`
	BasePrice                  decimal.Decimal     `gorm:"type:numeric(14,2);not null" json:"base_price"`
	FinalAmount                decimal.NullDecimal `gorm:"type:numeric(14,2)" json:"final_amount"`
	ChosenPaymentMethod        PaymentMethod       `gorm:"type:varchar(20)" json:"chosen_payment_method"`
	ProviderAttendanceStatus   AttendanceStatus    `gorm:"type:varchar(20)" json:"provider_attendance_status"`
	ProviderArrivalTime        *time.Time          `json:"provider_arrival_time"`
	ProviderNotes              string              `gorm:"type:text" json:"provider_notes"`
	CustomerVerificationStatus VerificationStatus  `gorm:"type:varchar(20)" json:"customer_verification_status"`
	CustomerVerificationNotes  string              `gorm:"type:text" json:"customer_verification_notes"`
	CustomerVerificationTime   *time.Time          `json:"customer_verification_time"`
	Information                string              `gorm:"type:text" json:"information"` // append-only audit trail
	JobPhotoKey                *string             `json:"-"`
	JobPhotoURL                *string             `gorm:"-" json:"job_photo_url,omitempty"` // presigned, computed on read
	CreatedAt                  time.Time           `json:"created_at"`
	UpdatedAt                  time.Time           `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// IsParticipant reports whether the user is the order's customer or provider.
func (o *Order) IsParticipant(userID uint) bool {
	return o.CustomerID == userID || o.ProviderID == userID
}

// AppendInformation adds a timestamped line to the audit trail without
// replacing earlier entries.
func (o *Order) AppendInformation(at time.Time, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	entry := "[" + at.UTC().Format(time.RFC3339) + "] " + line
	if o.Information == "" {
		o.Information = entry
		return
	}
	o.Information += "\n" + entry
}
