package models

import "time"

// Review is a customer's opinion of one completed order. At most one per order.
type Review struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrderID     uint       `gorm:"not null;uniqueIndex" json:"order_id"`
	CustomerID  uint       `gorm:"not null;index" json:"customer_id"`
	ProviderID  uint       `gorm:"not null;index" json:"provider_id"`
	Rating      int        `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment     string     `gorm:"type:text" json:"comment"`
	IsShow      bool       `gorm:"not null" json:"is_show"`
	IsReported  bool       `gorm:"not null" json:"is_reported"`
	ModeratedAt *time.Time `json:"moderated_at"`
	ModeratedBy *uint      `json:"moderated_by"`
	AdminNotes  string     `gorm:"type:text" json:"admin_notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the Review model
func (Review) TableName() string {
	return "reviews"
}

// ReportStatus tracks a review report through moderation.
type ReportStatus string

const (
	ReportPendingReview         ReportStatus = "PENDING_REVIEW"
	ReportResolvedReviewKept    ReportStatus = "RESOLVED_REVIEW_KEPT"
	ReportResolvedReviewRemoved ReportStatus = "RESOLVED_REVIEW_REMOVED"
)

// Valid reports whether s is a known report status.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPendingReview, ReportResolvedReviewKept, ReportResolvedReviewRemoved:
		return true
	}
	return false
}

// ReviewReport is a flag raised by one user against one review. A user may report
// a given review once, whatever happened to the earlier report.
type ReviewReport struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	ReviewID          uint         `gorm:"not null;uniqueIndex:idx_review_reporter" json:"review_id"`
	ReportedByUserID  uint         `gorm:"not null;uniqueIndex:idx_review_reporter" json:"reported_by_user_id"`
	Reason            string       `gorm:"type:text;not null" json:"reason"`
	Status            ReportStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	ResolvedByAdminID *uint        `json:"resolved_by_admin_id"`
	ResolvedAt        *time.Time   `json:"resolved_at"`
	AdminNotes        string       `gorm:"type:text" json:"admin_notes"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// TableName specifies the table name for the ReviewReport model
func (ReviewReport) TableName() string {
	return "review_reports"
}
