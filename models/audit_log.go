package models

import "time"

// AuditAction names an administrative operation recorded in the audit log.
type AuditAction string

const (
	AuditActionOverrideOrderStatus AuditAction = "OVERRIDE_ORDER_STATUS"
	AuditActionResolveReport       AuditAction = "RESOLVE_REVIEW_REPORT"
	AuditActionSetReviewVisibility AuditAction = "SET_REVIEW_VISIBILITY"
	AuditActionReadChatTranscript  AuditAction = "READ_CHAT_TRANSCRIPT"
)

// AuditResourceType names the kind of row an audit entry is about.
type AuditResourceType string

const (
	AuditResourceOrder        AuditResourceType = "order"
	AuditResourceReview       AuditResourceType = "review"
	AuditResourceReviewReport AuditResourceType = "review_report"
	AuditResourceConversation AuditResourceType = "chat_conversation"
)

// AuditLog records who changed what, with before/after snapshots as JSON.
type AuditLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	ActorUserID  uint              `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   uint              `gorm:"not null;index" json:"resource_id"`
	BeforeJSON   string            `gorm:"type:text" json:"before_json"`
	AfterJSON    string            `gorm:"type:text" json:"after_json"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}

// TableName specifies the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}
