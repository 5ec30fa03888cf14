package models

import "time"

// ChatConversation is the message thread between an order's customer and provider.
type ChatConversation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;uniqueIndex" json:"order_id"`
	CustomerID uint      `gorm:"not null;index" json:"customer_id"`
	ProviderID uint      `gorm:"not null;index" json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for the ChatConversation model
func (ChatConversation) TableName() string {
	return "chat_conversations"
}

// IsParticipant reports whether the user is one of the two parties of the thread.
func (c *ChatConversation) IsParticipant(userID uint) bool {
	return c.CustomerID == userID || c.ProviderID == userID
}

// ChatMessage is one append-only message. Content holds ciphertext when
// IsEncrypted is set; rows written before encryption was introduced hold plaintext.
type ChatMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"-"`
	IsEncrypted    bool      `gorm:"not null" json:"is_encrypted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for the ChatMessage model
func (ChatMessage) TableName() string {
	return "chat_messages"
}
