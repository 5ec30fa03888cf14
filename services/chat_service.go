package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UndecryptableMessage replaces the content of a message that fails to decrypt.
const UndecryptableMessage = "[message could not be decrypted]"

const maxMessageLength = 4000

// MessageView is a chat message with its content in plaintext.
type MessageView struct {
	ID               uint      `json:"id"`
	ConversationID   uint      `json:"conversation_id"`
	SenderID         uint      `json:"sender_id"`
	Content          string    `json:"content"`
	IsEncrypted      bool      `json:"is_encrypted"`
	DecryptionFailed bool      `json:"decryption_failed,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ChatService stores the customer/provider thread of an order, encrypted at rest.
type ChatService struct {
	db        *gorm.DB
	clock     Clock
	encryptor Encryptor
}

// NewChatService creates a chat service on db using the process clock and encryptor
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{
		db:        db,
		clock:     GetClock(),
		encryptor: GetEncryptor(),
	}
}

// OpenConversation returns the order's conversation, creating it on first use.
func (s *ChatService) OpenConversation(ctx context.Context, actor Actor, orderID uint) (*models.ChatConversation, error) {
	order, err := loadOrder(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParticipant(actor.ID) {
		return nil, NewForbidden("FORBIDDEN", "only the order's customer or provider can chat on it")
	}

	var conv models.ChatConversation
	err = s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	conv = models.ChatConversation{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ProviderID: order.ProviderID,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		if !IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		// lost a race with the other participant
		if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&conv).Error; err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
	}
	return &conv, nil
}

// SendMessage encrypts and appends a message from one of the two participants.
func (s *ChatService) SendMessage(ctx context.Context, actor Actor, conversationID uint, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, NewInvalidInput("VALIDATION_ERROR", "message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, NewInvalidInput("VALIDATION_ERROR", "message content cannot exceed %d characters", maxMessageLength)
	}

	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}

	sealed, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt message: %w", err)
	}
	msg := models.ChatMessage{
		ConversationID: conv.ID,
		SenderID:       actor.ID,
		Content:        sealed,
		IsEncrypted:    true,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	return &MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        content,
		IsEncrypted:    true,
		CreatedAt:      msg.CreatedAt,
	}, nil
}

// ListMessages returns the decrypted thread, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, actor Actor, conversationID uint) ([]MessageView, error) {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := loadMessages(s.db.WithContext(ctx), conv.ID)
	if err != nil {
		return nil, err
	}
	return decryptMessages(s.encryptor, msgs), nil
}

// participantConversation loads a conversation, hiding it from non-participants.
func (s *ChatService) participantConversation(ctx context.Context, actor Actor, conversationID uint) (*models.ChatConversation, error) {
	conv, err := loadConversation(s.db.WithContext(ctx), conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(actor.ID) {
		return nil, NewNotFound("CONVERSATION_NOT_FOUND", "Conversation not found")
	}
	return conv, nil
}

func loadConversation(db *gorm.DB, conversationID uint) (*models.ChatConversation, error) {
	var conv models.ChatConversation
	if err := db.First(&conv, conversationID).Error; err != nil {
		return nil, notFoundOr(err, "CONVERSATION_NOT_FOUND", "Conversation")
	}
	return &conv, nil
}

func loadMessages(db *gorm.DB, conversationID uint) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return msgs, nil
}

// decryptMessages never fails as a whole: a message that cannot be opened is
// replaced by UndecryptableMessage and the rest are still returned.
func decryptMessages(enc Encryptor, msgs []models.ChatMessage) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := MessageView{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Content:        m.Content,
			IsEncrypted:    m.IsEncrypted,
			CreatedAt:      m.CreatedAt,
		}
		if m.IsEncrypted {
			plain, err := enc.Decrypt(m.Content)
			if err != nil {
				zap.L().Warn("chat message could not be decrypted",
					zap.Uint("message_id", m.ID),
					zap.Uint("conversation_id", m.ConversationID),
					zap.Error(err),
				)
				view.Content = UndecryptableMessage
				view.DecryptionFailed = true
			} else {
				view.Content = plain
			}
		}
		views = append(views, view)
	}
	return views
}
