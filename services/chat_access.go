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

// DefaultChatAccessMaxHours bounds how long a single grant may last.
const DefaultChatAccessMaxHours = 72

// ChatAccessService manages customer-issued capabilities that let one admin read
// one conversation for a limited time.
type ChatAccessService struct {
	db        *gorm.DB
	tx        TransactionManager
	clock     Clock
	notifier  Notifier
	encryptor Encryptor
	maxHours  int
}

// NewChatAccessService creates the capability manager. A non-positive maxHours
// falls back to DefaultChatAccessMaxHours.
func NewChatAccessService(db *gorm.DB, maxHours int) *ChatAccessService {
	if maxHours <= 0 {
		maxHours = DefaultChatAccessMaxHours
	}
	return &ChatAccessService{
		db:        db,
		tx:        NewTransactionManager(db),
		clock:     GetClock(),
		notifier:  GetNotifier(),
		encryptor: GetEncryptor(),
		maxHours:  maxHours,
	}
}

// GrantInput names the grantee and the grant's lifetime.
type GrantInput struct {
	AdminID     uint
	AccessHours int
	Reason      string
	Response    string
}

// GrantResult carries the stored grant and the bearer token. The token is never
// persisted and cannot be recovered later.
type GrantResult struct {
	Access      *models.ChatAdminAccess `json:"access"`
	AccessToken string                  `json:"access_token"`
}

// Transcript is a decrypted conversation returned to an authorized admin.
type Transcript struct {
	ConversationID uint          `json:"conversation_id"`
	OrderID        uint          `json:"order_id"`
	ExpiresAt      time.Time     `json:"expires_at"`
	Messages       []MessageView `json:"messages"`
}

// Grant issues a fresh token to an admin. An APPROVED grant already held by this
// customer on this conversation is updated in place: token rotated, grantee and
// expiry replaced.
func (s *ChatAccessService) Grant(ctx context.Context, actor Actor, conversationID uint, in GrantInput) (*GrantResult, error) {
	if in.AdminID == 0 {
		return nil, NewInvalidInput("ADMIN_REQUIRED", "an admin must be named to receive access")
	}
	if in.AccessHours < 1 || in.AccessHours > s.maxHours {
		return nil, NewInvalidInput("INVALID_ACCESS_HOURS", "access hours must be between 1 and %d", s.maxHours)
	}

	conv, err := loadConversation(s.db.WithContext(ctx), conversationID)
	if err != nil {
		return nil, err
	}
	if conv.CustomerID != actor.ID {
		return nil, NewForbidden("FORBIDDEN", "only the conversation's customer can grant access")
	}

	var admin models.User
	if err := s.db.WithContext(ctx).First(&admin, in.AdminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewInvalidInput("INVALID_ADMIN", "user %d is not an admin", in.AdminID)
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	if admin.Role != models.RoleAdmin || !admin.IsActive {
		return nil, NewInvalidInput("INVALID_ADMIN", "user %d is not an active admin", in.AdminID)
	}

	token, err := GenerateAccessToken()
	if err != nil {
		return nil, err
	}
	hash := HashAccessToken(token)
	now := s.clock.Now()
	expiresAt := now.Add(time.Duration(in.AccessHours) * time.Hour)

	var access models.ChatAdminAccess
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ? AND customer_id = ? AND status = ?",
			conv.ID, actor.ID, models.AccessApproved).
			Order("id DESC").First(&access).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			access = models.ChatAdminAccess{
				ConversationID:   conv.ID,
				CustomerID:       actor.ID,
				RequestedByAdmin: admin.ID,
				Status:           models.AccessApproved,
				AccessTokenHash:  hash,
				Reason:           strings.TrimSpace(in.Reason),
				CustomerResponse: strings.TrimSpace(in.Response),
				ExpiresAt:        expiresAt,
				ApprovedAt:       &now,
			}
			if err := tx.Create(&access).Error; err != nil {
				return fmt.Errorf("failed to create access grant: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to load access grant: %w", err)
		}

		access.RequestedByAdmin = admin.ID
		access.AccessTokenHash = hash
		access.Reason = strings.TrimSpace(in.Reason)
		access.CustomerResponse = strings.TrimSpace(in.Response)
		access.ExpiresAt = expiresAt
		access.ApprovedAt = &now
		access.RevokedAt = nil
		if err := tx.Model(&access).Updates(map[string]interface{}{
			"requested_by_admin": admin.ID,
			"access_token_hash":  hash,
			"reason":             access.Reason,
			"customer_response":  access.CustomerResponse,
			"expires_at":         expiresAt,
			"approved_at":        now,
			"revoked_at":         nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to update access grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("chat access granted",
		zap.Uint("grant_id", access.ID),
		zap.Uint("conversation_id", conv.ID),
		zap.Uint("customer_id", actor.ID),
		zap.Uint("admin_id", admin.ID),
		zap.Time("expires_at", expiresAt),
	)
	s.notifier.Notify(ctx, Notification{
		Type:        NotifyChatAccessGranted,
		RecipientID: admin.ID,
		OrderID:     conv.OrderID,
		Payload: map[string]interface{}{
			"conversation_id": conv.ID,
			"access_token":    token,
			"expires_at":      expiresAt,
		},
		CreatedAt: now,
	})
	return &GrantResult{Access: &access, AccessToken: token}, nil
}

// Revoke ends the customer's active grant on the conversation by pulling its
// expiry to now. The status is left APPROVED and flips to REJECTED on the next
// read attempt. A grant that has already run out cannot be revoked.
func (s *ChatAccessService) Revoke(ctx context.Context, actor Actor, conversationID uint) (*models.ChatAdminAccess, error) {
	conv, err := loadConversation(s.db.WithContext(ctx), conversationID)
	if err != nil {
		return nil, err
	}
	if conv.CustomerID != actor.ID {
		return nil, NewForbidden("FORBIDDEN", "only the conversation's customer can revoke access")
	}

	now := s.clock.Now()
	var access models.ChatAdminAccess
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		// a grant already past its expiry timed out; the next read flips it to EXPIRED
		err := tx.Where("conversation_id = ? AND customer_id = ? AND status = ? AND revoked_at IS NULL AND expires_at > ?",
			conv.ID, actor.ID, models.AccessApproved, now).
			Order("id DESC").First(&access).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFound("NO_ACTIVE_GRANT", "no active access grant on this conversation")
		}
		if err != nil {
			return fmt.Errorf("failed to load access grant: %w", err)
		}

		access.ExpiresAt = now
		access.RevokedAt = &now
		if err := tx.Model(&access).Updates(map[string]interface{}{
			"expires_at": now,
			"revoked_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to revoke access grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("chat access revoked",
		zap.Uint("grant_id", access.ID),
		zap.Uint("conversation_id", conv.ID),
		zap.Uint("customer_id", actor.ID),
		zap.Uint("admin_id", access.RequestedByAdmin),
	)
	s.notifier.Notify(ctx, Notification{
		Type:        NotifyChatAccessRevoked,
		RecipientID: access.RequestedByAdmin,
		OrderID:     conv.OrderID,
		Payload:     map[string]interface{}{"conversation_id": conv.ID},
		CreatedAt:   now,
	})
	return &access, nil
}

// ReadTranscript decrypts a conversation for the admin holding a valid token.
// A token that once authorized this admin but is past its expiry yields Expired
// and flips the grant out of APPROVED; anything else yields Forbidden.
func (s *ChatAccessService) ReadTranscript(ctx context.Context, admin Actor, conversationID uint, token string) (*Transcript, error) {
	if !admin.IsAdmin() {
		return nil, NewForbidden("FORBIDDEN", "only admins can read transcripts")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewForbidden("ACCESS_DENIED", "an access token is required")
	}
	hash := HashAccessToken(token)
	now := s.clock.Now()
	db := s.db.WithContext(ctx)

	var access models.ChatAdminAccess
	err := db.Where("conversation_id = ? AND requested_by_admin = ? AND access_token_hash = ?",
		conversationID, admin.ID, hash).
		First(&access).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewForbidden("ACCESS_DENIED", "no access grant matches this token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load access grant: %w", err)
	}
	if !access.UsableAt(now) {
		return nil, s.rejectStaleGrant(ctx, &access, now)
	}

	conv, err := loadConversation(db, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := loadMessages(db, conv.ID)
	if err != nil {
		return nil, err
	}

	if err := writeAudit(db, now, admin.ID, models.AuditActionReadChatTranscript,
		models.AuditResourceConversation, conv.ID, nil,
		map[string]interface{}{"grant_id": access.ID, "messages": len(msgs)}); err != nil {
		return nil, err
	}
	zap.L().Info("chat transcript read",
		zap.Uint("admin_id", admin.ID),
		zap.Uint("conversation_id", conv.ID),
		zap.Uint("grant_id", access.ID),
	)

	return &Transcript{
		ConversationID: conv.ID,
		OrderID:        conv.OrderID,
		ExpiresAt:      access.ExpiresAt,
		Messages:       decryptMessages(s.encryptor, msgs),
	}, nil
}

// rejectStaleGrant answers a read with a token that once authorized this admin
// but no longer does. An APPROVED grant found here is past its expiry and is
// flipped to EXPIRED, or REJECTED when the customer revoked it.
func (s *ChatAccessService) rejectStaleGrant(ctx context.Context, access *models.ChatAdminAccess, now time.Time) error {
	if access.Status == models.AccessApproved {
		terminal := models.AccessExpired
		if access.RevokedAt != nil {
			terminal = models.AccessRejected
		}
		res := s.db.WithContext(ctx).Model(&models.ChatAdminAccess{}).
			Where("id = ? AND status = ? AND expires_at <= ?", access.ID, models.AccessApproved, now).
			Update("status", terminal)
		if res.Error != nil {
			return fmt.Errorf("failed to expire access grant: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			zap.L().Info("chat access grant expired",
				zap.Uint("grant_id", access.ID),
				zap.Uint("conversation_id", access.ConversationID),
				zap.Uint("admin_id", access.RequestedByAdmin),
				zap.String("status", string(terminal)),
			)
		}
	}
	return NewExpired("ACCESS_EXPIRED", "access to this conversation has expired")
}

// ListGrants returns every grant the customer has issued on the conversation,
// newest first.
func (s *ChatAccessService) ListGrants(ctx context.Context, actor Actor, conversationID uint) ([]models.ChatAdminAccess, error) {
	conv, err := loadConversation(s.db.WithContext(ctx), conversationID)
	if err != nil {
		return nil, err
	}
	if conv.CustomerID != actor.ID {
		return nil, NewForbidden("FORBIDDEN", "only the conversation's customer can list grants")
	}

	grants := []models.ChatAdminAccess{}
	if err := s.db.WithContext(ctx).Where("conversation_id = ? AND customer_id = ?", conv.ID, actor.ID).
		Order("id DESC").Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to list access grants: %w", err)
	}
	return grants, nil
}
