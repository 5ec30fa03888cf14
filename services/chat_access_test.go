package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatAccessFixture struct {
	*testEnv
	conv *models.ChatConversation
}

func newChatAccessFixture(t *testing.T) *chatAccessFixture {
	t.Helper()
	env := newTestEnv(t)
	conv := openConversation(t, env)

	chat := NewChatService(env.db)
	_, err := chat.SendMessage(context.Background(), env.asCustomer(), conv.ID, "the tap is leaking")
	require.NoError(t, err)
	_, err = chat.SendMessage(context.Background(), env.asProvider(), conv.ID, "it was fine when I left")
	require.NoError(t, err)

	return &chatAccessFixture{testEnv: env, conv: conv}
}

func (f *chatAccessFixture) grant(t *testing.T, hours int) *GrantResult {
	t.Helper()
	result, err := NewChatAccessService(f.db, 0).Grant(context.Background(), f.asCustomer(), f.conv.ID, GrantInput{
		AdminID:     f.admin.ID,
		AccessHours: hours,
		Reason:      "dispute over leak",
	})
	require.NoError(t, err)
	return result
}

func (f *chatAccessFixture) grantRow(t *testing.T, id uint) models.ChatAdminAccess {
	t.Helper()
	var access models.ChatAdminAccess
	require.NoError(t, f.db.First(&access, id).Error)
	return access
}

func TestChatAccess_ExpiresAfterWindow(t *testing.T) {
	f := newChatAccessFixture(t)
	ctx := context.Background()

	result := f.grant(t, 1)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, models.AccessApproved, result.Access.Status)
	assert.True(t, result.Access.ExpiresAt.Equal(testEpoch.Add(time.Hour)))
	assert.Equal(t, HashAccessToken(result.AccessToken), f.grantRow(t, result.Access.ID).AccessTokenHash)

	f.clock.Set(testEpoch.Add(59 * time.Minute))
	transcript, err := NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, result.AccessToken)
	require.NoError(t, err)
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, "the tap is leaking", transcript.Messages[0].Content)
	assert.Equal(t, f.conv.OrderID, transcript.OrderID)

	var audits int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).
		Where("action = ? AND actor_user_id = ?", models.AuditActionReadChatTranscript, f.admin.ID).
		Count(&audits).Error)
	assert.Equal(t, int64(1), audits)

	f.clock.Set(testEpoch.Add(time.Hour))
	_, err = NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, result.AccessToken)
	requireKind(t, err, KindExpired, "ACCESS_EXPIRED")
	assert.Equal(t, models.AccessExpired, f.grantRow(t, result.Access.ID).Status)

	// stays expired, never degrades to a generic denial
	f.clock.Advance(time.Hour)
	_, err = NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, result.AccessToken)
	requireKind(t, err, KindExpired, "ACCESS_EXPIRED")
	assert.Equal(t, models.AccessExpired, f.grantRow(t, result.Access.ID).Status)
}

func TestChatAccess_RevokeTakesEffectImmediately(t *testing.T) {
	f := newChatAccessFixture(t)
	ctx := context.Background()
	result := f.grant(t, 24)

	f.clock.Advance(10 * time.Minute)
	_, err := NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, result.AccessToken)
	require.NoError(t, err)

	_, err = NewChatAccessService(f.db, 0).Revoke(ctx, f.asProvider(), f.conv.ID)
	requireKind(t, err, KindForbidden, "FORBIDDEN")

	revoked, err := NewChatAccessService(f.db, 0).Revoke(ctx, f.asCustomer(), f.conv.ID)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	assert.True(t, revoked.ExpiresAt.Equal(f.clock.Now()))
	assert.Equal(t, models.AccessApproved, f.grantRow(t, result.Access.ID).Status)

	_, err = NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, result.AccessToken)
	requireKind(t, err, KindExpired, "ACCESS_EXPIRED")
	assert.Equal(t, models.AccessRejected, f.grantRow(t, result.Access.ID).Status)

	_, err = NewChatAccessService(f.db, 0).Revoke(ctx, f.asCustomer(), f.conv.ID)
	requireKind(t, err, KindNotFound, "NO_ACTIVE_GRANT")

	revokedNotices := f.notifier.OfType(NotifyChatAccessRevoked)
	require.Len(t, revokedNotices, 1)
	assert.Equal(t, f.admin.ID, revokedNotices[0].RecipientID)
}

func TestChatAccess_RevokeAfterTimeoutStaysExpired(t *testing.T) {
	f := newChatAccessFixture(t)
	ctx := context.Background()
	result := f.grant(t, 1)

	f.clock.Advance(90 * time.Minute)
	_, err := NewChatAccessService(f.db, 0).Revoke(ctx, f.asCustomer(), f.conv.ID)
	requireKind(t, err, KindNotFound, "NO_ACTIVE_GRANT")
	assert.Nil(t, f.grantRow(t, result.Access.ID).RevokedAt)

	_, err = NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, result.AccessToken)
	requireKind(t, err, KindExpired, "ACCESS_EXPIRED")
	assert.Equal(t, models.AccessExpired, f.grantRow(t, result.Access.ID).Status)
	assert.Empty(t, f.notifier.OfType(NotifyChatAccessRevoked))
}

func TestChatAccess_Denied(t *testing.T) {
	f := newChatAccessFixture(t)
	ctx := context.Background()
	result := f.grant(t, 2)
	otherAdmin := testutil.CreateUser(t, f.db, "auth0|other-admin", models.RoleAdmin)

	tests := []struct {
		name  string
		actor Actor
		conv  uint
		token string
		kind  ErrorKind
		code  string
	}{
		{"wrong token", f.asAdmin(), f.conv.ID, "not-the-token", KindForbidden, "ACCESS_DENIED"},
		{"empty token", f.asAdmin(), f.conv.ID, "", KindForbidden, "ACCESS_DENIED"},
		{"other admin", ActorFromUser(otherAdmin), f.conv.ID, result.AccessToken, KindForbidden, "ACCESS_DENIED"},
		{"other conversation", f.asAdmin(), f.conv.ID + 100, result.AccessToken, KindForbidden, "ACCESS_DENIED"},
		{"not an admin", f.asCustomer(), f.conv.ID, result.AccessToken, KindForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChatAccessService(f.db, 0).ReadTranscript(ctx, tt.actor, tt.conv, tt.token)
			requireKind(t, err, tt.kind, tt.code)
		})
	}

	// none of the failures touched the grant
	assert.Equal(t, models.AccessApproved, f.grantRow(t, result.Access.ID).Status)
}

func TestChatAccess_GrantValidation(t *testing.T) {
	f := newChatAccessFixture(t)
	ctx := context.Background()
	inactive := testutil.CreateUser(t, f.db, "auth0|retired-admin", models.RoleAdmin)
	require.NoError(t, f.db.Model(inactive).Update("is_active", false).Error)

	tests := []struct {
		name  string
		actor Actor
		input GrantInput
		kind  ErrorKind
		code  string
	}{
		{"no admin", f.asCustomer(), GrantInput{AccessHours: 1}, KindInvalidInput, "ADMIN_REQUIRED"},
		{"zero hours", f.asCustomer(), GrantInput{AdminID: f.admin.ID, AccessHours: 0}, KindInvalidInput, "INVALID_ACCESS_HOURS"},
		{"too many hours", f.asCustomer(), GrantInput{AdminID: f.admin.ID, AccessHours: 73}, KindInvalidInput, "INVALID_ACCESS_HOURS"},
		{"grantee is not admin", f.asCustomer(), GrantInput{AdminID: f.provider.ID, AccessHours: 1}, KindInvalidInput, "INVALID_ADMIN"},
		{"grantee inactive", f.asCustomer(), GrantInput{AdminID: inactive.ID, AccessHours: 1}, KindInvalidInput, "INVALID_ADMIN"},
		{"unknown grantee", f.asCustomer(), GrantInput{AdminID: 9999, AccessHours: 1}, KindInvalidInput, "INVALID_ADMIN"},
		{"provider cannot grant", f.asProvider(), GrantInput{AdminID: f.admin.ID, AccessHours: 1}, KindForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChatAccessService(f.db, 0).Grant(ctx, tt.actor, f.conv.ID, tt.input)
			requireKind(t, err, tt.kind, tt.code)
		})
	}

	t.Run("configured maximum", func(t *testing.T) {
		_, err := NewChatAccessService(f.db, 4).Grant(ctx, f.asCustomer(), f.conv.ID, GrantInput{AdminID: f.admin.ID, AccessHours: 5})
		requireKind(t, err, KindInvalidInput, "INVALID_ACCESS_HOURS")
	})
}

func TestChatAccess_RegrantUpdatesInPlace(t *testing.T) {
	f := newChatAccessFixture(t)
	ctx := context.Background()
	first := f.grant(t, 1)

	f.clock.Advance(30 * time.Minute)
	second := f.grant(t, 3)

	assert.Equal(t, first.Access.ID, second.Access.ID)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.True(t, second.Access.ExpiresAt.Equal(testEpoch.Add(30*time.Minute+3*time.Hour)))

	// the rotated-out token no longer works
	_, err := NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, first.AccessToken)
	requireKind(t, err, KindForbidden, "ACCESS_DENIED")

	_, err = NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, second.AccessToken)
	require.NoError(t, err)

	grants, err := NewChatAccessService(f.db, 0).ListGrants(ctx, f.asCustomer(), f.conv.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	_, err = NewChatAccessService(f.db, 0).ListGrants(ctx, f.asAdmin(), f.conv.ID)
	requireKind(t, err, KindForbidden, "FORBIDDEN")

	granted := f.notifier.OfType(NotifyChatAccessGranted)
	require.Len(t, granted, 2)
	assert.Equal(t, second.AccessToken, granted[1].Payload["access_token"])
}

func TestChatAccess_NewGrantAfterExpiry(t *testing.T) {
	f := newChatAccessFixture(t)
	ctx := context.Background()
	first := f.grant(t, 1)

	f.clock.Advance(2 * time.Hour)
	_, err := NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, first.AccessToken)
	requireKind(t, err, KindExpired, "ACCESS_EXPIRED")

	second := f.grant(t, 1)
	assert.NotEqual(t, first.Access.ID, second.Access.ID)

	_, err = NewChatAccessService(f.db, 0).ReadTranscript(ctx, f.asAdmin(), f.conv.ID, second.AccessToken)
	require.NoError(t, err)

	grants, err := NewChatAccessService(f.db, 0).ListGrants(ctx, f.asCustomer(), f.conv.ID)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, second.Access.ID, grants[0].ID)
	assert.Equal(t, models.AccessExpired, grants[1].Status)
}
