package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openConversation(t *testing.T, env *testEnv) *models.ChatConversation {
	t.Helper()
	order := env.order(t, models.OrderStatusAccepted, "100.00")
	conv, err := NewChatService(env.db).OpenConversation(context.Background(), env.asCustomer(), order.ID)
	require.NoError(t, err)
	return conv
}

func TestOpenConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.order(t, models.OrderStatusAccepted, "100.00")
	svc := NewChatService(env.db)

	first, err := svc.OpenConversation(ctx, env.asCustomer(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, env.customer.ID, first.CustomerID)
	assert.Equal(t, env.provider.ID, first.ProviderID)

	again, err := svc.OpenConversation(ctx, env.asProvider(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, env.db.Model(&models.ChatConversation{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = svc.OpenConversation(ctx, env.asStranger(), order.ID)
	requireKind(t, err, KindForbidden, "FORBIDDEN")

	_, err = svc.OpenConversation(ctx, env.asCustomer(), 777)
	requireKind(t, err, KindNotFound, "ORDER_NOT_FOUND")
}

func TestSendAndListMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := openConversation(t, env)
	svc := NewChatService(env.db)

	sent, err := svc.SendMessage(ctx, env.asCustomer(), conv.ID, "  is 9am ok?  ")
	require.NoError(t, err)
	assert.Equal(t, "is 9am ok?", sent.Content)
	assert.True(t, sent.IsEncrypted)

	env.clock.Advance(time.Minute)
	_, err = svc.SendMessage(ctx, env.asProvider(), conv.ID, "yes, see you then")
	require.NoError(t, err)

	// stored content is ciphertext
	var stored models.ChatMessage
	require.NoError(t, env.db.First(&stored, sent.ID).Error)
	assert.True(t, stored.IsEncrypted)
	assert.NotContains(t, stored.Content, "is 9am ok?")

	msgs, err := svc.ListMessages(ctx, env.asProvider(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "is 9am ok?", msgs[0].Content)
	assert.Equal(t, env.customer.ID, msgs[0].SenderID)
	assert.Equal(t, "yes, see you then", msgs[1].Content)
	assert.False(t, msgs[1].DecryptionFailed)
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := openConversation(t, env)
	svc := NewChatService(env.db)

	_, err := svc.SendMessage(ctx, env.asCustomer(), conv.ID, "   ")
	requireKind(t, err, KindInvalidInput, "VALIDATION_ERROR")

	_, err = svc.SendMessage(ctx, env.asCustomer(), conv.ID, strings.Repeat("a", maxMessageLength+1))
	requireKind(t, err, KindInvalidInput, "VALIDATION_ERROR")

	_, err = svc.SendMessage(ctx, env.asStranger(), conv.ID, "hello")
	requireKind(t, err, KindNotFound, "CONVERSATION_NOT_FOUND")

	_, err = svc.ListMessages(ctx, env.asAdmin(), conv.ID)
	requireKind(t, err, KindNotFound, "CONVERSATION_NOT_FOUND")
}

func TestListMessages_LegacyAndUndecryptable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := openConversation(t, env)

	legacy := models.ChatMessage{
		ConversationID: conv.ID,
		SenderID:       env.customer.ID,
		Content:        "written before encryption",
		IsEncrypted:    false,
		CreatedAt:      testEpoch.Add(-time.Hour),
	}
	require.NoError(t, env.db.Create(&legacy).Error)

	// sealed under a key the service does not hold
	foreign, err := GenerateAgeEncryptor()
	require.NoError(t, err)
	sealed, err := foreign.Encrypt("lost forever")
	require.NoError(t, err)
	broken := models.ChatMessage{
		ConversationID: conv.ID,
		SenderID:       env.provider.ID,
		Content:        sealed,
		IsEncrypted:    true,
		CreatedAt:      testEpoch.Add(-30 * time.Minute),
	}
	require.NoError(t, env.db.Create(&broken).Error)

	_, err = NewChatService(env.db).SendMessage(ctx, env.asCustomer(), conv.ID, "still readable")
	require.NoError(t, err)

	msgs, err := NewChatService(env.db).ListMessages(ctx, env.asCustomer(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "written before encryption", msgs[0].Content)
	assert.False(t, msgs[0].IsEncrypted)

	assert.Equal(t, UndecryptableMessage, msgs[1].Content)
	assert.True(t, msgs[1].DecryptionFailed)

	assert.Equal(t, "still readable", msgs[2].Content)
}

func TestAgeEncryptor(t *testing.T) {
	enc, err := GenerateAgeEncryptor()
	require.NoError(t, err)

	sealed, err := enc.Encrypt("hello provider")
	require.NoError(t, err)
	assert.NotEqual(t, "hello provider", sealed)

	again, err := enc.Encrypt("hello provider")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "ciphertext must not be deterministic")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello provider", plain)

	_, err = enc.Decrypt("not base64!!")
	assert.Error(t, err)

	_, err = NewAgeEncryptor("AGE-SECRET-KEY-garbage")
	assert.Error(t, err)
}

func TestInitEncryptor(t *testing.T) {
	prev := GetEncryptor()
	t.Cleanup(func() { SetEncryptor(prev) })

	generated, err := GenerateAgeEncryptor()
	require.NoError(t, err)
	key := generated.identity.String()

	enc, err := InitEncryptor(key)
	require.NoError(t, err)
	assert.Same(t, enc, GetEncryptor())

	sealed, err := generated.Encrypt("same key")
	require.NoError(t, err)
	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "same key", plain)

	throwaway, err := InitEncryptor("")
	require.NoError(t, err)
	assert.NotNil(t, throwaway)

	_, err = InitEncryptor("nonsense")
	assert.Error(t, err)
}

func TestAccessTokens(t *testing.T) {
	a, err := GenerateAccessToken()
	require.NoError(t, err)
	b, err := GenerateAccessToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	assert.Equal(t, HashAccessToken(a), HashAccessToken(a))
	assert.NotEqual(t, HashAccessToken(a), HashAccessToken(b))
	assert.Len(t, HashAccessToken(a), 64)
}
