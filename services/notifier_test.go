package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	logs := observeLogs(t)

	LogNotifier{}.Notify(context.Background(), Notification{
		Type:        NotifyCostProposed,
		RecipientID: 7,
		OrderID:     3,
	})

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, NotifyCostProposed, fields["type"])
	assert.EqualValues(t, 7, fields["recipient_id"])
}

func TestSetNotifierFallsBackToLog(t *testing.T) {
	prev := GetNotifier()
	t.Cleanup(func() { SetNotifier(prev) })

	SetNotifier(nil)
	assert.IsType(t, LogNotifier{}, GetNotifier())

	rec := NewRecordingNotifier()
	rec.SetAsMockForTesting()
	GetNotifier().Notify(context.Background(), Notification{Type: NotifyReviewReported, RecipientID: 1})
	GetNotifier().Notify(context.Background(), Notification{Type: NotifyCostDecided, RecipientID: 2})
	assert.Len(t, rec.Sent(), 2)
	assert.Len(t, rec.OfType(NotifyCostDecided), 1)
}

func TestNewRedisNotifier(t *testing.T) {
	_, err := NewRedisNotifier("not a url")
	assert.Error(t, err)

	notifier, err := NewRedisNotifier("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, defaultNotificationTopic, notifier.channel)
	assert.Equal(t, "localhost:6379", notifier.client.Options().Addr)
	assert.Equal(t, 2, notifier.client.Options().DB)
	assert.NoError(t, notifier.Close())
}
