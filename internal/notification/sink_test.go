package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primebets/advisor/internal/kv"
)

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type recordingPusher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPusher) Push(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPusher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func newTestSink(t *testing.T, pusher Pusher, limit int) (*Sink, kv.Store) {
	t.Helper()

	store := kv.NewMemoryStore()
	sink := NewSink(Config{
		Store:      store,
		Pusher:     pusher,
		Clock:      clockwork.NewFakeClockAt(now),
		Logger:     slog.New(slog.DiscardHandler),
		MaxPerUser: limit,
	})

	t.Cleanup(func() {
		_ = sink.Close(context.Background())
	})

	return sink, store
}

func TestSink_NotifyStoresAndPushes(t *testing.T) {
	pusher := &recordingPusher{}
	sink, _ := newTestSink(t, pusher, 0)
	ctx := context.Background()

	sink.Notify(ctx, "u1", TypeRenewal, "Renewed", "Your plan was renewed", map[string]any{"plan": "monthly"})
	require.NoError(t, sink.Close(ctx))

	list, err := sink.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	n := list[0]
	_, err = uuid.Parse(n.ID)
	assert.NoError(t, err)
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, TypeRenewal, n.Type)
	assert.Equal(t, "Renewed", n.Title)
	assert.False(t, n.Read)
	assert.Equal(t, now, n.CreatedAt)
	assert.Equal(t, "monthly", n.Data["plan"])

	events := pusher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, n.ID, events[0].NotificationID)
	assert.Equal(t, "Your plan was renewed", events[0].Message)
}

func TestSink_PushDisabled(t *testing.T) {
	pusher := &recordingPusher{}
	sink, _ := newTestSink(t, pusher, 0)
	ctx := context.Background()

	require.NoError(t, sink.SetPushSettings(ctx, "u1", PushSettings{Enabled: false}))
	sink.Notify(ctx, "u1", TypeUpdate, "t", "m", nil)
	require.NoError(t, sink.Close(ctx))

	assert.Empty(t, pusher.Events())

	list, err := sink.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSink_PushFailureDoesNotLoseNotification(t *testing.T) {
	pusher := &recordingPusher{err: errors.New("broker down")}
	sink, _ := newTestSink(t, pusher, 0)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		sink.Notify(ctx, "u1", TypeUpdate, "t", "m", nil)
	})
	require.NoError(t, sink.Close(ctx))

	list, err := sink.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSink_HistoryIsCappedNewestKept(t *testing.T) {
	sink, _ := newTestSink(t, nil, 50)
	ctx := context.Background()

	for i := 0; i < 55; i++ {
		sink.Notify(ctx, "u1", TypeNewPrediction, fmt.Sprintf("tip %d", i), "m", nil)
	}

	list, err := sink.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 50)
	assert.Equal(t, "tip 54", list[0].Title)
	assert.Equal(t, "tip 5", list[49].Title)
}

func TestSink_ExpiredEntriesArePruned(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	store := kv.NewMemoryStore()
	sink := NewSink(Config{Store: store, Clock: clock, Logger: slog.New(slog.DiscardHandler)})
	ctx := context.Background()

	sink.NotifyUntil(ctx, "u1", TypeAdvantageousOdds, "Odds", "Value bet", nil, now.Add(2*time.Hour))
	sink.Notify(ctx, "u1", TypeUpdate, "Update", "m", nil)

	list, err := sink.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	clock.Advance(2 * time.Hour)

	list, err = sink.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Update", list[0].Title)

	var stored []Notification
	found, err := kv.GetJSON(ctx, store, listPrefix+"u1", &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, stored, 1)

	require.NoError(t, sink.Close(ctx))
}

func TestSink_ReadStateAndDeletion(t *testing.T) {
	sink, _ := newTestSink(t, nil, 0)
	ctx := context.Background()

	sink.Notify(ctx, "u1", TypeNewPrediction, "a", "m", nil)
	sink.Notify(ctx, "u1", TypeNewPrediction, "b", "m", nil)
	sink.Notify(ctx, "u1", TypeRenewal, "c", "m", nil)

	list, err := sink.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	ok, err := sink.MarkRead(ctx, "u1", list[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sink.MarkRead(ctx, "u1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	unread, err := sink.ListUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	stats, err := sink.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Unread)
	assert.Equal(t, 2, stats.ByType[TypeNewPrediction])
	assert.Equal(t, 1, stats.ByType[TypeRenewal])

	changed, err := sink.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	unread, err = sink.ListUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unread)

	ok, err = sink.Delete(ctx, "u1", list[1].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err = sink.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, sink.ClearAll(ctx, "u1"))
	list, err = sink.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSink_CorruptHistoryReadsAsEmpty(t *testing.T) {
	sink, store := newTestSink(t, nil, 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, listPrefix+"u1", []byte("not-json")))

	list, err := sink.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	sink.Notify(ctx, "u1", TypeUpdate, "fresh", "m", nil)
	list, err = sink.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSink_UsersAreIsolated(t *testing.T) {
	sink, _ := newTestSink(t, nil, 0)
	ctx := context.Background()

	sink.Notify(ctx, "u1", TypeUpdate, "one", "m", nil)
	sink.Notify(ctx, "u2", TypeUpdate, "two", "m", nil)

	list, err := sink.List(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "two", list[0].Title)
}

type fakePublisher struct {
	body        []byte
	contentType string
	err         error
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, body []byte, contentType string) error {
	p.body = body
	p.contentType = contentType
	return p.err
}

func TestQueuePusher(t *testing.T) {
	pub := &fakePublisher{}
	pusher := NewQueuePusher(pub)

	event := Event{
		NotificationID: "6f1c3c1e-8f5a-4a4b-9a57-3d5e0e7f0a11",
		UserID:         "u1",
		Type:           TypeAdvantageousOdds,
		Title:          "Odds",
		Message:        "m",
		CreatedAt:      now,
	}

	require.NoError(t, pusher.Push(context.Background(), event))
	assert.Equal(t, "application/json", pub.contentType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.body, &decoded))
	assert.Equal(t, event.NotificationID, decoded["notification_id"])
	assert.Equal(t, "advantageous_odds", decoded["type"])
	assert.Equal(t, "2024-06-10T12:00:00Z", decoded["created_at"])

	pub.err = errors.New("closed")
	assert.Error(t, pusher.Push(context.Background(), event))
}
