package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/primebets/advisor/internal/kv"
)

const (
	listPrefix     = "notifications:"
	settingsPrefix = "push_settings:"

	pushTimeout = 10 * time.Second
)

// Config holds sink dependencies
type Config struct {
	Store      kv.Store
	Pusher     Pusher
	Clock      clockwork.Clock
	Logger     *slog.Logger
	MaxPerUser int
}

// Sink stores per-user notification history and forwards new entries to
// push delivery. History is capped, newest kept.
type Sink struct {
	store  kv.Store
	pusher Pusher
	clock  clockwork.Clock
	logger *slog.Logger
	limit  int

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewSink creates a notification sink
func NewSink(cfg Config) *Sink {
	pusher := cfg.Pusher
	if pusher == nil {
		pusher = NoopPusher{}
	}

	limit := cfg.MaxPerUser
	if limit <= 0 {
		limit = DefaultMaxPerUser
	}

	return &Sink{
		store:  cfg.Store,
		pusher: pusher,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		limit:  limit,
	}
}

// Notify records a notification and schedules push delivery. It never
// fails the caller; problems are logged.
func (s *Sink) Notify(ctx context.Context, userID string, typ Type, title, message string, data map[string]any) {
	s.notify(ctx, userID, typ, title, message, data, nil)
}

// NotifyUntil is Notify for messages that stop being relevant at expiresAt
func (s *Sink) NotifyUntil(ctx context.Context, userID string, typ Type, title, message string, data map[string]any, expiresAt time.Time) {
	s.notify(ctx, userID, typ, title, message, data, &expiresAt)
}

func (s *Sink) notify(ctx context.Context, userID string, typ Type, title, message string, data map[string]any, expiresAt *time.Time) {
	n, err := s.Add(ctx, Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		ExpiresAt: expiresAt,
		Data:      data,
	})
	if err != nil {
		s.logger.Error("Failed to store notification",
			slog.String("user_id", userID),
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
		return
	}

	s.push(ctx, n)
}

// Add stores n, assigning its id and creation time
func (s *Sink) Add(ctx context.Context, n Notification) (*Notification, error) {
	n.ID = uuid.NewString()
	n.CreatedAt = s.clock.Now()
	n.Read = false

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx, n.UserID)
	if err != nil {
		return nil, err
	}

	list = append(list, n)
	if len(list) > s.limit {
		list = list[len(list)-s.limit:]
	}

	if err := s.save(ctx, n.UserID, list); err != nil {
		return nil, err
	}

	s.logger.Debug("Notification stored",
		slog.String("user_id", n.UserID),
		slog.String("notification_id", n.ID),
		slog.String("type", string(n.Type)),
	)

	return &n, nil
}

func (s *Sink) push(ctx context.Context, n *Notification) {
	settings, err := s.PushSettings(ctx, n.UserID)
	if err != nil || !settings.Enabled {
		return
	}

	event := Event{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()

		if err := s.pusher.Push(pushCtx, event); err != nil {
			s.logger.Warn("Failed to push notification",
				slog.String("notification_id", event.NotificationID),
				slog.String("user_id", event.UserID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// List returns the user's notifications, newest first
func (s *Sink) List(ctx context.Context, userID string) ([]Notification, error) {
	s.mu.Lock()
	list, err := s.load(ctx, userID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// ListUnread returns unread notifications, newest first
func (s *Sink) ListUnread(ctx context.Context, userID string) ([]Notification, error) {
	all, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	unread := make([]Notification, 0, len(all))
	for _, n := range all {
		if !n.Read {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

// MarkRead flags one notification as read. Returns false when not found.
func (s *Sink) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	found := false
	err := s.update(ctx, userID, func(list []Notification) []Notification {
		for i := range list {
			if list[i].ID == id {
				list[i].Read = true
				found = true
			}
		}
		return list
	})
	return found, err
}

// MarkAllRead flags every notification as read and returns how many changed
func (s *Sink) MarkAllRead(ctx context.Context, userID string) (int, error) {
	changed := 0
	err := s.update(ctx, userID, func(list []Notification) []Notification {
		for i := range list {
			if !list[i].Read {
				list[i].Read = true
				changed++
			}
		}
		return list
	})
	return changed, err
}

// Delete removes one notification. Returns false when not found.
func (s *Sink) Delete(ctx context.Context, userID, id string) (bool, error) {
	found := false
	err := s.update(ctx, userID, func(list []Notification) []Notification {
		kept := list[:0]
		for _, n := range list {
			if n.ID == id {
				found = true
				continue
			}
			kept = append(kept, n)
		}
		return kept
	})
	return found, err
}

// ClearAll removes the user's whole history
func (s *Sink) ClearAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, listPrefix+userID); err != nil {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}
	return nil
}

// Stats counts notifications by read state and type
func (s *Sink) Stats(ctx context.Context, userID string) (Stats, error) {
	all, err := s.List(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(all), ByType: make(map[Type]int)}
	for _, n := range all {
		if !n.Read {
			stats.Unread++
		}
		stats.ByType[n.Type]++
	}
	return stats, nil
}

// PushSettings returns the user's push preference. Push is on unless the
// user turned it off.
func (s *Sink) PushSettings(ctx context.Context, userID string) (PushSettings, error) {
	settings := PushSettings{Enabled: true}
	if _, err := kv.GetJSON(ctx, s.store, settingsPrefix+userID, &settings); err != nil {
		return PushSettings{}, fmt.Errorf("failed to load push settings: %w", err)
	}
	return settings, nil
}

// SetPushSettings stores the user's push preference
func (s *Sink) SetPushSettings(ctx context.Context, userID string, settings PushSettings) error {
	if err := kv.SetJSON(ctx, s.store, settingsPrefix+userID, settings); err != nil {
		return fmt.Errorf("failed to save push settings: %w", err)
	}
	return nil
}

// Close waits for pending push deliveries or ctx, whichever ends first
func (s *Sink) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sink) update(ctx context.Context, userID string, fn func([]Notification) []Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	return s.save(ctx, userID, fn(list))
}

// load returns the stored list, oldest first, with expired entries dropped.
// Caller holds s.mu.
func (s *Sink) load(ctx context.Context, userID string) ([]Notification, error) {
	var list []Notification
	found, err := kv.GetJSON(ctx, s.store, listPrefix+userID, &list)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	if !found {
		return nil, nil
	}

	now := s.clock.Now()
	kept := list[:0]
	for _, n := range list {
		if !n.expired(now) {
			kept = append(kept, n)
		}
	}

	if len(kept) != len(list) {
		if err := s.save(ctx, userID, kept); err != nil {
			return nil, err
		}
	}

	return kept, nil
}

func (s *Sink) save(ctx context.Context, userID string, list []Notification) error {
	if err := kv.SetJSON(ctx, s.store, listPrefix+userID, list); err != nil {
		return fmt.Errorf("failed to save notifications: %w", err)
	}
	return nil
}
