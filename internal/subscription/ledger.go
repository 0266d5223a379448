package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/primebets/advisor/internal/kv"
)

const keyPrefix = "subscription:"

var (
	// ErrSubscriptionNotFound is returned when the user has no subscription record
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInvalidPlan is returned for an unknown plan name
	ErrInvalidPlan = errors.New("invalid plan")
)

// Status of a subscription
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Subscription is the single premium record kept per user
type Subscription struct {
	UserID        string    `json:"user_id"`
	Plan          Plan      `json:"plan"`
	Status        Status    `json:"status"`
	StartDate     time.Time `json:"start_date"`
	ExpiresAt     time.Time `json:"expires_at"`
	AutoRenew     bool      `json:"auto_renew"`
	LastPaymentID string    `json:"last_payment_id,omitempty"`

	// Billing-cycle bookkeeping, reset by Create and Renew
	RemindersSent []int `json:"reminders_sent,omitempty"`
	ExpiryHandled bool  `json:"expiry_handled,omitempty"`
}

// ReminderSent reports whether threshold was already notified this cycle
func (s *Subscription) ReminderSent(threshold int) bool {
	return slices.Contains(s.RemindersSent, threshold)
}

// Ledger manages subscriptions over the key-value store. Every
// read-modify-write happens under one mutex against the latest stored value.
type Ledger struct {
	store  kv.Store
	clock  clockwork.Clock
	logger *slog.Logger
	mu     sync.Mutex
}

// NewLedger creates a ledger
func NewLedger(store kv.Store, clock clockwork.Clock, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, clock: clock, logger: logger}
}

func key(userID string) string {
	return keyPrefix + userID
}

func (l *Ledger) load(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	found, err := kv.GetJSON(ctx, l.store, key(userID), &sub)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if !found {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (l *Ledger) save(ctx context.Context, sub *Subscription) error {
	if err := kv.SetJSON(ctx, l.store, key(sub.UserID), sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// Get returns the user's subscription. An active subscription observed past
// its expiry is flipped to expired and persisted as part of the read.
func (l *Ledger) Get(ctx context.Context, userID string) (*Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub.Status == StatusActive && sub.ExpiresAt.Before(l.clock.Now()) {
		sub.Status = StatusExpired
		if err := l.save(ctx, sub); err != nil {
			return nil, err
		}
		l.logger.Info("Subscription expired on read",
			slog.String("user_id", userID),
			slog.Time("expires_at", sub.ExpiresAt),
		)
	}

	return sub, nil
}

// Peek returns the stored record without applying lazy expiry
func (l *Ledger) Peek(ctx context.Context, userID string) (*Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.load(ctx, userID)
}

// List returns every stored subscription without applying lazy expiry,
// sorted by user id. Corrupt records are skipped.
func (l *Ledger) List(ctx context.Context) ([]Subscription, error) {
	ids, err := kv.IDs(ctx, l.store, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]Subscription, 0, len(ids))
	for _, id := range ids {
		sub, err := l.Peek(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSubscriptionNotFound) {
				continue
			}
			return nil, err
		}
		subs = append(subs, *sub)
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs, nil
}

// Create starts a new active subscription, replacing any previous record
func (l *Ledger) Create(ctx context.Context, userID string, plan Plan) (*Subscription, error) {
	if !plan.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	sub := &Subscription{
		UserID:    userID,
		Plan:      plan,
		Status:    StatusActive,
		StartDate: now,
		ExpiresAt: plan.Extend(now),
		AutoRenew: true,
	}

	if err := l.save(ctx, sub); err != nil {
		return nil, err
	}

	l.logger.Info("Subscription created",
		slog.String("user_id", userID),
		slog.String("plan", string(plan)),
		slog.Time("expires_at", sub.ExpiresAt),
	)

	return sub, nil
}

// Cancel turns off renewal. Access continues until ExpiresAt.
// Returns false when the user has no subscription.
func (l *Ledger) Cancel(ctx context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, err := l.load(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}

	sub.Status = StatusCancelled
	sub.AutoRenew = false
	if err := l.save(ctx, sub); err != nil {
		return false, err
	}

	l.logger.Info("Subscription cancelled",
		slog.String("user_id", userID),
		slog.Time("access_until", sub.ExpiresAt),
	)

	return true, nil
}

// Renew extends the subscription by one plan period starting from the later
// of now and the current expiry, so unused paid time is never lost.
func (l *Ledger) Renew(ctx context.Context, userID, paymentID string) (*Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	base := l.clock.Now()
	if sub.ExpiresAt.After(base) {
		base = sub.ExpiresAt
	}

	sub.ExpiresAt = sub.Plan.Extend(base)
	sub.Status = StatusActive
	sub.LastPaymentID = paymentID
	sub.RemindersSent = nil
	sub.ExpiryHandled = false

	if err := l.save(ctx, sub); err != nil {
		return nil, err
	}

	l.logger.Info("Subscription renewed",
		slog.String("user_id", userID),
		slog.String("payment_id", paymentID),
		slog.Time("expires_at", sub.ExpiresAt),
	)

	return sub, nil
}

// SetAutoRenew toggles renewal for an existing subscription
func (l *Ledger) SetAutoRenew(ctx context.Context, userID string, enabled bool) (*Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub.AutoRenew = enabled
	if err := l.save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// MarkExpired records that this cycle's expiry has been processed.
// AutoRenew is left untouched.
func (l *Ledger) MarkExpired(ctx context.Context, userID string) (*Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub.Status = StatusExpired
	sub.ExpiryHandled = true
	if err := l.save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// MarkReminderSent records threshold for the current cycle. It returns
// false when the threshold was already recorded.
func (l *Ledger) MarkReminderSent(ctx context.Context, userID string, threshold int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, err := l.load(ctx, userID)
	if err != nil {
		return false, err
	}

	if sub.ReminderSent(threshold) {
		return false, nil
	}

	sub.RemindersSent = append(sub.RemindersSent, threshold)
	if err := l.save(ctx, sub); err != nil {
		return false, err
	}
	return true, nil
}

// DaysRemaining is the ceiling of the days left, never negative.
// Expired subscriptions report 0.
func (l *Ledger) DaysRemaining(ctx context.Context, userID string) (int, error) {
	sub, err := l.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if sub.Status == StatusExpired {
		return 0, nil
	}
	return DaysUntil(sub.ExpiresAt, l.clock.Now()), nil
}

// IsPremium reports whether the user currently has premium access
func (l *Ledger) IsPremium(ctx context.Context, userID string) (bool, error) {
	sub, err := l.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}
	return HasAccess(sub, l.clock.Now()), nil
}

// HasAccess reports premium access at now. Cancelled subscriptions keep
// access until they expire.
func HasAccess(sub *Subscription, now time.Time) bool {
	switch sub.Status {
	case StatusActive:
		return !sub.ExpiresAt.Before(now)
	case StatusCancelled:
		return now.Before(sub.ExpiresAt)
	default:
		return false
	}
}

// DaysUntil returns ceil((expiresAt-now) in days), floored at 0
func DaysUntil(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}
