package notification

import (
	"time"
)

// Type is the business event a notification reports
type Type string

const (
	TypeNewPrediction     Type = "new_prediction"
	TypeAdvantageousOdds  Type = "advantageous_odds"
	TypeRenewal           Type = "renewal"
	TypeUpdate            Type = "update"
	TypePerformanceReport Type = "performance_report"
	TypePlatformUpdate    Type = "platform_update"
)

// DefaultMaxPerUser is how many notifications are retained per user
const DefaultMaxPerUser = 50

// Notification is a message shown to one user
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func (n *Notification) expired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}

// Stats summarises a user's notification history
type Stats struct {
	Total  int          `json:"total"`
	Unread int          `json:"unread"`
	ByType map[Type]int `json:"by_type"`
}

// PushSettings controls OS-level delivery for a user
type PushSettings struct {
	Enabled bool `json:"enabled"`
}

// Event is the payload published for push delivery
type Event struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Type           Type      `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}
