package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/primebets/advisor/internal/advisor"
	"github.com/primebets/advisor/internal/history"
	"github.com/primebets/advisor/internal/notification"
	"github.com/primebets/advisor/internal/payment"
	"github.com/primebets/advisor/internal/scheduler"
	"github.com/primebets/advisor/internal/subscription"
)

type CreateUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

type QuizAnswer struct {
	QuestionID int    `json:"question_id" binding:"required"`
	OptionID   string `json:"option_id" binding:"required"`
}

type QuizRequest struct {
	Answers []QuizAnswer `json:"answers" binding:"required,dive"`
}

type PaymentCard struct {
	Number string `json:"number" binding:"required"`
	CVV    string `json:"cvv" binding:"required"`
	Expiry string `json:"expiry" binding:"required"`
}

type SubscribeRequest struct {
	Plan string      `json:"plan" binding:"required"`
	Card PaymentCard `json:"card"`
}

type RenewRequest struct {
	Card PaymentCard `json:"card"`
}

type AutoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew" binding:"required"`
}

type SubscriptionResponse struct {
	Subscription  *subscription.Subscription `json:"subscription"`
	Premium       bool                       `json:"premium"`
	DaysRemaining int                        `json:"days_remaining"`
	Transaction   *payment.Transaction       `json:"transaction,omitempty"`
}

type PlaceBetRequest struct {
	PredictionID string  `json:"prediction_id"`
	Match        string  `json:"match" binding:"required"`
	Market       string  `json:"market"`
	Stake        float64 `json:"stake" binding:"required"`
	Odds         float64 `json:"odds" binding:"required"`
}

type SettleBetRequest struct {
	Result string `json:"result" binding:"required"`
}

type PageRequest struct {
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
	Unread   bool   `form:"unread"`
}

type NotificationPage struct {
	Notifications []notification.Notification `json:"notifications"`
	NextCursor    string                      `json:"next_cursor,omitempty"`
}

type BetPage struct {
	Bets       []history.Bet `json:"bets"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type PlatformsResponse struct {
	Platforms  []advisor.PlatformSnapshot `json:"platforms"`
	LastUpdate *time.Time                 `json:"last_update,omitempty"`
}

type AutomationStatusResponse struct {
	Jobs []scheduler.JobStatus `json:"jobs"`
}

type AdviceRequest struct {
	Bankroll float64 `form:"bankroll" binding:"omitempty,gt=0"`
}

type StakeRequest struct {
	Probability float64 `form:"probability" binding:"required,gt=0,lt=100"`
	Odds        float64 `form:"odds" binding:"required,gt=1"`
	Bankroll    float64 `form:"bankroll" binding:"required,gt=0"`
}

type StakeResponse struct {
	Style           advisor.Style   `json:"style"`
	Stake           decimal.Decimal `json:"stake"`
	StakePercent    int             `json:"stake_percent"`
	KellyFraction   float64         `json:"kelly_fraction"`
	PotentialReturn decimal.Decimal `json:"potential_return"`
	ExpectedValue   float64         `json:"expected_value"`
}
