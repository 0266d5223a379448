package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/primebets/advisor/internal/kv"
	"github.com/primebets/advisor/internal/validation"
)

const betsPrefix = "bet_history:"

var (
	ErrBetNotFound     = errors.New("bet not found")
	ErrAlreadySettled  = errors.New("bet already settled")
	ErrInvalidResult   = errors.New("result must be win or loss")
	ErrInvalidBetInput = errors.New("invalid bet")
)

// Result of a bet
type Result string

const (
	ResultPending Result = "pending"
	ResultWin     Result = "win"
	ResultLoss    Result = "loss"
)

// Bet is one wager recorded by the user
type Bet struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	PredictionID string          `json:"prediction_id,omitempty"`
	Match        string          `json:"match"`
	Market       string          `json:"market"`
	Stake        decimal.Decimal `json:"stake"`
	Odds         float64         `json:"odds"`
	Result       Result          `json:"result"`
	PlacedAt     time.Time       `json:"placed_at"`
	SettledAt    *time.Time      `json:"settled_at,omitempty"`
	Profit       decimal.Decimal `json:"profit"`
}

// NewBet is the input to Save
type NewBet struct {
	PredictionID string
	Match        string
	Market       string
	Stake        float64
	Odds         float64
}

// WeekStats aggregates settled bets for one ISO week
type WeekStats struct {
	Week    string          `json:"week"`
	Bets    int             `json:"bets"`
	Wins    int             `json:"wins"`
	WinRate float64         `json:"win_rate"`
	Profit  decimal.Decimal `json:"profit"`
}

// Stats summarises a user's whole history
type Stats struct {
	UserID        string          `json:"user_id"`
	TotalBets     int             `json:"total_bets"`
	Won           int             `json:"won"`
	Lost          int             `json:"lost"`
	Pending       int             `json:"pending"`
	WinRate       float64         `json:"win_rate"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	AverageOdds   float64         `json:"average_odds"`
	BestStreak    int             `json:"best_streak"`
	CurrentStreak int             `json:"current_streak"`
	Weekly        []WeekStats     `json:"weekly"`
}

// Book stores bet history per user
type Book struct {
	store  kv.Store
	clock  clockwork.Clock
	logger *slog.Logger
	mu     sync.Mutex
}

func NewBook(store kv.Store, clock clockwork.Clock, logger *slog.Logger) *Book {
	return &Book{store: store, clock: clock, logger: logger}
}

func (b *Book) load(ctx context.Context, userID string) ([]Bet, error) {
	var bets []Bet
	if _, err := kv.GetJSON(ctx, b.store, betsPrefix+userID, &bets); err != nil {
		return nil, fmt.Errorf("failed to load bet history: %w", err)
	}
	return bets, nil
}

func (b *Book) save(ctx context.Context, userID string, bets []Bet) error {
	if err := kv.SetJSON(ctx, b.store, betsPrefix+userID, bets); err != nil {
		return fmt.Errorf("failed to save bet history: %w", err)
	}
	return nil
}

// Save records a pending bet
func (b *Book) Save(ctx context.Context, userID string, in NewBet) (*Bet, error) {
	if r := validation.Stake(in.Stake); !r.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBetInput, r.Error)
	}
	if r := validation.Odds(in.Odds); !r.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBetInput, r.Error)
	}
	if in.Market == "" {
		in.Market = "match_result"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bets, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	bet := Bet{
		ID:           uuid.NewString(),
		UserID:       userID,
		PredictionID: in.PredictionID,
		Match:        in.Match,
		Market:       in.Market,
		Stake:        decimal.NewFromFloat(in.Stake).Round(2),
		Odds:         in.Odds,
		Result:       ResultPending,
		PlacedAt:     b.clock.Now(),
		Profit:       decimal.Zero,
	}

	if err := b.save(ctx, userID, append(bets, bet)); err != nil {
		return nil, err
	}

	b.logger.Debug("Bet saved", slog.String("user_id", userID), slog.String("bet_id", bet.ID))
	return &bet, nil
}

// Settle records the outcome and profit of a pending bet
func (b *Book) Settle(ctx context.Context, userID, betID string, result Result) (*Bet, error) {
	if result != ResultWin && result != ResultLoss {
		return nil, ErrInvalidResult
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bets, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := slicesIndex(bets, betID)
	if i < 0 {
		return nil, ErrBetNotFound
	}
	if bets[i].Result != ResultPending {
		return nil, ErrAlreadySettled
	}

	now := b.clock.Now()
	bet := &bets[i]
	bet.Result = result
	bet.SettledAt = &now
	if result == ResultWin {
		bet.Profit = bet.Stake.Mul(decimal.NewFromFloat(bet.Odds)).Sub(bet.Stake).Round(2)
	} else {
		bet.Profit = bet.Stake.Neg()
	}

	if err := b.save(ctx, userID, bets); err != nil {
		return nil, err
	}

	settled := *bet
	return &settled, nil
}

func slicesIndex(bets []Bet, id string) int {
	for i := range bets {
		if bets[i].ID == id {
			return i
		}
	}
	return -1
}

// List returns the user's bets, newest first
func (b *Book) List(ctx context.Context, userID string) ([]Bet, error) {
	bets, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bets, func(i, j int) bool { return bets[i].PlacedAt.After(bets[j].PlacedAt) })
	return bets, nil
}

// Between returns bets placed in [from, to]
func (b *Book) Between(ctx context.Context, userID string, from, to time.Time) ([]Bet, error) {
	bets, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Bet, 0, len(bets))
	for _, bet := range bets {
		if !bet.PlacedAt.Before(from) && !bet.PlacedAt.After(to) {
			out = append(out, bet)
		}
	}
	return out, nil
}

// Stats computes lifetime statistics
func (b *Book) Stats(ctx context.Context, userID string) (*Stats, error) {
	bets, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	s := &Stats{UserID: userID, TotalBets: len(bets), TotalProfit: decimal.Zero}

	settled := make([]Bet, 0, len(bets))
	var oddsSum float64
	for _, bet := range bets {
		switch bet.Result {
		case ResultWin:
			s.Won++
		case ResultLoss:
			s.Lost++
		default:
			s.Pending++
			continue
		}
		settled = append(settled, bet)
		oddsSum += bet.Odds
		s.TotalProfit = s.TotalProfit.Add(bet.Profit)
	}

	if len(settled) > 0 {
		s.WinRate = roundTo(float64(s.Won)/float64(len(settled))*100, 1)
		s.AverageOdds = roundTo(oddsSum/float64(len(settled)), 2)
	}

	sort.SliceStable(settled, func(i, j int) bool { return settled[i].PlacedAt.Before(settled[j].PlacedAt) })
	s.BestStreak, s.CurrentStreak = streaks(settled)
	s.Weekly = weekly(settled)

	return s, nil
}

// streaks walks settled bets oldest first. current is positive for a
// winning run and negative for a losing one.
func streaks(settled []Bet) (best, current int) {
	run := 0
	for _, bet := range settled {
		if bet.Result == ResultWin {
			run++
			best = max(best, run)
		} else {
			run = 0
		}
	}

	if len(settled) == 0 {
		return best, 0
	}
	last := settled[len(settled)-1].Result
	for i := len(settled) - 1; i >= 0 && settled[i].Result == last; i-- {
		current++
	}
	if last == ResultLoss {
		current = -current
	}
	return best, current
}

const maxWeeks = 12

func weekly(settled []Bet) []WeekStats {
	byWeek := make(map[string]*WeekStats)
	for _, bet := range settled {
		y, w := bet.PlacedAt.ISOWeek()
		k := fmt.Sprintf("%d-W%02d", y, w)
		ws, ok := byWeek[k]
		if !ok {
			ws = &WeekStats{Week: k, Profit: decimal.Zero}
			byWeek[k] = ws
		}
		ws.Bets++
		if bet.Result == ResultWin {
			ws.Wins++
		}
		ws.Profit = ws.Profit.Add(bet.Profit)
	}

	out := make([]WeekStats, 0, len(byWeek))
	for _, ws := range byWeek {
		ws.WinRate = roundTo(float64(ws.Wins)/float64(ws.Bets)*100, 1)
		out = append(out, *ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })

	if len(out) > maxWeeks {
		out = out[len(out)-maxWeeks:]
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
