package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/primebets/advisor/internal/kv"
)

const transactionPrefix = "transaction:"

// ErrPaymentDeclined is returned when the charge is refused
var ErrPaymentDeclined = errors.New("payment declined")

// Status of a transaction
type Status string

const (
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// Charge describes what to bill
type Charge struct {
	UserID   string          `json:"user_id"`
	Plan     string          `json:"plan"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Renewal  bool            `json:"renewal"`
}

// Transaction is the record of one charge attempt
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Plan      string          `json:"plan"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    Status          `json:"status"`
	Renewal   bool            `json:"renewal"`
	CreatedAt time.Time       `json:"created_at"`
}

// Gateway bills a user
type Gateway interface {
	Charge(ctx context.Context, charge Charge) (*Transaction, error)
}

// SimulatedConfig tunes the simulated gateway
type SimulatedConfig struct {
	// SuccessRate is the probability in [0,1] that a charge is approved
	SuccessRate float64
	// Delay emulates processing latency
	Delay time.Duration
	Seed  uint64
}

// Simulated approves charges at random and records every attempt
type Simulated struct {
	store  kv.Store
	clock  clockwork.Clock
	logger *slog.Logger
	cfg    SimulatedConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated gateway
func NewSimulated(store kv.Store, clock clockwork.Clock, logger *slog.Logger, cfg SimulatedConfig) *Simulated {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(clock.Now().UnixNano())
	}

	return &Simulated{
		store:  store,
		clock:  clock,
		logger: logger,
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Charge waits for the configured delay, decides the outcome and stores the
// transaction. A declined charge returns the transaction and ErrPaymentDeclined.
func (g *Simulated) Charge(ctx context.Context, charge Charge) (*Transaction, error) {
	if g.cfg.Delay > 0 {
		select {
		case <-g.clock.After(g.cfg.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("payment interrupted: %w", ctx.Err())
		}
	}

	g.mu.Lock()
	approved := g.rng.Float64() < g.cfg.SuccessRate
	g.mu.Unlock()

	tx := &Transaction{
		ID:        uuid.NewString(),
		UserID:    charge.UserID,
		Plan:      charge.Plan,
		Amount:    charge.Amount,
		Currency:  charge.Currency,
		Status:    StatusDeclined,
		Renewal:   charge.Renewal,
		CreatedAt: g.clock.Now(),
	}
	if approved {
		tx.Status = StatusApproved
	}

	if err := kv.SetJSON(ctx, g.store, transactionPrefix+charge.UserID+":"+tx.ID, tx); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	g.logger.Info("Payment processed",
		slog.String("transaction_id", tx.ID),
		slog.String("user_id", tx.UserID),
		slog.String("amount", tx.Amount.StringFixed(2)),
		slog.String("status", string(tx.Status)),
	)

	if !approved {
		return tx, ErrPaymentDeclined
	}
	return tx, nil
}

// Transactions returns the user's recorded attempts, oldest first
func (g *Simulated) Transactions(ctx context.Context, userID string) ([]Transaction, error) {
	prefix := transactionPrefix + userID + ":"
	ids, err := kv.IDs(ctx, g.store, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		var tx Transaction
		found, err := kv.GetJSON(ctx, g.store, prefix+id, &tx)
		if err != nil {
			return nil, err
		}
		if found {
			txs = append(txs, tx)
		}
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.Before(txs[j].CreatedAt) })
	return txs, nil
}
