package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/primebets/advisor/internal/api/dto"
	"github.com/primebets/advisor/internal/notification"
	"github.com/primebets/advisor/internal/payment"
	"github.com/primebets/advisor/internal/subscription"
	"github.com/primebets/advisor/internal/validation"
)

// SubscriptionHandler handles premium plans and billing
type SubscriptionHandler struct {
	logger  *slog.Logger
	clock   clockwork.Clock
	ledger  *subscription.Ledger
	gateway payment.Gateway
	sink    *notification.Sink
}

func NewSubscriptionHandler(deps *Dependencies) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger:  deps.Logger,
		clock:   deps.Clock,
		ledger:  deps.Ledger,
		gateway: deps.Gateway,
		sink:    deps.Sink,
	}
}

// Plans handles GET /api/v1/plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	plans := make([]gin.H, 0, 3)
	for _, p := range subscription.Plans() {
		plans = append(plans, gin.H{
			"plan":     p,
			"price":    p.Price(),
			"currency": subscription.Currency,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetSubscription handles GET /api/v1/users/:user_id/subscription
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	sub, err := h.ledger.Get(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to load subscription", err)
		return
	}
	c.JSON(http.StatusOK, h.response(sub, nil))
}

// Subscribe handles POST /api/v1/users/:user_id/subscription. The card is
// charged before the subscription starts.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}

	plan, err := subscription.ParsePlan(req.Plan)
	if err != nil {
		respondError(c, h.logger, "Invalid plan", err)
		return
	}
	if msg := h.checkCard(req.Card); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	u := currentUser(c)

	tx, err := h.charge(ctx, u.ID, plan, false)
	if err != nil {
		respondError(c, h.logger, "Failed to process payment", err)
		return
	}

	sub, err := h.ledger.Create(ctx, u.ID, plan)
	if err != nil {
		h.logger.Error("Payment captured but subscription not created",
			slog.String("user_id", u.ID),
			slog.String("plan", string(plan)),
			slog.String("transaction_id", tx.ID),
			slog.String("error", err.Error()),
		)
		respondError(c, h.logger, "Failed to create subscription", err)
		return
	}

	h.sink.Notify(ctx, u.ID, notification.TypeUpdate,
		"Welcome to Premium!",
		"Your Premium subscription is active. Enjoy unlimited picks and odds alerts!",
		map[string]any{"plan": plan, "expires_at": sub.ExpiresAt},
	)

	c.JSON(http.StatusCreated, h.response(sub, tx))
}

// Renew handles POST /api/v1/users/:user_id/subscription/renew
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	var req dto.RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}
	if msg := h.checkCard(req.Card); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	u := currentUser(c)

	current, err := h.ledger.Peek(ctx, u.ID)
	if err != nil {
		respondError(c, h.logger, "Failed to load subscription", err)
		return
	}

	tx, err := h.charge(ctx, u.ID, current.Plan, true)
	if err != nil {
		respondError(c, h.logger, "Failed to process payment", err)
		return
	}

	sub, err := h.ledger.Renew(ctx, u.ID, tx.ID)
	if err != nil {
		h.logger.Error("Payment captured but subscription not renewed",
			slog.String("user_id", u.ID),
			slog.String("plan", string(current.Plan)),
			slog.String("transaction_id", tx.ID),
			slog.String("error", err.Error()),
		)
		respondError(c, h.logger, "Failed to renew subscription", err)
		return
	}

	c.JSON(http.StatusOK, h.response(sub, tx))
}

// SetAutoRenew handles PATCH /api/v1/users/:user_id/subscription
func (h *SubscriptionHandler) SetAutoRenew(c *gin.Context) {
	var req dto.AutoRenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}

	sub, err := h.ledger.SetAutoRenew(c.Request.Context(), currentUser(c).ID, *req.AutoRenew)
	if err != nil {
		respondError(c, h.logger, "Failed to update subscription", err)
		return
	}
	c.JSON(http.StatusOK, h.response(sub, nil))
}

// Cancel handles DELETE /api/v1/users/:user_id/subscription. Access lasts
// until the paid period ends.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	u := currentUser(c)

	cancelled, err := h.ledger.Cancel(ctx, u.ID)
	if err != nil {
		respondError(c, h.logger, "Failed to cancel subscription", err)
		return
	}
	if !cancelled {
		respondError(c, h.logger, "Failed to cancel subscription", subscription.ErrSubscriptionNotFound)
		return
	}

	sub, err := h.ledger.Get(ctx, u.ID)
	if err != nil {
		respondError(c, h.logger, "Failed to load subscription", err)
		return
	}
	c.JSON(http.StatusOK, h.response(sub, nil))
}

func (h *SubscriptionHandler) charge(ctx context.Context, userID string, plan subscription.Plan, renewal bool) (*payment.Transaction, error) {
	tx, err := h.gateway.Charge(ctx, payment.Charge{
		UserID:   userID,
		Plan:     string(plan),
		Amount:   plan.Price(),
		Currency: subscription.Currency,
		Renewal:  renewal,
	})
	if err != nil {
		if errors.Is(err, payment.ErrPaymentDeclined) {
			h.logger.Warn("Payment declined",
				slog.String("user_id", userID),
				slog.String("plan", string(plan)),
			)
		}
		return nil, err
	}
	return tx, nil
}

// checkCard returns the first validation failure, or "" for a usable card
func (h *SubscriptionHandler) checkCard(card dto.PaymentCard) string {
	checks := []validation.Result{
		validation.CreditCard(card.Number),
		validation.CVV(card.CVV),
		validation.CardExpiry(card.Expiry, h.clock.Now()),
	}
	for _, r := range checks {
		if !r.IsValid {
			return r.Error
		}
	}
	return ""
}

func (h *SubscriptionHandler) response(sub *subscription.Subscription, tx *payment.Transaction) dto.SubscriptionResponse {
	now := h.clock.Now()
	resp := dto.SubscriptionResponse{
		Subscription: sub,
		Premium:      subscription.HasAccess(sub, now),
		Transaction:  tx,
	}
	if sub.Status != subscription.StatusExpired {
		resp.DaysRemaining = subscription.DaysUntil(sub.ExpiresAt, now)
	}
	return resp
}
