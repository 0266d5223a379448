package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/primebets/advisor/internal/advisor"
	"github.com/primebets/advisor/internal/api/dto"
	"github.com/primebets/advisor/internal/history"
)

// AdviceHandler serves the personalised advice
type AdviceHandler struct {
	logger  *slog.Logger
	clock   clockwork.Clock
	advisor *advisor.Repository
	bets    *history.Book
	markets advisor.Float64Source
}

func NewAdviceHandler(deps *Dependencies) *AdviceHandler {
	markets := deps.Markets
	if markets == nil {
		markets = advisor.NewRandom(0)
	}
	return &AdviceHandler{
		logger:  deps.Logger,
		clock:   deps.Clock,
		advisor: deps.Advisor,
		bets:    deps.Bets,
		markets: markets,
	}
}

// style falls back to balanced until the user takes the quiz
func (h *AdviceHandler) style(ctx context.Context, userID string) (advisor.Style, error) {
	profile, err := h.advisor.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, advisor.ErrProfileNotFound) {
			return advisor.StyleBalanced, nil
		}
		return "", err
	}
	return profile.Style, nil
}

// GetAdvice handles GET /api/v1/users/:user_id/advice
func (h *AdviceHandler) GetAdvice(c *gin.Context) {
	var req dto.AdviceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, h.logger, "Invalid query parameters", err)
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c).ID
	now := h.clock.Now()

	style, err := h.style(ctx, userID)
	if err != nil {
		respondError(c, h.logger, "Failed to load profile", err)
		return
	}

	stats, err := h.bets.Stats(ctx, userID)
	if err != nil {
		respondError(c, h.logger, "Failed to load bet stats", err)
		return
	}
	recent, err := h.bets.Between(ctx, userID, now.Add(-24*time.Hour), now)
	if err != nil {
		respondError(c, h.logger, "Failed to load bets", err)
		return
	}

	markets := advisor.AnalyzeMarkets(h.markets)
	c.JSON(http.StatusOK, gin.H{
		"style":    style,
		"markets":  markets,
		"briefing": advisor.Brief(style, stats.Performance(), history.RecentBets(recent), req.Bankroll, markets, now),
	})
}

// GetStake handles GET /api/v1/users/:user_id/advice/stake
func (h *AdviceHandler) GetStake(c *gin.Context) {
	var req dto.StakeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, h.logger, "Invalid query parameters", err)
		return
	}

	style, err := h.style(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to load profile", err)
		return
	}

	stake, err := advisor.KellyStake(style, req.Probability, req.Odds, decimal.NewFromFloat(req.Bankroll))
	if err != nil {
		respondError(c, h.logger, "Failed to size stake", err)
		return
	}

	strategy := style.Strategy()
	c.JSON(http.StatusOK, dto.StakeResponse{
		Style:           style,
		Stake:           stake,
		StakePercent:    strategy.StakePercent,
		KellyFraction:   strategy.KellyFraction,
		PotentialReturn: stake.Mul(decimal.NewFromFloat(req.Odds)).Round(2),
		ExpectedValue:   advisor.ExpectedValue(req.Probability, req.Odds),
	})
}
