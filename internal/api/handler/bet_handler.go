package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/primebets/advisor/internal/api/dto"
	"github.com/primebets/advisor/internal/history"
)

// BetHandler handles the bet history
type BetHandler struct {
	logger *slog.Logger
	bets   *history.Book
}

func NewBetHandler(deps *Dependencies) *BetHandler {
	return &BetHandler{
		logger: deps.Logger,
		bets:   deps.Bets,
	}
}

func betCursor(b history.Bet) Cursor {
	return Cursor{CreatedAt: b.PlacedAt, ID: b.ID}
}

// PlaceBet handles POST /api/v1/users/:user_id/bets
func (h *BetHandler) PlaceBet(c *gin.Context) {
	var req dto.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}

	bet, err := h.bets.Save(c.Request.Context(), currentUser(c).ID, history.NewBet{
		PredictionID: req.PredictionID,
		Match:        req.Match,
		Market:       req.Market,
		Stake:        req.Stake,
		Odds:         req.Odds,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to save bet", err)
		return
	}

	c.JSON(http.StatusCreated, bet)
}

// ListBets handles GET /api/v1/users/:user_id/bets
func (h *BetHandler) ListBets(c *gin.Context) {
	var req dto.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, h.logger, "Invalid query parameters", err)
		return
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		badRequest(c, h.logger, "Invalid cursor", err)
		return
	}

	bets, err := h.bets.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to list bets", err)
		return
	}

	page, next := paginate(bets, betCursor, cursor, pageSize(req.PageSize))
	if page == nil {
		page = []history.Bet{}
	}

	c.JSON(http.StatusOK, dto.BetPage{Bets: page, NextCursor: next})
}

// SettleBet handles POST /api/v1/users/:user_id/bets/:bet_id/settle
func (h *BetHandler) SettleBet(c *gin.Context) {
	var req dto.SettleBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}

	bet, err := h.bets.Settle(c.Request.Context(), currentUser(c).ID, c.Param("bet_id"), history.Result(req.Result))
	if err != nil {
		respondError(c, h.logger, "Failed to settle bet", err)
		return
	}

	c.JSON(http.StatusOK, bet)
}

// Stats handles GET /api/v1/users/:user_id/stats
func (h *BetHandler) Stats(c *gin.Context) {
	stats, err := h.bets.Stats(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to compute stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
