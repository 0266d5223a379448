package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/primebets/advisor/internal/advisor"
	"github.com/primebets/advisor/internal/automation"
	"github.com/primebets/advisor/internal/history"
	"github.com/primebets/advisor/internal/notification"
	"github.com/primebets/advisor/internal/payment"
	"github.com/primebets/advisor/internal/subscription"
	"github.com/primebets/advisor/internal/user"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Clock       clockwork.Clock
	Automations *automation.Manager
	Users       *user.Directory
	Advisor     *advisor.Repository
	Ledger      *subscription.Ledger
	Gateway     payment.Gateway
	Sink        *notification.Sink
	Bets        *history.Book
	Reports     *history.Reports
	// Markets drives the daily market conditions; nil uses a time-seeded source
	Markets advisor.Float64Source
}

const userKey = "user"

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, history.ErrBetNotFound),
		errors.Is(err, advisor.ErrProfileNotFound),
		errors.Is(err, automation.ErrUnknownJob):
		return http.StatusNotFound

	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, history.ErrAlreadySettled):
		return http.StatusConflict

	case errors.Is(err, payment.ErrPaymentDeclined):
		return http.StatusPaymentRequired

	case errors.Is(err, user.ErrInvalidUser),
		errors.Is(err, subscription.ErrInvalidPlan),
		errors.Is(err, history.ErrInvalidBetInput),
		errors.Is(err, history.ErrInvalidResult),
		errors.Is(err, advisor.ErrIncompleteQuiz),
		errors.Is(err, advisor.ErrUnknownAnswer),
		errors.Is(err, advisor.ErrInvalidStakeInput),
		errors.Is(err, automation.ErrInvalidConfig):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are logged
// and hidden behind msg.
func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg,
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// currentUser returns the user loaded by UserHandler.LoadUser
func currentUser(c *gin.Context) *user.User {
	return c.MustGet(userKey).(*user.User)
}
