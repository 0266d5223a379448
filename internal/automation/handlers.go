package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/primebets/advisor/internal/advisor"
	"github.com/primebets/advisor/internal/history"
	"github.com/primebets/advisor/internal/notification"
	"github.com/primebets/advisor/internal/payment"
	"github.com/primebets/advisor/internal/scheduler"
	"github.com/primebets/advisor/internal/subscription"
	"github.com/primebets/advisor/internal/user"
)

const (
	freePredictionLimit    = 3
	premiumPredictionLimit = 10

	oddsAlertTTL = time.Hour
	day          = 24 * time.Hour
)

// Deps are the collaborators the automation handlers read and write
type Deps struct {
	Users     *user.Directory
	Advisor   *advisor.Repository
	Generator *advisor.Generator
	Markets   advisor.Float64Source
	Feed      advisor.OddsFeed
	Fixtures  []advisor.Fixture
	Ledger    *subscription.Ledger
	Gateway   payment.Gateway
	Sink      *notification.Sink
	Bets      *history.Book
	Reports   *history.Reports
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Handlers implements the body of every automation job
type Handlers struct {
	Deps
}

func NewHandlers(deps Deps) *Handlers {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(deps.Fixtures) == 0 {
		deps.Fixtures = advisor.DefaultFixtures
	}
	if deps.Markets == nil {
		deps.Markets = advisor.NewRandom(0)
	}
	return &Handlers{Deps: deps}
}

// For binds the named job's handler to cfg
func (h *Handlers) For(name string, cfg JobConfig) (scheduler.Handler, error) {
	switch name {
	case JobDailyPredictions:
		return func(ctx context.Context) error { return h.DailyPredictions(ctx, cfg) }, nil
	case JobPlatformUpdates:
		return func(ctx context.Context) error { return h.PlatformUpdates(ctx, cfg) }, nil
	case JobPerformanceReports:
		return func(ctx context.Context) error { return h.PerformanceReports(ctx, cfg) }, nil
	case JobPremiumChecks:
		return func(ctx context.Context) error { return h.PremiumChecks(ctx, cfg) }, nil
	case JobRenewalReminders:
		return func(ctx context.Context) error { return h.RenewalReminders(ctx, cfg) }, nil
	case JobOddsMonitoring:
		return func(ctx context.Context) error { return h.OddsMonitoring(ctx, cfg) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
}

// DailyPredictions sends each user picks tailored to their profile. Users
// without a profile get balanced picks; free users get fewer.
func (h *Handlers) DailyPredictions(ctx context.Context, _ JobConfig) error {
	ids, err := h.Users.IDs(ctx)
	if err != nil {
		return err
	}

	now := h.Clock.Now()
	markets := advisor.AnalyzeMarkets(h.Markets)
	var failed int

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		style := advisor.StyleBalanced
		profile, err := h.Advisor.Profile(ctx, id)
		switch {
		case err == nil:
			style = profile.Style
		case !errors.Is(err, advisor.ErrProfileNotFound):
			h.Logger.Warn("Skipping daily predictions, profile unreadable",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}

		limit := freePredictionLimit
		premium, err := h.Ledger.IsPremium(ctx, id)
		if err != nil {
			h.Logger.Warn("Premium lookup failed, using free limit",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
		}
		if premium {
			limit = premiumPredictionLimit
		}

		predictions := h.Generator.Daily(style, now)
		if len(predictions) > limit {
			predictions = predictions[:limit]
		}

		h.Sink.Notify(ctx, id, notification.TypeNewPrediction,
			"Your Daily Picks Are In!",
			fmt.Sprintf("%d personalised picks were generated for you. Check them out!", len(predictions)),
			map[string]any{
				"predictions": predictions,
				"count":       len(predictions),
				"style":       style,
				"briefing":    h.briefing(ctx, id, style, markets, now),
			},
		)
	}

	h.Logger.Info("Daily predictions sent",
		slog.Int("users", len(ids)-failed),
		slog.Int("skipped", failed),
	)

	if failed > 0 {
		return fmt.Errorf("daily predictions skipped %d users", failed)
	}
	return nil
}

// briefing builds the user's advice from their bet history. The bankroll is
// unknown to the job, so stake-based risk checks are left to the advice
// endpoint.
func (h *Handlers) briefing(ctx context.Context, userID string, style advisor.Style, markets []advisor.MarketCondition, now time.Time) advisor.Briefing {
	var perf advisor.Performance
	var recent []advisor.RecentBet

	if h.Bets != nil {
		stats, err := h.Bets.Stats(ctx, userID)
		if err == nil {
			perf = stats.Performance()
			var bets []history.Bet
			bets, err = h.Bets.Between(ctx, userID, now.Add(-day), now)
			recent = history.RecentBets(bets)
		}
		if err != nil {
			h.Logger.Warn("Bet history unavailable, advising without it",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return advisor.Brief(style, perf, recent, 0, markets, now)
}

// PlatformUpdates refreshes every platform's odds and stores the ranking.
// Nothing is stored unless every platform refreshed.
func (h *Handlers) PlatformUpdates(ctx context.Context, cfg JobConfig) error {
	attempts := 1
	if cfg.RetryOnError {
		attempts += cfg.MaxRetries
	}

	snapshots := make([]advisor.PlatformSnapshot, 0, len(advisor.DefaultPlatforms))
	for _, p := range advisor.DefaultPlatforms {
		s, err := h.fetchSnapshot(ctx, p, attempts, time.Duration(cfg.RetryBackoff))
		if err != nil {
			return fmt.Errorf("failed to refresh %s: %w", p.ID, err)
		}
		snapshots = append(snapshots, s)
	}

	ranked := advisor.Rank(snapshots)
	now := h.Clock.Now()
	if err := h.Advisor.SavePlatforms(ctx, ranked, now); err != nil {
		return err
	}

	h.Logger.Info("Platforms refreshed",
		slog.Int("platforms", len(ranked)),
		slog.String("leader", ranked[0].Name),
	)
	return nil
}

func (h *Handlers) fetchSnapshot(ctx context.Context, p advisor.Platform, attempts int, backoff time.Duration) (advisor.PlatformSnapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		s, err := h.Feed.Snapshot(ctx, p)
		if err == nil {
			return s, nil
		}
		lastErr = err

		h.Logger.Warn("Platform refresh failed",
			slog.String("platform", p.ID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if attempt < attempts && backoff > 0 {
			select {
			case <-h.Clock.After(backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return advisor.PlatformSnapshot{}, ctx.Err()
			}
		}
	}
	return advisor.PlatformSnapshot{}, lastErr
}

// PerformanceReports summarises each user's trailing week of bets
func (h *Handlers) PerformanceReports(ctx context.Context, cfg JobConfig) error {
	ids, err := h.Users.IDs(ctx)
	if err != nil {
		return err
	}

	loc := time.Local
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		}
	}

	now := h.Clock.Now()
	var sent, failed int

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		bets, err := h.Bets.Between(ctx, id, now.Add(-history.ReportWindow), now)
		if err != nil {
			h.Logger.Warn("Skipping report, history unreadable",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		if len(bets) == 0 {
			continue
		}

		stats := history.Summarize(bets, loc)
		if !cfg.IncludeRecommendations {
			stats.Recommendations = nil
		}
		text := history.Render(stats)

		h.Sink.Notify(ctx, id, notification.TypePerformanceReport,
			"Your Weekly Report Is Here!",
			fmt.Sprintf("Win rate: %.1f%% | %d wins from %d bets", stats.WinRate, stats.Wins, stats.TotalBets),
			map[string]any{"stats": stats, "report": text},
		)

		if err := h.Reports.Append(ctx, id, history.Report{Date: now, Stats: stats, Text: text}); err != nil {
			h.Logger.Error("Failed to store report",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		sent++
	}

	h.Logger.Info("Weekly reports sent", slog.Int("sent", sent), slog.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("weekly reports failed for %d users", failed)
	}
	return nil
}

// PremiumChecks processes each subscription whose expiry passed and was not
// yet handled this cycle
func (h *Handlers) PremiumChecks(ctx context.Context, cfg JobConfig) error {
	subs, err := h.Ledger.List(ctx)
	if err != nil {
		return err
	}

	now := h.Clock.Now()
	var failed int

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !now.After(sub.ExpiresAt) || sub.ExpiryHandled {
			continue
		}

		if err := h.handleExpiry(ctx, cfg, sub); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.Logger.Error("Premium check failed",
				slog.String("user_id", sub.UserID),
				slog.String("error", err.Error()),
			)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("premium check failed for %d subscriptions", failed)
	}
	return nil
}

func (h *Handlers) handleExpiry(ctx context.Context, cfg JobConfig, sub subscription.Subscription) error {
	switch {
	case sub.Status == subscription.StatusCancelled:
		if _, err := h.Ledger.MarkExpired(ctx, sub.UserID); err != nil {
			return err
		}
		if cfg.NotifyOnExpiration {
			h.Sink.Notify(ctx, sub.UserID, notification.TypeUpdate,
				"Subscription Ended",
				"Your Premium subscription has ended. You can reactivate it at any time!",
				nil,
			)
		}
		h.Logger.Info("Cancelled subscription ended", slog.String("user_id", sub.UserID))
		return nil

	case sub.AutoRenew && cfg.AutoRenew:
		return h.autoRenew(ctx, sub)

	default:
		if _, err := h.Ledger.MarkExpired(ctx, sub.UserID); err != nil {
			return err
		}
		if cfg.NotifyOnExpiration {
			h.Sink.Notify(ctx, sub.UserID, notification.TypeRenewal,
				"Subscription Expired",
				"Your Premium subscription has expired. Renew now to keep every feature!",
				map[string]any{"action": "renew"},
			)
		}
		h.Logger.Info("Subscription expired", slog.String("user_id", sub.UserID))
		return nil
	}
}

func (h *Handlers) autoRenew(ctx context.Context, sub subscription.Subscription) error {
	tx, err := h.Gateway.Charge(ctx, payment.Charge{
		UserID:   sub.UserID,
		Plan:     string(sub.Plan),
		Amount:   sub.Plan.Price(),
		Currency: subscription.Currency,
		Renewal:  true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, markErr := h.Ledger.MarkExpired(ctx, sub.UserID); markErr != nil {
			return markErr
		}
		h.Sink.Notify(ctx, sub.UserID, notification.TypeRenewal,
			"Automatic Renewal Failed",
			"We could not renew your subscription. Update your payment details to continue.",
			map[string]any{"action": "update_payment"},
		)
		h.Logger.Warn("Automatic renewal failed",
			slog.String("user_id", sub.UserID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	renewed, err := h.Ledger.Renew(ctx, sub.UserID, tx.ID)
	if err != nil {
		return fmt.Errorf("charged %s but failed to renew: %w", tx.ID, err)
	}

	h.Sink.Notify(ctx, sub.UserID, notification.TypeRenewal,
		"Subscription Renewed Automatically",
		fmt.Sprintf("Your Premium subscription (%s) was renewed. Valid until %s.",
			renewed.Plan, renewed.ExpiresAt.Format(time.DateOnly)),
		map[string]any{
			"plan":       renewed.Plan,
			"expires_at": renewed.ExpiresAt,
			"payment_id": tx.ID,
		},
	)
	h.Logger.Info("Subscription renewed automatically",
		slog.String("user_id", sub.UserID),
		slog.String("payment_id", tx.ID),
	)
	return nil
}

type reminder struct {
	urgency string
	title   string
	message string
}

func reminderFor(days int) reminder {
	switch days {
	case 0:
		return reminder{"expired", "Your Subscription Expires Today!",
			"Your Premium subscription expires today! Renew now to keep unlimited access."}
	case 1:
		return reminder{"critical", "Your Subscription Expires Tomorrow!",
			"URGENT: your Premium subscription expires tomorrow! Renew now to keep access."}
	case 3:
		return reminder{"urgent", "Your Subscription Expires in 3 Days",
			"Heads up! Your Premium subscription expires in 3 days. Keep your exclusive features!"}
	default:
		return reminder{"warning", fmt.Sprintf("Your Subscription Expires in %d Days", days),
			fmt.Sprintf("Your Premium subscription expires in %d days. Renew now and keep every benefit!", days)}
	}
}

// RenewalReminders notifies each configured threshold once per billing
// cycle. The zero-day reminder is sent only within a day after expiry.
func (h *Handlers) RenewalReminders(ctx context.Context, cfg JobConfig) error {
	subs, err := h.Ledger.List(ctx)
	if err != nil {
		return err
	}

	now := h.Clock.Now()
	var failed int

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sub.Status == subscription.StatusCancelled {
			continue
		}

		var days int
		switch {
		case now.Before(sub.ExpiresAt):
			days = subscription.DaysUntil(sub.ExpiresAt, now)
		case now.Sub(sub.ExpiresAt) < day:
			days = 0
		default:
			continue
		}

		if !slices.Contains(cfg.ReminderDays, days) || sub.ReminderSent(days) {
			continue
		}

		first, err := h.Ledger.MarkReminderSent(ctx, sub.UserID, days)
		if err != nil {
			h.Logger.Error("Failed to record reminder",
				slog.String("user_id", sub.UserID),
				slog.Int("days", days),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		if !first {
			continue
		}

		r := reminderFor(days)
		h.Sink.Notify(ctx, sub.UserID, notification.TypeRenewal, r.title, r.message, map[string]any{
			"days_remaining": days,
			"urgency":        r.urgency,
			"action":         "renew",
		})
		h.Logger.Info("Renewal reminder sent",
			slog.String("user_id", sub.UserID),
			slog.Int("days", days),
		)
	}

	if failed > 0 {
		return fmt.Errorf("renewal reminders failed for %d subscriptions", failed)
	}
	return nil
}

// OddsMonitoring alerts users to the best value opportunity in the feed
func (h *Handlers) OddsMonitoring(ctx context.Context, cfg JobConfig) error {
	opps, err := advisor.ScanOpportunities(ctx, h.Feed, h.Fixtures, cfg.ValueThreshold)
	if err != nil {
		return err
	}
	if len(opps) == 0 {
		h.Logger.Debug("No odds opportunities above threshold", slog.Float64("threshold", cfg.ValueThreshold))
		return nil
	}
	best := opps[0]

	ids, err := h.Users.IDs(ctx)
	if err != nil {
		return err
	}

	now := h.Clock.Now()
	var sent int

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		if cfg.PremiumOnly {
			premium, err := h.Ledger.IsPremium(ctx, id)
			if err != nil {
				h.Logger.Warn("Premium lookup failed, skipping odds alert",
					slog.String("user_id", id),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !premium {
				continue
			}
		}

		h.Sink.NotifyUntil(ctx, id, notification.TypeAdvantageousOdds,
			"Advantageous Odds Detected!",
			fmt.Sprintf("%s - %s is paying %.2f right now!", best.Match, best.Platform, best.Odds),
			map[string]any{
				"match":         best.Match,
				"market":        best.Market,
				"platform":      best.Platform,
				"odds":          best.Odds,
				"value_percent": best.ValuePercent,
				"detected_at":   now,
			},
			now.Add(oddsAlertTTL),
		)
		sent++
	}

	h.Logger.Info("Odds alerts sent",
		slog.String("match", best.Match),
		slog.Float64("value_percent", best.ValuePercent),
		slog.Int("users", sent),
	)
	return nil
}
