package advisor

import (
	"fmt"
	"sort"
	"time"
)

const (
	riskWindow        = 24 * time.Hour
	rapidBetGap       = 5 * time.Minute
	maxDailyBets      = 10
	maxRapidBets      = 3
	maxLongShots      = 3
	longShotOdds      = 5.0
	singleStakeLimit  = 0.10
	dailyStakePercent = 20.0
	losingStreakAlarm = 5
)

// Severity grades a risk alert
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RecentBet is the part of a wager the risk checks look at
type RecentBet struct {
	Stake    float64   `json:"stake"`
	Odds     float64   `json:"odds"`
	PlacedAt time.Time `json:"placed_at"`
}

// RiskAlert flags betting behaviour that looks impulsive
type RiskAlert struct {
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	Recommendations []string `json:"recommendations"`
}

// RiskAlertFor inspects the bets placed in the 24 hours before now. It
// returns nil when nothing stands out. Stake checks are skipped without a
// positive bankroll.
func RiskAlertFor(bets []RecentBet, bankroll float64, now time.Time) *RiskAlert {
	recent := lastDay(bets, now)

	alert := &RiskAlert{Severity: SeverityLow, Recommendations: []string{}}

	if len(recent) > maxDailyBets {
		alert.Severity = SeverityHigh
		alert.Message = "You placed more than 10 bets in the last 24 hours. That can be a sign of impulsive betting."
		alert.Recommendations = append(alert.Recommendations,
			"Take a break of at least 12 hours",
			"Set a daily limit of at most 5 bets",
			"Only bet on games you have actually analysed",
		)
	}

	if bankroll > 0 && countBets(recent, func(b RecentBet) bool { return b.Stake > bankroll*singleStakeLimit }) > 0 {
		if alert.Severity != SeverityHigh {
			alert.Severity = SeverityMedium
		}
		if alert.Message == "" {
			alert.Message = "You staked more than 10% of your bankroll on recent bets."
		}
		alert.Recommendations = append(alert.Recommendations,
			"Never stake more than 5% of your bankroll on a single bet",
			"Review your bankroll management",
		)
	}

	if countBets(recent, func(b RecentBet) bool { return b.Odds > longShotOdds }) > maxLongShots {
		alert.Severity = SeverityMedium
		if alert.Message == "" {
			alert.Message = "You are betting on very high odds often."
		}
		alert.Recommendations = append(alert.Recommendations,
			"High odds carry low probability. Be more selective",
			"Focus on value, not on big prices",
		)
	}

	var rapid int
	for i := 1; i < len(recent); i++ {
		if recent[i].PlacedAt.Sub(recent[i-1].PlacedAt) < rapidBetGap {
			rapid++
		}
	}
	if rapid > maxRapidBets {
		alert.Severity = SeverityHigh
		alert.Message = "You are betting very quickly. That is a common sign of tilt."
		alert.Recommendations = append(alert.Recommendations,
			"Stop betting now",
			"Take a 24 hour break",
			"Breathe and do not try to win losses back",
		)
	}

	if alert.Message == "" {
		return nil
	}
	return alert
}

// Behavior summarises the last day of betting for the warning checks
type Behavior struct {
	BetsLastDay  int     `json:"bets_last_day"`
	StakeLastDay float64 `json:"stake_last_day"`
	Bankroll     float64 `json:"bankroll"`
	LosingStreak int     `json:"losing_streak"`
}

// BehaviorOf derives Behavior from bets and the current streak, which is
// negative for a losing run
func BehaviorOf(bets []RecentBet, bankroll float64, streak int, now time.Time) Behavior {
	b := Behavior{Bankroll: bankroll}
	for _, bet := range lastDay(bets, now) {
		b.BetsLastDay++
		b.StakeLastDay += bet.Stake
	}
	if streak < 0 {
		b.LosingStreak = -streak
	}
	return b
}

// RiskWarning is a standalone warning suitable for a notification
type RiskWarning struct {
	ID       string `json:"id"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// RiskWarnings lists the warnings triggered by b
func RiskWarnings(b Behavior) []RiskWarning {
	out := []RiskWarning{}

	if b.BetsLastDay > maxDailyBets {
		out = append(out, RiskWarning{
			ID:       "risk_too_many_bets",
			Priority: "urgent",
			Title:    "Risk Alert",
			Message:  fmt.Sprintf("You placed %d bets in the last 24 hours. That can be a sign of impulsive betting, consider a break.", b.BetsLastDay),
		})
	}

	if b.Bankroll > 0 {
		if pct := b.StakeLastDay / b.Bankroll * 100; pct > dailyStakePercent {
			out = append(out, RiskWarning{
				ID:       "risk_high_stake",
				Priority: "urgent",
				Title:    "Bankroll Management at Risk",
				Message:  fmt.Sprintf("You staked %.1f%% of your bankroll in the last 24 hours. We recommend staying under 10%% a day.", pct),
			})
		}
	}

	if b.LosingStreak >= losingStreakAlarm {
		out = append(out, RiskWarning{
			ID:       "risk_losing_streak",
			Priority: "high",
			Title:    "Losing Run",
			Message:  fmt.Sprintf("You have lost %d bets in a row. Consider a 24-48h break, lower stakes and a strategy review.", b.LosingStreak),
		})
	}

	return out
}

// lastDay returns the bets placed in the window before now, oldest first
func lastDay(bets []RecentBet, now time.Time) []RecentBet {
	out := make([]RecentBet, 0, len(bets))
	for _, b := range bets {
		if age := now.Sub(b.PlacedAt); age >= 0 && age < riskWindow {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out
}

func countBets(bets []RecentBet, match func(RecentBet) bool) int {
	var n int
	for _, b := range bets {
		if match(b) {
			n++
		}
	}
	return n
}

// Briefing bundles everything the advisor tells a user on a given day
type Briefing struct {
	Advice    DailyAdvice   `json:"advice"`
	Strategy  Strategy      `json:"strategy"`
	Insights  []string      `json:"insights"`
	RiskAlert *RiskAlert    `json:"risk_alert,omitempty"`
	Warnings  []RiskWarning `json:"risk_warnings"`
}

// Brief assembles the briefing for style. bankroll may be zero when the
// user has not shared one.
func Brief(style Style, perf Performance, bets []RecentBet, bankroll float64, markets []MarketCondition, now time.Time) Briefing {
	return Briefing{
		Advice:    GenerateDailyAdvice(style, perf, markets, now),
		Strategy:  style.Strategy(),
		Insights:  Insights(style, perf),
		RiskAlert: RiskAlertFor(bets, bankroll, now),
		Warnings:  RiskWarnings(BehaviorOf(bets, bankroll, perf.Streak, now)),
	}
}
