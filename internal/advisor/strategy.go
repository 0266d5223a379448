package advisor

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidStakeInput = errors.New("invalid stake input")

// MultiplesPolicy is how often a style should combine selections
type MultiplesPolicy string

const (
	MultiplesAvoid      MultiplesPolicy = "avoid"
	MultiplesOccasional MultiplesPolicy = "occasional"
	MultiplesFrequent   MultiplesPolicy = "frequent"
)

// Strategy is the betting plan for a style
type Strategy struct {
	Style          Style           `json:"style"`
	OddsRange      [2]float64      `json:"odds_range"`
	MaxPredictions int             `json:"max_predictions"`
	RiskTolerance  string          `json:"risk_tolerance"`
	BetTypes       []string        `json:"bet_types"`
	StakePercent   int             `json:"stake_percent"`
	Multiples      MultiplesPolicy `json:"multiples"`
	// KellyFraction scales the full Kelly stake
	KellyFraction float64 `json:"kelly_fraction"`
}

type plan struct {
	betTypes  []string
	multiples MultiplesPolicy
	kelly     float64
}

var plans = map[Style]plan{
	StyleConservative: {betTypes: []string{"match_result", "double_chance"}, multiples: MultiplesAvoid, kelly: 0.25},
	StyleBalanced:     {betTypes: []string{"match_result", "over_under", "both_score"}, multiples: MultiplesOccasional, kelly: 0.5},
	StyleHighRisk:     {betTypes: []string{"handicap", "correct_score", "multiple"}, multiples: MultiplesFrequent, kelly: 0.75},
	StyleStrategic:    {betTypes: []string{"match_result", "over_under", "handicap", "value_bets"}, multiples: MultiplesOccasional, kelly: 0.5},
	StyleRecreational: {betTypes: []string{"match_result", "both_score", "first_goal"}, multiples: MultiplesFrequent, kelly: 0.33},
}

// Strategy returns the plan for s. Odds range, stake and pick count come
// from the style's tuning so the two never disagree.
func (s Style) Strategy() Strategy {
	if !s.Valid() {
		s = StyleBalanced
	}
	info := s.Info()
	p := plans[s]

	return Strategy{
		Style:          s,
		OddsRange:      info.OddsRange,
		MaxPredictions: info.MaxPredictions,
		RiskTolerance:  info.RiskLevel,
		BetTypes:       p.betTypes,
		StakePercent:   info.RecommendedStake,
		Multiples:      p.multiples,
		KellyFraction:  p.kelly,
	}
}

// KellyStake sizes a bet with the fractional Kelly criterion for style,
// capped at the style's stake percentage of bankroll. probability is a
// percentage. A bet without an edge stakes zero.
func KellyStake(style Style, probability, odds float64, bankroll decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case probability <= 0 || probability >= 100:
		return decimal.Zero, fmt.Errorf("%w: probability must be between 0 and 100", ErrInvalidStakeInput)
	case odds <= 1:
		return decimal.Zero, fmt.Errorf("%w: odds must be above 1", ErrInvalidStakeInput)
	case !bankroll.IsPositive():
		return decimal.Zero, fmt.Errorf("%w: bankroll must be positive", ErrInvalidStakeInput)
	}

	strategy := style.Strategy()
	p := probability / 100
	b := odds - 1
	fraction := (b*p - (1 - p)) / b * strategy.KellyFraction
	if fraction <= 0 {
		return decimal.Zero, nil
	}

	stake := bankroll.Mul(decimal.NewFromFloat(fraction))
	ceiling := bankroll.Mul(decimal.NewFromInt(int64(strategy.StakePercent))).Div(decimal.NewFromInt(100))
	return decimal.Min(stake, ceiling).Round(2), nil
}

// Insights comments on how recent results fit style
func Insights(style Style, perf Performance) []string {
	out := []string{}
	winRate := perf.WinRate()
	settled := perf.Settled() > 0

	switch style {
	case StyleConservative:
		switch {
		case !settled:
		case winRate > 70:
			out = append(out, "Excellent! Your conservative profile is producing consistent results.")
		case winRate < 60:
			out = append(out, "Try even lower odds (1.30 to 1.60) to lift your hit rate.")
		}
		if perf.AverageOdds > 2.0 {
			out = append(out, "Your average odds are above the ideal for a conservative profile. Reduce the risk.")
		}
	case StyleBalanced:
		if winRate > 60 {
			out = append(out, "Great balance! Keep up the discipline.")
		}
		if perf.Profit > 0 {
			out = append(out, "Your balanced profile is turning a steady profit. Keep the strategy.")
		} else if settled {
			out = append(out, "Review your bets. It may be time to be more selective.")
		}
	case StyleHighRisk:
		switch {
		case !settled:
		case winRate > 50:
			out = append(out, "Great risk management! Your aggressive bets are paying off.")
		default:
			out = append(out, "Low hit rate. Cut back on multiples and focus on value singles.")
		}
		if perf.Profit < 0 {
			out = append(out, "Bankroll at risk. Drop to 2-3% stakes until you recover.")
		}
	case StyleStrategic:
		out = append(out, "Keep hunting value bets. Your analytical profile suits the long run.")
		if settled && perf.AverageOdds < 1.8 {
			out = append(out, "Your odds are too conservative. Look for more value between 1.80 and 2.50.")
		}
	case StyleRecreational:
		out = append(out, "Only bet what you can afford to lose. Fun comes first!")
		if perf.Profit < -100 {
			out = append(out, "Losses are piling up. Consider a break or smaller stakes.")
		}
	}

	if settled && winRate < 50 {
		out = append(out, "Hit rate under 50%. Review your strategy and be more selective.")
	}
	if perf.Settled() > 20 {
		out = append(out, "You are very active. Remember to take breaks and avoid impulsive bets.")
	}

	return out
}
