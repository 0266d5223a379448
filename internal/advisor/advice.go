package advisor

import (
	"fmt"
	"time"
)

// Level grades a market's predictability or volatility
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Outlook is the advice for a market on a given day
type Outlook string

const (
	OutlookAvoid     Outlook = "avoid"
	OutlookCaution   Outlook = "caution"
	OutlookFavorable Outlook = "favorable"
)

// MarketCondition describes how a market is behaving today
type MarketCondition struct {
	Market         string  `json:"market"`
	Predictability Level   `json:"predictability"`
	Volatility     Level   `json:"volatility"`
	Outlook        Outlook `json:"outlook"`
	Reasoning      string  `json:"reasoning"`
}

// Performance is the slice of a user's record the advice is tuned to.
// Streak is positive for a winning run and negative for a losing one.
type Performance struct {
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Streak      int     `json:"streak"`
	Profit      float64 `json:"profit"`
	AverageOdds float64 `json:"average_odds"`
}

// Settled is the number of decided bets
func (p Performance) Settled() int {
	return p.Wins + p.Losses
}

// WinRate is the percentage of settled bets won, 0 without history
func (p Performance) WinRate() float64 {
	if p.Settled() == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Settled()) * 100
}

// DailyAdvice is the personalised briefing sent with the daily picks
type DailyAdvice struct {
	Date           time.Time `json:"date"`
	Headline       string    `json:"headline"`
	Tips           []string  `json:"tips"`
	Warnings       []string  `json:"warnings"`
	MarketInsights []string  `json:"market_insights"`
	Motivation     string    `json:"motivation"`
	TimeOfDay      string    `json:"time_of_day"`
	Weekday        string    `json:"weekday"`
}

// Float64Source yields values in [0,1). *Random satisfies it.
type Float64Source interface {
	Float64() float64
}

// AnalyzeMarkets draws today's conditions for the tracked markets. Total
// goals and asian handicap are always reported; multiples and corners only
// when they stand out.
func AnalyzeMarkets(src Float64Source) []MarketCondition {
	var out []MarketCondition

	switch m := src.Float64(); {
	case m < 0.3:
		out = append(out, MarketCondition{
			Market:         "Multiples",
			Predictability: LevelLow,
			Volatility:     LevelHigh,
			Outlook:        OutlookAvoid,
			Reasoning:      "many unpredictable games today and favourites are underperforming",
		})
	case m > 0.7:
		out = append(out, MarketCondition{
			Market:         "Multiples",
			Predictability: LevelHigh,
			Volatility:     LevelLow,
			Outlook:        OutlookFavorable,
			Reasoning:      "a round with clear favourites suits conservative multiples",
		})
	}

	if src.Float64() > 0.6 {
		out = append(out, MarketCondition{
			Market:         "Corners",
			Predictability: LevelHigh,
			Volatility:     LevelLow,
			Outlook:        OutlookFavorable,
			Reasoning:      "corner statistics have been very consistent in recent rounds",
		})
	}

	if src.Float64() < 0.4 {
		out = append(out, MarketCondition{
			Market:         "Total Goals",
			Predictability: LevelLow,
			Volatility:     LevelHigh,
			Outlook:        OutlookCaution,
			Reasoning:      "goal counts vary widely, over/under is hard to call with confidence",
		})
	} else {
		out = append(out, MarketCondition{
			Market:         "Total Goals",
			Predictability: LevelMedium,
			Volatility:     LevelMedium,
			Outlook:        OutlookFavorable,
			Reasoning:      "scoring patterns are stable, check each team's averages",
		})
	}

	out = append(out, MarketCondition{
		Market:         "Asian Handicap",
		Predictability: LevelMedium,
		Volatility:     LevelMedium,
		Outlook:        OutlookCaution,
		Reasoning:      "needs deep technical analysis, recommended for experienced bettors only",
	})

	return out
}

// GenerateDailyAdvice builds the briefing for style from recent form and
// today's market conditions
func GenerateDailyAdvice(style Style, perf Performance, markets []MarketCondition, now time.Time) DailyAdvice {
	a := DailyAdvice{
		Date:           now,
		Tips:           []string{},
		Warnings:       []string{},
		MarketInsights: []string{},
		TimeOfDay:      TimeOfDayTip(now),
		Weekday:        WeekdayTip(now),
	}

	switch {
	case perf.Streak > 3:
		a.Headline = "You are on a good run. Stay disciplined and do not raise stakes on impulse."
		a.Warnings = append(a.Warnings, "Watch out for overconfidence. Keep to your strategy during winning runs.")
	case perf.Streak < -3:
		a.Headline = "Losing run detected. Time to review your strategy and consider lower stakes."
		a.Warnings = append(a.Warnings, "Do not chase losses. Take a break if you need one.")
		a.Tips = append(a.Tips, "Back to basics: only bet on games you have actually analysed.")
	default:
		a.Headline = "Steady performance. Keep following your strategy with discipline."
	}

	switch style {
	case StyleConservative:
		a.Tips = append(a.Tips,
			"Focus on clear favourites with odds between 1.30 and 1.80.",
			"Avoid multiples. Singles are safer for your profile.",
		)
		if perf.Settled() > 0 && perf.WinRate() < 70 {
			a.Warnings = append(a.Warnings, "Your hit rate is below what a conservative profile should expect. Be even more selective.")
		}
	case StyleBalanced:
		a.Tips = append(a.Tips,
			"Look for a balance between attractive odds (1.80 to 2.50) and confidence.",
			"An occasional two-game multiple can lift returns without much extra risk.",
		)
	case StyleHighRisk:
		a.Tips = append(a.Tips, "Keep multiples to three or four selections at most.")
		a.Warnings = append(a.Warnings, "Never stake more than 5% of your bankroll on one bet, even at high odds.")
		if perf.Profit < 0 {
			a.Warnings = append(a.Warnings, "Bankroll at risk. Drop to 2-3% stakes until you recover.")
		}
	case StyleStrategic:
		a.Tips = append(a.Tips,
			"Hunt for value bets where the odds beat the real probability.",
			"Study the statistics before betting. Your profile rewards research.",
		)
		a.MarketInsights = append(a.MarketInsights, "Compare odds across platforms to maximise value.")
	case StyleRecreational:
		a.Tips = append(a.Tips,
			"Only bet what you can lose without hurting your budget.",
			"Fun comes first. Do not chase losses.",
		)
	}

	for _, m := range markets {
		switch m.Outlook {
		case OutlookAvoid:
			a.Warnings = append(a.Warnings, fmt.Sprintf("Avoid %s today: %s", m.Market, m.Reasoning))
		case OutlookFavorable:
			a.MarketInsights = append(a.MarketInsights, fmt.Sprintf("%s looks favourable: %s", m.Market, m.Reasoning))
		default:
			a.MarketInsights = append(a.MarketInsights, fmt.Sprintf("%s needs caution: %s", m.Market, m.Reasoning))
		}
	}

	switch {
	case perf.Profit > 0:
		a.Motivation = "Keep it up! Discipline and patience win in the long run."
	case perf.Profit < -50:
		a.Motivation = "Every bettor has bad spells. Keep a cool head and stick to the plan."
	default:
		a.Motivation = "Sports betting is a marathon, not a sprint. Think long term."
	}

	return a
}

// TimeOfDayTip returns the tip for the hour of now
func TimeOfDayTip(now time.Time) string {
	switch h := now.Hour(); {
	case h < 6:
		return "Betting in the small hours? Tired decisions tend to be impulsive."
	case h < 12:
		return "Good morning! Go through today's games calmly before betting."
	case h < 18:
		return "Good afternoon! Review your planned bets and stay disciplined."
	case h < 22:
		return "Prime time with lots of games on. Be selective."
	default:
		return "End of the day. Do not bet on impulse on the late games."
	}
}

// WeekdayTip returns the tip for the weekday of now
func WeekdayTip(now time.Time) string {
	switch now.Weekday() {
	case time.Sunday:
		return "Sunday has plenty of games. You do not need to bet on all of them."
	case time.Monday:
		return "Start of the week. A good moment to plan your bets."
	case time.Tuesday, time.Wednesday:
		return "Midweek European cup nights. Analyse the match-ups carefully."
	case time.Thursday:
		return "Thursday. Review your week before the weekend fixtures."
	case time.Friday:
		return "Friday! A busy weekend is coming, plan ahead."
	default:
		return "Saturday brings the big games. Still, do not bet on every one."
	}
}
