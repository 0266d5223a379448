package advisor

import (
	"fmt"
	"math"
)

// Trend is the recent momentum between two teams
type Trend string

const (
	TrendHomeStrong    Trend = "home_strong"
	TrendAwayStrong    Trend = "away_strong"
	TrendBalanced      Trend = "balanced"
	TrendUnpredictable Trend = "unpredictable"
)

var trends = []Trend{TrendHomeStrong, TrendAwayStrong, TrendBalanced, TrendUnpredictable}

// HeadToHead counts previous meetings
type HeadToHead struct {
	HomeWins int `json:"home_wins"`
	AwayWins int `json:"away_wins"`
	Draws    int `json:"draws"`
}

// MatchStats is the input to the probability model. Form entries are
// 1 for a win, 0.5 for a draw and 0 for a loss.
type MatchStats struct {
	HomeTeam    string     `json:"home_team"`
	AwayTeam    string     `json:"away_team"`
	HomeWinRate float64    `json:"home_win_rate"`
	AwayWinRate float64    `json:"away_win_rate"`
	DrawRate    float64    `json:"draw_rate"`
	HomeGoals   float64    `json:"home_goals_avg"`
	AwayGoals   float64    `json:"away_goals_avg"`
	HomeForm    []float64  `json:"home_form"`
	AwayForm    []float64  `json:"away_form"`
	HeadToHead  HeadToHead `json:"head_to_head"`
	Trend       Trend      `json:"trend"`
}

// Probabilities are percentages summing to roughly 100
type Probabilities struct {
	HomeWin    float64 `json:"home_win"`
	Draw       float64 `json:"draw"`
	AwayWin    float64 `json:"away_win"`
	Confidence int     `json:"confidence"`
}

// Recommendation is one suggested bet at a given risk level
type Recommendation struct {
	Level         Style   `json:"level"`
	Pick          string  `json:"pick"`
	Odds          float64 `json:"odds"`
	Confidence    int     `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	ExpectedValue float64 `json:"expected_value"`
}

// HouseMargin is applied to fair odds
const HouseMargin = 0.95

// ComputeProbabilities runs the weighted strength model for a match
func ComputeProbabilities(s MatchStats) Probabilities {
	homeStrength := teamStrength(s.HomeWinRate, s.HomeForm, s.HomeGoals, true)
	awayStrength := teamStrength(s.AwayWinRate, s.AwayForm, s.AwayGoals, false)
	h2hHome, h2hAway := headToHeadFactor(s.HeadToHead)

	home := homeStrength*0.6 + h2hHome*0.4
	away := awayStrength*0.6 + h2hAway*0.4
	draw := s.DrawRate*0.5 + (100-math.Abs(homeStrength-awayStrength))*0.3

	total := home + away + draw
	home = home / total * 100
	away = away / total * 100
	draw = draw / total * 100

	return Probabilities{
		HomeWin:    round(home, 1),
		Draw:       round(draw, 1),
		AwayWin:    round(away, 1),
		Confidence: int(math.Round(matchConfidence(s, home, draw, away))),
	}
}

func teamStrength(winRate float64, form []float64, goals float64, home bool) float64 {
	recent := mean(form) * 100
	goalsScore := math.Min(goals*20, 100)
	advantage := 0.0
	if home {
		advantage = 10
	}
	return recent*0.4 + winRate*0.35 + goalsScore*0.15 + advantage*0.1
}

func headToHeadFactor(h HeadToHead) (home, away float64) {
	total := h.HomeWins + h.AwayWins + h.Draws
	if total == 0 {
		return 50, 50
	}
	return float64(h.HomeWins) / float64(total) * 100, float64(h.AwayWins) / float64(total) * 100
}

func matchConfidence(s MatchStats, home, draw, away float64) float64 {
	spread := math.Max(home, math.Max(draw, away)) - math.Min(home, math.Min(draw, away))
	consistency := (formConsistency(s.HomeForm) + formConsistency(s.AwayForm)) / 2

	c := 50 + spread*0.3 + consistency*0.2
	switch s.Trend {
	case TrendHomeStrong, TrendAwayStrong:
		c += 10
	case TrendUnpredictable:
		c -= 15
	}
	return clamp(c, 40, 95)
}

func formConsistency(form []float64) float64 {
	if len(form) == 0 {
		return 0
	}
	avg := mean(form)
	var variance float64
	for _, v := range form {
		variance += (v - avg) * (v - avg)
	}
	variance /= float64(len(form))
	return math.Max(0, 100-variance*100)
}

// Recommend derives up to three picks, one per risk level
func Recommend(s MatchStats, p Probabilities) []Recommendation {
	recs := make([]Recommendation, 0, 3)

	maxProb := math.Max(p.HomeWin, math.Max(p.Draw, p.AwayWin))
	likely := outcomeOf(p, maxProb)

	if maxProb > 60 {
		odds := FairOdds(maxProb * HouseMargin)
		recs = append(recs, Recommendation{
			Level:         StyleConservative,
			Pick:          pickName(s, likely),
			Odds:          odds,
			Confidence:    p.Confidence,
			Reasoning:     fmt.Sprintf("Clear favourite with %.1f%% probability.", maxProb),
			ExpectedValue: ExpectedValue(maxProb, odds),
		})
	}

	balancedProb, balancedOutcome := maxProb, likely
	if maxProb <= 50 {
		balancedProb, balancedOutcome = p.AwayWin, "away"
		if p.HomeWin > p.AwayWin {
			balancedProb, balancedOutcome = p.HomeWin, "home"
		}
	}
	balancedOdds := FairOdds(balancedProb)
	reason := "Recent trend supports this pick."
	if s.Trend == TrendBalanced {
		reason = "Even match favours technical analysis."
	}
	recs = append(recs, Recommendation{
		Level:         StyleBalanced,
		Pick:          pickName(s, balancedOutcome),
		Odds:          balancedOdds,
		Confidence:    int(math.Round(float64(p.Confidence) * 0.9)),
		Reasoning:     fmt.Sprintf("Best balance of risk and return at %.1f%% probability. %s", balancedProb, reason),
		ExpectedValue: ExpectedValue(balancedProb, balancedOdds),
	})

	underdog, underdogProb := "away", p.AwayWin
	if p.HomeWin < p.AwayWin {
		underdog, underdogProb = "home", p.HomeWin
	}

	if underdogProb > 20 && underdogProb < 45 {
		odds := FairOdds(underdogProb * 0.85)
		recs = append(recs, Recommendation{
			Level:         StyleHighRisk,
			Pick:          pickName(s, underdog) + " (upset)",
			Odds:          odds,
			Confidence:    int(math.Round(float64(p.Confidence) * 0.7)),
			Reasoning:     fmt.Sprintf("High return opportunity at %.1f%% probability.", underdogProb),
			ExpectedValue: ExpectedValue(underdogProb, odds),
		})
	} else {
		recs = append(recs, Recommendation{
			Level:      StyleHighRisk,
			Pick:       "Accumulator: both teams score + over 2.5 goals",
			Odds:       3.5,
			Confidence: int(math.Round(float64(p.Confidence) * 0.6)),
			Reasoning: fmt.Sprintf("%s average %.1f goals per game and %s average %.1f.",
				s.HomeTeam, s.HomeGoals, s.AwayTeam, s.AwayGoals),
			ExpectedValue: ExpectedValue(35, 3.5),
		})
	}

	return recs
}

func outcomeOf(p Probabilities, maxProb float64) string {
	switch maxProb {
	case p.HomeWin:
		return "home"
	case p.AwayWin:
		return "away"
	default:
		return "draw"
	}
}

func pickName(s MatchStats, outcome string) string {
	switch outcome {
	case "home":
		return s.HomeTeam + " win"
	case "away":
		return s.AwayTeam + " win"
	default:
		return "Draw"
	}
}

// FairOdds converts a probability percentage into decimal odds with the
// house margin applied
func FairOdds(probability float64) float64 {
	if probability <= 0 {
		return 0
	}
	return round(100/probability*HouseMargin, 2)
}

// ExpectedValue is the percentage return of a bet at the given odds
func ExpectedValue(probability, odds float64) float64 {
	return round((probability/100*odds-1)*100, 1)
}

// MockStats generates plausible statistics for a fixture
func MockStats(rnd *Random, home, away string) MatchStats {
	form := func(winAbove float64) []float64 {
		out := make([]float64, 5)
		for i := range out {
			switch {
			case rnd.Float64() > winAbove:
				out[i] = 1
			case rnd.Float64() > 0.5:
				out[i] = 0.5
			}
		}
		return out
	}

	return MatchStats{
		HomeTeam:    home,
		AwayTeam:    away,
		HomeWinRate: 50 + rnd.Float64()*30,
		AwayWinRate: 40 + rnd.Float64()*30,
		DrawRate:    20 + rnd.Float64()*15,
		HomeGoals:   1.2 + rnd.Float64()*1.5,
		AwayGoals:   1.0 + rnd.Float64()*1.3,
		HomeForm:    form(0.4),
		AwayForm:    form(0.5),
		HeadToHead: HeadToHead{
			HomeWins: rnd.IntN(5),
			AwayWins: rnd.IntN(5),
			Draws:    rnd.IntN(3),
		},
		Trend: trends[rnd.IntN(len(trends))],
	}
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
