package advisor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence replays fixed draws
type sequence []float64

func (s *sequence) Float64() float64 {
	v := (*s)[0]
	*s = (*s)[1:]
	return v
}

// Monday 2024-06-10 10:00 UTC
var briefingTime = time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

func TestAnalyzeMarkets(t *testing.T) {
	tests := []struct {
		name  string
		draws sequence
		want  map[string]Outlook
	}{
		{
			name:  "quiet day",
			draws: sequence{0.5, 0.1, 0.9},
			want:  map[string]Outlook{"Total Goals": OutlookFavorable, "Asian Handicap": OutlookCaution},
		},
		{
			name:  "chaotic round",
			draws: sequence{0.1, 0.9, 0.2},
			want: map[string]Outlook{
				"Multiples":      OutlookAvoid,
				"Corners":        OutlookFavorable,
				"Total Goals":    OutlookCaution,
				"Asian Handicap": OutlookCaution,
			},
		},
		{
			name:  "clear favourites",
			draws: sequence{0.8, 0.6, 0.4},
			want: map[string]Outlook{
				"Multiples":      OutlookFavorable,
				"Total Goals":    OutlookFavorable,
				"Asian Handicap": OutlookCaution,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draws := tt.draws
			got := make(map[string]Outlook)
			for _, m := range AnalyzeMarkets(&draws) {
				got[m.Market] = m.Outlook
				assert.NotEmpty(t, m.Reasoning)
			}
			assert.Equal(t, tt.want, got)
			assert.Empty(t, draws, "every draw consumed")
		})
	}
}

func TestGenerateDailyAdvice_Headline(t *testing.T) {
	tests := []struct {
		name     string
		perf     Performance
		headline string
		warning  string
		tip      string
	}{
		{name: "winning run", perf: Performance{Wins: 4, Streak: 4}, headline: "good run", warning: "overconfidence"},
		{name: "losing run", perf: Performance{Losses: 4, Streak: -4}, headline: "Losing run detected", warning: "chase losses", tip: "Back to basics"},
		{name: "three is not a run", perf: Performance{Wins: 3, Streak: 3}, headline: "Steady performance"},
		{name: "no history", perf: Performance{}, headline: "Steady performance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := GenerateDailyAdvice(StyleBalanced, tt.perf, nil, briefingTime)
			assert.Contains(t, a.Headline, tt.headline)
			if tt.warning != "" {
				require.NotEmpty(t, a.Warnings)
				assert.Contains(t, a.Warnings[0], tt.warning)
			} else {
				assert.Empty(t, a.Warnings)
			}
			if tt.tip != "" {
				assert.Contains(t, a.Tips[0], tt.tip)
			}
		})
	}
}

func TestGenerateDailyAdvice_Style(t *testing.T) {
	tests := []struct {
		name     string
		style    Style
		perf     Performance
		tips     int
		warnings int
		insights int
	}{
		{name: "conservative on target", style: StyleConservative, perf: Performance{Wins: 8, Losses: 2}, tips: 2},
		{name: "conservative missing", style: StyleConservative, perf: Performance{Wins: 5, Losses: 5}, tips: 2, warnings: 1},
		{name: "conservative without bets", style: StyleConservative, tips: 2},
		{name: "balanced", style: StyleBalanced, tips: 2},
		{name: "high risk in profit", style: StyleHighRisk, perf: Performance{Wins: 2, Profit: 40}, tips: 1, warnings: 1},
		{name: "high risk in the red", style: StyleHighRisk, perf: Performance{Losses: 2, Profit: -40}, tips: 1, warnings: 2},
		{name: "strategic", style: StyleStrategic, tips: 2, insights: 1},
		{name: "recreational", style: StyleRecreational, tips: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := GenerateDailyAdvice(tt.style, tt.perf, nil, briefingTime)
			assert.Len(t, a.Tips, tt.tips)
			assert.Len(t, a.Warnings, tt.warnings)
			assert.Len(t, a.MarketInsights, tt.insights)
		})
	}
}

func TestGenerateDailyAdvice_MarketsAndMotivation(t *testing.T) {
	markets := []MarketCondition{
		{Market: "Multiples", Outlook: OutlookAvoid, Reasoning: "chaos"},
		{Market: "Corners", Outlook: OutlookFavorable, Reasoning: "steady"},
		{Market: "Asian Handicap", Outlook: OutlookCaution, Reasoning: "technical"},
	}

	a := GenerateDailyAdvice(StyleBalanced, Performance{Profit: 10}, markets, briefingTime)
	assert.Equal(t, []string{"Avoid Multiples today: chaos"}, a.Warnings)
	assert.Equal(t, []string{"Corners looks favourable: steady", "Asian Handicap needs caution: technical"}, a.MarketInsights)
	assert.Contains(t, a.Motivation, "Keep it up")
	assert.True(t, briefingTime.Equal(a.Date))

	assert.Contains(t, GenerateDailyAdvice(StyleBalanced, Performance{Profit: -51}, nil, briefingTime).Motivation, "bad spells")
	assert.Contains(t, GenerateDailyAdvice(StyleBalanced, Performance{Profit: -50}, nil, briefingTime).Motivation, "marathon")
}

func TestTimeOfDayTip(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{hour: 0, want: "small hours"},
		{hour: 5, want: "small hours"},
		{hour: 6, want: "Good morning"},
		{hour: 12, want: "Good afternoon"},
		{hour: 18, want: "Prime time"},
		{hour: 21, want: "Prime time"},
		{hour: 22, want: "End of the day"},
	}

	for _, tt := range tests {
		at := time.Date(2024, 6, 10, tt.hour, 30, 0, 0, time.UTC)
		assert.Contains(t, TimeOfDayTip(at), tt.want, "hour %d", tt.hour)
	}
}

func TestWeekdayTip(t *testing.T) {
	// 2024-06-09 is a Sunday
	want := []string{"Sunday", "Start of the week", "Midweek", "Midweek", "Thursday", "Friday", "Saturday"}
	for i, w := range want {
		at := time.Date(2024, 6, 9+i, 12, 0, 0, 0, time.UTC)
		assert.Contains(t, WeekdayTip(at), w, at.Weekday().String())
	}
}

func TestStrategy(t *testing.T) {
	for _, style := range Styles {
		t.Run(string(style), func(t *testing.T) {
			s := style.Strategy()
			info := style.Info()
			assert.Equal(t, style, s.Style)
			assert.Equal(t, info.OddsRange, s.OddsRange)
			assert.Equal(t, info.RecommendedStake, s.StakePercent)
			assert.Equal(t, info.MaxPredictions, s.MaxPredictions)
			assert.NotEmpty(t, s.BetTypes)
			assert.Greater(t, s.KellyFraction, 0.0)
			assert.LessOrEqual(t, s.KellyFraction, 1.0)
		})
	}

	assert.Equal(t, MultiplesAvoid, StyleConservative.Strategy().Multiples)
	assert.Equal(t, StyleBalanced, Style("unknown").Strategy().Style)
}

func TestKellyStake(t *testing.T) {
	bankroll := decimal.NewFromInt(1000)

	tests := []struct {
		name        string
		style       Style
		probability float64
		odds        float64
		bankroll    decimal.Decimal
		want        string
		wantErr     bool
	}{
		// full Kelly 20%, quarter Kelly 5%, capped at 2%
		{name: "conservative capped", style: StyleConservative, probability: 60, odds: 2, bankroll: bankroll, want: "20"},
		// full Kelly 4%, three quarters 3%, under the 5% cap
		{name: "high risk fraction", style: StyleHighRisk, probability: 52, odds: 2, bankroll: bankroll, want: "30"},
		{name: "no edge", style: StyleBalanced, probability: 50, odds: 2, bankroll: bankroll, want: "0"},
		{name: "negative edge", style: StyleBalanced, probability: 30, odds: 2, bankroll: bankroll, want: "0"},
		{name: "zero probability", style: StyleBalanced, probability: 0, odds: 2, bankroll: bankroll, wantErr: true},
		{name: "certain", style: StyleBalanced, probability: 100, odds: 2, bankroll: bankroll, wantErr: true},
		{name: "odds of one", style: StyleBalanced, probability: 60, odds: 1, bankroll: bankroll, wantErr: true},
		{name: "empty bankroll", style: StyleBalanced, probability: 60, odds: 2, bankroll: decimal.Zero, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KellyStake(tt.style, tt.probability, tt.odds, tt.bankroll)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStakeInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestInsights(t *testing.T) {
	tests := []struct {
		name  string
		style Style
		perf  Performance
		want  []string
	}{
		{name: "conservative hitting", style: StyleConservative, perf: Performance{Wins: 8, Losses: 2, AverageOdds: 1.5}, want: []string{"Excellent!"}},
		{name: "conservative missing with long odds", style: StyleConservative, perf: Performance{Wins: 5, Losses: 5, AverageOdds: 2.2}, want: []string{"even lower odds", "above the ideal"}},
		{name: "balanced losing money", style: StyleBalanced, perf: Performance{Wins: 4, Losses: 6, Profit: -10}, want: []string{"more selective", "under 50%"}},
		{name: "balanced without bets", style: StyleBalanced, want: []string{}},
		{name: "high risk struggling", style: StyleHighRisk, perf: Performance{Wins: 3, Losses: 7, Profit: -30}, want: []string{"Low hit rate", "Bankroll at risk", "under 50%"}},
		{name: "strategic playing safe", style: StyleStrategic, perf: Performance{Wins: 6, Losses: 4, AverageOdds: 1.5}, want: []string{"value bets", "too conservative"}},
		{name: "recreational busy and down", style: StyleRecreational, perf: Performance{Wins: 11, Losses: 10, Profit: -150}, want: []string{"afford to lose", "piling up", "very active"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Insights(tt.style, tt.perf)
			require.Len(t, got, len(tt.want), "%v", got)
			for i, w := range tt.want {
				assert.Contains(t, got[i], w)
			}
		})
	}
}

func TestRiskAlertFor(t *testing.T) {
	now := briefingTime
	spaced := func(n int, gap time.Duration, stake, odds float64) []RecentBet {
		out := make([]RecentBet, n)
		for i := range out {
			out[i] = RecentBet{Stake: stake, Odds: odds, PlacedAt: now.Add(-time.Duration(n-i) * gap)}
		}
		return out
	}

	tests := []struct {
		name     string
		bets     []RecentBet
		bankroll float64
		want     Severity
		message  string
	}{
		{name: "quiet", bets: spaced(3, time.Hour, 10, 2), bankroll: 1000},
		{name: "too many bets", bets: spaced(11, time.Hour, 10, 2), bankroll: 1000, want: SeverityHigh, message: "more than 10 bets"},
		{name: "oversized stake", bets: spaced(2, time.Hour, 150, 2), bankroll: 1000, want: SeverityMedium, message: "10% of your bankroll"},
		{name: "stake ignored without bankroll", bets: spaced(2, time.Hour, 150, 2)},
		{name: "long shots", bets: spaced(4, time.Hour, 10, 6), bankroll: 1000, want: SeverityMedium, message: "very high odds"},
		{name: "rapid fire", bets: spaced(5, time.Minute, 10, 2), bankroll: 1000, want: SeverityHigh, message: "very quickly"},
		{name: "old bets ignored", bets: spaced(12, 3*time.Hour, 10, 2), bankroll: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := RiskAlertFor(tt.bets, tt.bankroll, now)
			if tt.want == "" {
				assert.Nil(t, alert)
				return
			}
			require.NotNil(t, alert)
			assert.Equal(t, tt.want, alert.Severity)
			assert.Contains(t, alert.Message, tt.message)
			assert.NotEmpty(t, alert.Recommendations)
		})
	}
}

func TestRiskWarnings(t *testing.T) {
	now := briefingTime
	bets := make([]RecentBet, 12)
	for i := range bets {
		bets[i] = RecentBet{Stake: 25, Odds: 2, PlacedAt: now.Add(-time.Duration(i+1) * time.Hour)}
	}
	bets = append(bets, RecentBet{Stake: 500, Odds: 2, PlacedAt: now.Add(-48 * time.Hour)})

	b := BehaviorOf(bets, 1000, -6, now)
	assert.Equal(t, Behavior{BetsLastDay: 12, StakeLastDay: 300, Bankroll: 1000, LosingStreak: 6}, b)

	var ids []string
	for _, w := range RiskWarnings(b) {
		ids = append(ids, w.ID)
	}
	assert.Equal(t, []string{"risk_too_many_bets", "risk_high_stake", "risk_losing_streak"}, ids)

	assert.Empty(t, RiskWarnings(BehaviorOf(bets[:3], 0, 4, now)))
}

func TestBrief(t *testing.T) {
	b := Brief(StyleStrategic, Performance{Wins: 3, Losses: 1, Streak: 2}, nil, 0, nil, briefingTime)
	assert.Equal(t, StyleStrategic, b.Strategy.Style)
	assert.Nil(t, b.RiskAlert)
	assert.Empty(t, b.Warnings)
	assert.NotEmpty(t, b.Insights)
	assert.Equal(t, TimeOfDayTip(briefingTime), b.Advice.TimeOfDay)
}
