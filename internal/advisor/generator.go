package advisor

import (
	"time"

	"github.com/google/uuid"
)

// Fixture is an upcoming match
type Fixture struct {
	Sport    string `json:"sport"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}

func (f Fixture) Match() string {
	return f.HomeTeam + " vs " + f.AwayTeam
}

// DefaultFixtures is the simulated match calendar
var DefaultFixtures = []Fixture{
	{Sport: "football", HomeTeam: "Flamengo", AwayTeam: "Palmeiras"},
	{Sport: "football", HomeTeam: "Real Madrid", AwayTeam: "Barcelona"},
	{Sport: "basketball", HomeTeam: "Lakers", AwayTeam: "Warriors"},
	{Sport: "football", HomeTeam: "Corinthians", AwayTeam: "São Paulo"},
	{Sport: "football", HomeTeam: "Manchester City", AwayTeam: "Liverpool"},
	{Sport: "football", HomeTeam: "Grêmio", AwayTeam: "Internacional"},
	{Sport: "basketball", HomeTeam: "Celtics", AwayTeam: "Heat"},
	{Sport: "football", HomeTeam: "Bayern", AwayTeam: "Dortmund"},
	{Sport: "tennis", HomeTeam: "Alcaraz", AwayTeam: "Sinner"},
	{Sport: "football", HomeTeam: "Atlético Mineiro", AwayTeam: "Cruzeiro"},
}

// Prediction is a tailored pick delivered to a user
type Prediction struct {
	ID            string        `json:"id"`
	Sport         string        `json:"sport"`
	Match         string        `json:"match"`
	Market        string        `json:"market"`
	Probabilities Probabilities `json:"probabilities"`
	Recommendation
	CreatedAt time.Time `json:"created_at"`
}

// Generator builds predictions from simulated statistics
type Generator struct {
	rnd      *Random
	fixtures []Fixture
}

func NewGenerator(rnd *Random, fixtures []Fixture) *Generator {
	if len(fixtures) == 0 {
		fixtures = DefaultFixtures
	}
	return &Generator{rnd: rnd, fixtures: fixtures}
}

// Daily returns style.MaxPredictions picks, each at the risk level closest
// to the style
func (g *Generator) Daily(style Style, now time.Time) []Prediction {
	n := style.Info().MaxPredictions
	start := g.rnd.IntN(len(g.fixtures))

	out := make([]Prediction, 0, n)
	for i := 0; i < n; i++ {
		f := g.fixtures[(start+i)%len(g.fixtures)]
		stats := MockStats(g.rnd, f.HomeTeam, f.AwayTeam)
		probs := ComputeProbabilities(stats)

		out = append(out, Prediction{
			ID:             uuid.NewString(),
			Sport:          f.Sport,
			Match:          f.Match(),
			Market:         "match_result",
			Probabilities:  probs,
			Recommendation: pickFor(style, Recommend(stats, probs)),
			CreatedAt:      now,
		})
	}
	return out
}

func pickFor(style Style, recs []Recommendation) Recommendation {
	level := StyleBalanced
	switch style {
	case StyleConservative, StyleHighRisk:
		level = style
	}

	var balanced Recommendation
	for _, r := range recs {
		if r.Level == level {
			return r
		}
		if r.Level == StyleBalanced {
			balanced = r
		}
	}
	return balanced
}
