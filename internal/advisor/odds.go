package advisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNoQuotes is returned when a market has no platform quotes to compare
var ErrNoQuotes = errors.New("no platform quotes")

// Platform is a bookmaker the advisor tracks
type Platform struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Rating     float64 `json:"rating"`
	Commission float64 `json:"commission"`
}

// DefaultPlatforms are the tracked bookmakers
var DefaultPlatforms = []Platform{
	{ID: "bet365", Name: "Bet365", Rating: 4.8, Commission: 0.05},
	{ID: "betano", Name: "Betano", Rating: 4.7, Commission: 0.06},
	{ID: "blaze", Name: "Blaze", Rating: 4.5, Commission: 0.07},
	{ID: "sportingbet", Name: "SportingBet", Rating: 4.6, Commission: 0.06},
	{ID: "1xbet", Name: "1xBet", Rating: 4.4, Commission: 0.08},
}

// Markets scanned for value opportunities
var Markets = []string{"match_result", "over_under", "both_score"}

// MarketOdds are a platform's average odds per sport
type MarketOdds struct {
	Football   float64 `json:"football"`
	Basketball float64 `json:"basketball"`
	Tennis     float64 `json:"tennis"`
}

// PlatformSnapshot is the latest refreshed view of a platform
type PlatformSnapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Rating      float64    `json:"rating"`
	AverageOdds float64    `json:"average_odds"`
	Ranking     int        `json:"ranking"`
	Markets     MarketOdds `json:"markets"`
	LastUpdate  time.Time  `json:"last_update"`
}

// Quote is one platform's price for a market
type Quote struct {
	PlatformID   string  `json:"platform_id"`
	PlatformName string  `json:"platform_name"`
	Odds         float64 `json:"odds"`
	Margin       float64 `json:"margin"`
}

// Comparison summarises the quotes for one market of one match
type Comparison struct {
	Sport        string  `json:"sport"`
	Market       string  `json:"market"`
	Match        string  `json:"match"`
	Quotes       []Quote `json:"quotes"`
	BestPlatform string  `json:"best_platform"`
	BestOdds     float64 `json:"best_odds"`
	AverageOdds  float64 `json:"average_odds"`
	// ValuePercent is how far the best odds sit above the market average
	ValuePercent float64 `json:"value_percent"`
}

// Opportunity is a market where one platform pays noticeably above average
type Opportunity struct {
	Match        string  `json:"match"`
	Market       string  `json:"market"`
	Platform     string  `json:"platform"`
	Odds         float64 `json:"odds"`
	ValuePercent float64 `json:"value_percent"`
}

// OddsFeed supplies bookmaker prices
type OddsFeed interface {
	Snapshot(ctx context.Context, p Platform) (PlatformSnapshot, error)
	Quotes(ctx context.Context, fixture Fixture, market string) ([]Quote, error)
}

// Compare sorts quotes by odds and measures the best one against the average
func Compare(fixture Fixture, market string, quotes []Quote) (Comparison, error) {
	if len(quotes) == 0 {
		return Comparison{}, fmt.Errorf("%w for %s %s", ErrNoQuotes, fixture.Match(), market)
	}

	sorted := make([]Quote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Odds > sorted[j].Odds })

	var sum float64
	for _, q := range sorted {
		sum += q.Odds
	}
	avg := sum / float64(len(sorted))
	best := sorted[0]

	return Comparison{
		Sport:        fixture.Sport,
		Market:       market,
		Match:        fixture.Match(),
		Quotes:       sorted,
		BestPlatform: best.PlatformName,
		BestOdds:     best.Odds,
		AverageOdds:  round(avg, 2),
		ValuePercent: round((best.Odds-avg)/avg*100, 1),
	}, nil
}

// Opportunities keeps comparisons whose value reaches threshold percent,
// best value first
func Opportunities(comparisons []Comparison, threshold float64) []Opportunity {
	out := make([]Opportunity, 0)
	for _, c := range comparisons {
		if c.ValuePercent < threshold {
			continue
		}
		out = append(out, Opportunity{
			Match:        c.Match,
			Market:       c.Market,
			Platform:     c.BestPlatform,
			Odds:         c.BestOdds,
			ValuePercent: c.ValuePercent,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ValuePercent > out[j].ValuePercent })
	return out
}

// ScanOpportunities compares every market of every fixture through the feed.
// A fixture whose quotes cannot be fetched is skipped.
func ScanOpportunities(ctx context.Context, feed OddsFeed, fixtures []Fixture, threshold float64) ([]Opportunity, error) {
	comparisons := make([]Comparison, 0, len(fixtures)*len(Markets))
	var lastErr error

	for _, f := range fixtures {
		for _, m := range Markets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			quotes, err := feed.Quotes(ctx, f, m)
			if err != nil {
				lastErr = err
				continue
			}
			c, err := Compare(f, m, quotes)
			if err != nil {
				lastErr = err
				continue
			}
			comparisons = append(comparisons, c)
		}
	}

	if len(comparisons) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to fetch any quotes: %w", lastErr)
	}
	return Opportunities(comparisons, threshold), nil
}

// Rank orders snapshots by average odds and assigns 1-based rankings
func Rank(snapshots []PlatformSnapshot) []PlatformSnapshot {
	out := make([]PlatformSnapshot, len(snapshots))
	copy(out, snapshots)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageOdds > out[j].AverageOdds })
	for i := range out {
		out[i].Ranking = i + 1
	}
	return out
}

// SimulatedFeed produces random prices in the range real markets quote
type SimulatedFeed struct {
	rnd *Random
	now func() time.Time
}

func NewSimulatedFeed(rnd *Random, now func() time.Time) *SimulatedFeed {
	if now == nil {
		now = time.Now
	}
	return &SimulatedFeed{rnd: rnd, now: now}
}

func (f *SimulatedFeed) Snapshot(ctx context.Context, p Platform) (PlatformSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return PlatformSnapshot{}, err
	}

	base := 1.5 + f.rnd.Float64()*2
	return PlatformSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Rating:      p.Rating,
		AverageOdds: round(base, 2),
		Markets: MarketOdds{
			Football:   round(base*1.1, 2),
			Basketball: round(base*0.95, 2),
			Tennis:     round(base*1.05, 2),
		},
		LastUpdate: f.now(),
	}, nil
}

func (f *SimulatedFeed) Quotes(ctx context.Context, _ Fixture, _ string) ([]Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(DefaultPlatforms))
	for _, p := range DefaultPlatforms {
		quotes = append(quotes, Quote{
			PlatformID:   p.ID,
			PlatformName: p.Name,
			Odds:         round(1.5+f.rnd.Float64()*2, 2),
			Margin:       round(3+f.rnd.Float64()*7, 1),
		})
	}
	return quotes, nil
}
