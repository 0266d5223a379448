package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/primebets/advisor/internal/kv"
)

const (
	reportsPrefix = "performance_reports:"

	// MaxReports is the number of weekly reports kept per user
	MaxReports = 12

	// ReportWindow is the period covered by a weekly report
	ReportWindow = 7 * 24 * time.Hour

	defaultMarket = "match_result"
)

// nominalStake is the flat stake weekly profit is expressed in
var nominalStake = decimal.NewFromInt(10)

// PerformanceStats summarises one reporting window
type PerformanceStats struct {
	TotalBets       int             `json:"total_bets"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         float64         `json:"win_rate"`
	AverageOdds     float64         `json:"average_odds"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	BestDay         string          `json:"best_day"`
	WorstDay        string          `json:"worst_day"`
	FavoriteMarket  string          `json:"favorite_market"`
	Recommendations []string        `json:"recommendations"`
}

// Report is a stored weekly report
type Report struct {
	Date  time.Time        `json:"date"`
	Stats PerformanceStats `json:"stats"`
	Text  string           `json:"report"`
}

// Summarize computes window statistics. Profit assumes the nominal stake on
// every settled bet so reports compare across users.
func Summarize(bets []Bet, loc *time.Location) PerformanceStats {
	if loc == nil {
		loc = time.Local
	}

	s := PerformanceStats{TotalBets: len(bets), TotalProfit: decimal.Zero}

	var oddsSum float64
	days := make(map[string][2]int)
	markets := make(map[string]int)

	for _, bet := range bets {
		oddsSum += bet.Odds

		day := bet.PlacedAt.In(loc).Format(time.DateOnly)
		d := days[day]
		d[1]++

		switch bet.Result {
		case ResultWin:
			s.Wins++
			d[0]++
			s.TotalProfit = s.TotalProfit.Add(decimal.NewFromFloat(bet.Odds - 1).Mul(nominalStake))
		case ResultLoss:
			s.Losses++
			s.TotalProfit = s.TotalProfit.Sub(nominalStake)
		}
		days[day] = d

		market := bet.Market
		if market == "" {
			market = defaultMarket
		}
		markets[market]++
	}

	if s.TotalBets > 0 {
		s.WinRate = roundTo(float64(s.Wins)/float64(s.TotalBets)*100, 1)
		s.AverageOdds = roundTo(oddsSum/float64(s.TotalBets), 2)
	}
	s.TotalProfit = s.TotalProfit.Round(2)
	s.BestDay, s.WorstDay = bestAndWorstDay(days)
	s.FavoriteMarket = favoriteMarket(markets)
	s.Recommendations = recommendations(s.TotalBets, s.WinRate)

	return s
}

func bestAndWorstDay(days map[string][2]int) (best, worst string) {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bestRate, worstRate := 0.0, 100.0
	for _, k := range keys {
		rate := float64(days[k][0]) / float64(days[k][1]) * 100
		if rate > bestRate {
			best, bestRate = k, rate
		}
		if rate < worstRate {
			worst, worstRate = k, rate
		}
	}

	if best == "" {
		best = "N/A"
	}
	if worst == "" {
		worst = "N/A"
	}
	return best, worst
}

func favoriteMarket(markets map[string]int) string {
	keys := make([]string, 0, len(markets))
	for k := range markets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fav, count := defaultMarket, 0
	for _, k := range keys {
		if markets[k] > count {
			fav, count = k, markets[k]
		}
	}
	return fav
}

func recommendations(total int, winRate float64) []string {
	var out []string
	switch {
	case winRate < 40:
		out = append(out, "Consider lowering the risk of your bets", "Focus on lower, safer odds")
	case winRate > 70:
		out = append(out, "Excellent performance, keep it up", "You can explore slightly higher odds")
	default:
		out = append(out, "Balanced performance", "Keep your picks consistent")
	}
	if total < 5 {
		out = append(out, "Place more bets for a more accurate analysis")
	}
	return out
}

// Render formats stats as the report text sent to the user
func Render(s PerformanceStats) string {
	var b strings.Builder

	b.WriteString("WEEKLY PERFORMANCE REPORT\n\n")
	b.WriteString("Overview:\n")
	fmt.Fprintf(&b, "- Total bets: %d\n", s.TotalBets)
	fmt.Fprintf(&b, "- Wins: %d\n", s.Wins)
	fmt.Fprintf(&b, "- Losses: %d\n", s.Losses)
	fmt.Fprintf(&b, "- Win rate: %.1f%%\n\n", s.WinRate)
	b.WriteString("Financial:\n")
	fmt.Fprintf(&b, "- Average odds: %.2f\n", s.AverageOdds)
	fmt.Fprintf(&b, "- Profit/loss: R$ %s\n\n", s.TotalProfit.StringFixed(2))
	b.WriteString("Timeline:\n")
	fmt.Fprintf(&b, "- Best day: %s\n", s.BestDay)
	fmt.Fprintf(&b, "- Worst day: %s\n\n", s.WorstDay)
	b.WriteString("Preferences:\n")
	fmt.Fprintf(&b, "- Favourite market: %s\n\n", s.FavoriteMarket)
	if len(s.Recommendations) > 0 {
		b.WriteString("Recommendations:\n")
		for _, r := range s.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	return strings.TrimSpace(b.String())
}

// Reports keeps the latest weekly reports per user, newest first
type Reports struct {
	store kv.Store
	mu    sync.Mutex
}

func NewReports(store kv.Store) *Reports {
	return &Reports{store: store}
}

// List returns stored reports, newest first
func (r *Reports) List(ctx context.Context, userID string) ([]Report, error) {
	var reports []Report
	if _, err := kv.GetJSON(ctx, r.store, reportsPrefix+userID, &reports); err != nil {
		return nil, fmt.Errorf("failed to load reports: %w", err)
	}
	return reports, nil
}

// Append stores report at the front and drops the oldest beyond MaxReports
func (r *Reports) Append(ctx context.Context, userID string, report Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reports, err := r.List(ctx, userID)
	if err != nil {
		return err
	}

	reports = append([]Report{report}, reports...)
	if len(reports) > MaxReports {
		reports = reports[:MaxReports]
	}

	if err := kv.SetJSON(ctx, r.store, reportsPrefix+userID, reports); err != nil {
		return fmt.Errorf("failed to save reports: %w", err)
	}
	return nil
}
