package history

import "github.com/primebets/advisor/internal/advisor"

// Performance is the advisor's view of the stats
func (s *Stats) Performance() advisor.Performance {
	return advisor.Performance{
		Wins:        s.Won,
		Losses:      s.Lost,
		Streak:      s.CurrentStreak,
		Profit:      s.TotalProfit.InexactFloat64(),
		AverageOdds: s.AverageOdds,
	}
}

// RecentBets converts bets for the risk checks
func RecentBets(bets []Bet) []advisor.RecentBet {
	out := make([]advisor.RecentBet, 0, len(bets))
	for _, b := range bets {
		out = append(out, advisor.RecentBet{
			Stake:    b.Stake.InexactFloat64(),
			Odds:     b.Odds,
			PlacedAt: b.PlacedAt,
		})
	}
	return out
}
