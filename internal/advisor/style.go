package advisor

import (
	"fmt"
)

// Style is a bettor risk profile
type Style string

const (
	StyleConservative Style = "conservative"
	StyleBalanced     Style = "balanced"
	StyleHighRisk     Style = "highRisk"
	StyleStrategic    Style = "strategic"
	StyleRecreational Style = "recreational"
)

// Styles in scoring order. Ties resolve to the earlier style.
var Styles = []Style{StyleConservative, StyleBalanced, StyleHighRisk, StyleStrategic, StyleRecreational}

// StyleInfo describes how predictions are tailored to a style
type StyleInfo struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	RiskLevel        string     `json:"risk_level"`
	OddsRange        [2]float64 `json:"odds_range"`
	RecommendedStake int        `json:"recommended_stake"`
	MaxPredictions   int        `json:"max_predictions"`
}

var styleInfo = map[Style]StyleInfo{
	StyleConservative: {
		Name:             "Conservative",
		Description:      "Prefers safety and low-risk bets with consistent returns",
		RiskLevel:        "low",
		OddsRange:        [2]float64{1.20, 1.80},
		RecommendedStake: 2,
		MaxPredictions:   3,
	},
	StyleBalanced: {
		Name:             "Balanced",
		Description:      "Looks for a balance between risk and return",
		RiskLevel:        "medium",
		OddsRange:        [2]float64{1.50, 2.50},
		RecommendedStake: 3,
		MaxPredictions:   5,
	},
	StyleHighRisk: {
		Name:             "High Risk",
		Description:      "Accepts high risk in search of large returns",
		RiskLevel:        "high",
		OddsRange:        [2]float64{2.00, 5.00},
		RecommendedStake: 5,
		MaxPredictions:   8,
	},
	StyleStrategic: {
		Name:             "Strategic",
		Description:      "Analyses deeply and places calculated bets",
		RiskLevel:        "medium",
		OddsRange:        [2]float64{1.60, 2.80},
		RecommendedStake: 3,
		MaxPredictions:   4,
	},
	StyleRecreational: {
		Name:             "Recreational",
		Description:      "Bets for fun without big concerns",
		RiskLevel:        "medium",
		OddsRange:        [2]float64{1.40, 3.00},
		RecommendedStake: 2,
		MaxPredictions:   6,
	},
}

// Info returns the tuning for s, falling back to balanced for unknown styles
func (s Style) Info() StyleInfo {
	if info, ok := styleInfo[s]; ok {
		return info
	}
	return styleInfo[StyleBalanced]
}

func (s Style) Valid() bool {
	_, ok := styleInfo[s]
	return ok
}

// ParseStyle validates a style name
func ParseStyle(v string) (Style, error) {
	s := Style(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown bettor style %q", v)
	}
	return s, nil
}
