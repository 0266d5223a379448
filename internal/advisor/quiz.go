package advisor

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrIncompleteQuiz is returned when not every question was answered
	ErrIncompleteQuiz = errors.New("all quiz questions must be answered")

	// ErrUnknownAnswer is returned for a question or option that does not exist
	ErrUnknownAnswer = errors.New("unknown quiz answer")
)

// Option is one answer choice
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Value     int    `json:"value"`
	RiskLevel int    `json:"risk_level"`
}

// Question is one weighted quiz item
type Question struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Category string   `json:"category"`
	Weight   float64  `json:"weight"`
	Options  []Option `json:"options"`
}

// Answer picks an option for a question
type Answer struct {
	QuestionID int    `json:"question_id"`
	OptionID   string `json:"option_id"`
}

// Profile is the classification produced by the quiz
type Profile struct {
	Style       Style             `json:"style"`
	Scores      map[Style]float64 `json:"scores"`
	Confidence  int               `json:"confidence"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Questions is the risk-profile questionnaire
var Questions = []Question{
	{
		ID: 1, Text: "How often do you bet on sports?", Category: "frequency", Weight: 1.2,
		Options: []Option{
			{ID: "freq_1", Text: "Rarely (1-2 times a month)", Value: 1, RiskLevel: 1},
			{ID: "freq_2", Text: "Occasionally (1-2 times a week)", Value: 2, RiskLevel: 2},
			{ID: "freq_3", Text: "Regularly (3-5 times a week)", Value: 3, RiskLevel: 3},
			{ID: "freq_4", Text: "Daily", Value: 4, RiskLevel: 4},
		},
	},
	{
		ID: 2, Text: "What is your average stake per bet?", Category: "amount", Weight: 1.5,
		Options: []Option{
			{ID: "amount_1", Text: "Up to R$ 20", Value: 1, RiskLevel: 1},
			{ID: "amount_2", Text: "R$ 20 - R$ 50", Value: 2, RiskLevel: 2},
			{ID: "amount_3", Text: "R$ 50 - R$ 100", Value: 3, RiskLevel: 3},
			{ID: "amount_4", Text: "Over R$ 100", Value: 4, RiskLevel: 4},
		},
	},
	{
		ID: 3, Text: "What is your risk preference?", Category: "risk", Weight: 2.0,
		Options: []Option{
			{ID: "risk_1", Text: "Safety first, even with lower returns", Value: 1, RiskLevel: 1},
			{ID: "risk_2", Text: "Balance between safety and return", Value: 2, RiskLevel: 2},
			{ID: "risk_3", Text: "Moderate risk for higher returns", Value: 3, RiskLevel: 3},
			{ID: "risk_4", Text: "High risk, high return", Value: 4, RiskLevel: 4},
		},
	},
	{
		ID: 4, Text: "Which kind of tip do you prefer?", Category: "type", Weight: 1.3,
		Options: []Option{
			{ID: "type_1", Text: "Singles (1 match)", Value: 1, RiskLevel: 1},
			{ID: "type_2", Text: "Accumulators with 2-3 matches", Value: 2, RiskLevel: 2},
			{ID: "type_3", Text: "Accumulators with 4-6 matches", Value: 3, RiskLevel: 3},
			{ID: "type_4", Text: "Accumulators with 7+ matches", Value: 4, RiskLevel: 4},
		},
	},
	{
		ID: 5, Text: "Which odds range do you prefer?", Category: "odds", Weight: 1.4,
		Options: []Option{
			{ID: "odds_1", Text: "1.20 - 1.50 (favourites)", Value: 1, RiskLevel: 1},
			{ID: "odds_2", Text: "1.50 - 2.00 (even)", Value: 2, RiskLevel: 2},
			{ID: "odds_3", Text: "2.00 - 3.50 (risky)", Value: 3, RiskLevel: 3},
			{ID: "odds_4", Text: "Over 3.50 (long shots)", Value: 4, RiskLevel: 4},
		},
	},
	{
		ID: 6, Text: "Which sport do you bet on most?", Category: "sport", Weight: 1.0,
		Options: []Option{
			{ID: "sport_1", Text: "Football", Value: 1, RiskLevel: 2},
			{ID: "sport_2", Text: "Basketball", Value: 2, RiskLevel: 2},
			{ID: "sport_3", Text: "Tennis", Value: 3, RiskLevel: 2},
			{ID: "sport_4", Text: "Various sports", Value: 4, RiskLevel: 3},
		},
	},
}

// ScoreQuiz classifies a complete set of answers. rnd adds up to 10 points
// of jitter per style; nil disables it.
func ScoreQuiz(answers []Answer, rnd *Random, now time.Time) (Profile, error) {
	if len(answers) != len(Questions) {
		return Profile{}, ErrIncompleteQuiz
	}

	var weighted, totalWeight float64
	var totalRisk int
	seen := make(map[int]bool, len(answers))

	for _, a := range answers {
		q, opt, err := lookup(a)
		if err != nil {
			return Profile{}, err
		}
		if seen[q.ID] {
			return Profile{}, fmt.Errorf("%w: question %d answered twice", ErrIncompleteQuiz, q.ID)
		}
		seen[q.ID] = true

		weighted += float64(opt.Value) * q.Weight
		totalWeight += q.Weight
		totalRisk += opt.RiskLevel
	}

	avgScore := weighted / totalWeight
	avgRisk := float64(totalRisk) / float64(len(answers))

	scores := make(map[Style]float64, len(Styles))
	for _, s := range Styles {
		jitter := 0.0
		if rnd != nil {
			jitter = rnd.Float64() * 10
		}
		scores[s] = clamp(styleScore(s, avgScore, avgRisk)+jitter, 0, 100)
	}

	style := dominant(scores)

	return Profile{
		Style:       style,
		Scores:      scores,
		Confidence:  confidence(scores, style),
		CompletedAt: now,
	}, nil
}

func lookup(a Answer) (Question, Option, error) {
	for _, q := range Questions {
		if q.ID != a.QuestionID {
			continue
		}
		for _, o := range q.Options {
			if o.ID == a.OptionID {
				return q, o, nil
			}
		}
		return Question{}, Option{}, fmt.Errorf("%w: option %q for question %d", ErrUnknownAnswer, a.OptionID, a.QuestionID)
	}
	return Question{}, Option{}, fmt.Errorf("%w: question %d", ErrUnknownAnswer, a.QuestionID)
}

func styleScore(s Style, avgScore, avgRisk float64) float64 {
	score := 0.0

	switch {
	case s == StyleConservative && avgRisk <= 2:
		score += 40
	case s == StyleBalanced && avgRisk >= 2 && avgRisk <= 3:
		score += 40
	case s == StyleHighRisk && avgRisk >= 3:
		score += 40
	case s == StyleStrategic && avgRisk >= 2 && avgRisk <= 3:
		score += 35
	case s == StyleRecreational:
		score += 30
	}

	switch {
	case s == StyleConservative && avgScore <= 2:
		score += 30
	case s == StyleBalanced && avgScore >= 2 && avgScore <= 3:
		score += 30
	case s == StyleHighRisk && avgScore >= 3:
		score += 30
	case s == StyleStrategic && avgScore >= 2.5 && avgScore <= 3.5:
		score += 35
	case s == StyleRecreational:
		score += 25
	}

	return score
}

// dominant returns the highest scoring style, balanced when all are zero
func dominant(scores map[Style]float64) Style {
	best, bestScore := StyleBalanced, 0.0
	for _, s := range Styles {
		if scores[s] > bestScore {
			best, bestScore = s, scores[s]
		}
	}
	return best
}

// confidence grows with the gap between the dominant score and the mean of
// the others, bounded to 60..95
func confidence(scores map[Style]float64, style Style) int {
	var others float64
	for _, s := range Styles {
		if s != style {
			others += scores[s]
		}
	}
	others /= float64(len(Styles) - 1)

	return int(math.Round(clamp(60+(scores[style]-others)*1.5, 60, 95)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
