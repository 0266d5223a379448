package subscription

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a billing period
type Plan string

const (
	PlanMonthly   Plan = "monthly"
	PlanQuarterly Plan = "quarterly"
	PlanYearly    Plan = "yearly"
)

// Currency of every plan price
const Currency = "BRL"

var prices = map[Plan]decimal.Decimal{
	PlanMonthly:   decimal.RequireFromString("29.90"),
	PlanQuarterly: decimal.RequireFromString("79.90"),
	PlanYearly:    decimal.RequireFromString("299.90"),
}

// ParsePlan validates a plan name
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, s)
	}
	return p, nil
}

func (p Plan) Valid() bool {
	_, ok := prices[p]
	return ok
}

// Extend adds one billing period to from
func (p Plan) Extend(from time.Time) time.Time {
	switch p {
	case PlanQuarterly:
		return from.AddDate(0, 3, 0)
	case PlanYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// Price of one billing period
func (p Plan) Price() decimal.Decimal {
	return prices[p]
}

// Plans lists every plan in ascending period order
func Plans() []Plan {
	return []Plan{PlanMonthly, PlanQuarterly, PlanYearly}
}
