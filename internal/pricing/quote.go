package pricing

import (
	"math"

	"github.com/xtding233/gacha-sim/internal/token"
)

// Quote prices a simulated spend in a store.
type Quote struct {
	P50 *Plan `json:"price_p50,omitempty"`
	P90 *Plan `json:"price_p90,omitempty"`

	// the most tokens a budget buys, and how many ten-draws they pull
	Budget         *Plan `json:"budget_plan,omitempty"`
	BudgetTenDraws *int  `json:"budget_ten_draws,omitempty"`
}

// QuoteSpend prices the median and 90th percentile token spend with first
// purchase bonuses applied. A percentile above MaxPlanTokens is left
// unpriced. A positive budgetCents also plans the most tokens it buys.
func QuoteSpend(cat Catalog, p50, p90 float64, budgetCents int, cur token.Token) (Quote, error) {
	var q Quote
	first := cat.Eligible()
	for _, pt := range []struct {
		spend float64
		out   **Plan
	}{{p50, &q.P50}, {p90, &q.P90}} {
		if pt.spend > MaxPlanTokens {
			continue
		}
		p, err := MinCostAtLeastTokens(cat, int(math.Ceil(pt.spend)), first)
		if err != nil {
			return Quote{}, err
		}
		*pt.out = &p
	}
	if budgetCents > 0 {
		p, err := MaxTokensUnderBudget(cat, budgetCents, first)
		if err != nil {
			return Quote{}, err
		}
		tens := cur.DrawsForTokens(p.TotalTokens) / 10
		q.Budget, q.BudgetTenDraws = &p, &tens
	}
	return q, nil
}
