package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Both optimizers allocate tables proportional to their target, so the
// targets are bounded.
const (
	MaxPlanTokens  = 2_000_000
	MaxBudgetCents = 1_000_000
)

var ErrPlanTooLarge = errors.New("plan target too large")

// variant is a pack as it is bought: regular, or with the first-time x2 applied.
type variant struct {
	id, name   string
	tok, price int
}

// expand builds the effective variants of a catalog. Regular variants may be
// bought any number of times; first-time variants at most once each.
func expand(cat Catalog, first FirstTimeState) (regular, once []variant) {
	for _, p := range cat.Packs {
		if p.FirstTimeX2 && first[p.ID] {
			// x2 applies to base Tokens only
			once = append(once, variant{p.ID + "#x2", p.Name + " (x2)", p.Tokens*2 + p.BonusTokens, p.PriceCents})
		}
		regular = append(regular, variant{p.ID, p.Name, p.Tokens + p.BonusTokens, p.PriceCents})
	}
	return regular, once
}

// maxFirstTime caps how many first-time packs take part in the subset search.
const maxFirstTime = 12

// subsets calls fn for every subset of the first-time variants.
func subsets(once []variant, fn func(mask, tok, price int)) {
	n := min(len(once), maxFirstTime)
	for mask := 0; mask < 1<<n; mask++ {
		tok, price := 0, 0
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				tok += once[i].tok
				price += once[i].price
			}
		}
		fn(mask, tok, price)
	}
}

func addSubset(counts map[variant]int, once []variant, mask int) {
	for i := 0; i < min(len(once), maxFirstTime); i++ {
		if mask&(1<<i) != 0 {
			counts[once[i]]++
		}
	}
}

// MinCostAtLeastTokens finds the minimum-cost combination to obtain at least targetTokens.
// Every subset of the available first-time x2 packs is tried on top of an
// unbounded knapsack over the regular packs.
func MinCostAtLeastTokens(cat Catalog, targetTokens int, first FirstTimeState) (Plan, error) {
	if targetTokens > MaxPlanTokens {
		return Plan{}, fmt.Errorf("%w: %d tokens, max %d", ErrPlanTooLarge, targetTokens, MaxPlanTokens)
	}
	if targetTokens <= 0 || len(cat.Packs) == 0 {
		return Plan{Currency: cat.Currency}, nil
	}
	regular, once := expand(cat, first)

	maxTok := 0
	for _, v := range regular {
		maxTok = max(maxTok, v.tok)
	}
	if maxTok == 0 {
		return Plan{Currency: cat.Currency}, nil
	}
	// allow overshoot by one pack; the last slot means "limit or more"
	limit := targetTokens + maxTok

	const inf = math.MaxInt
	dp := make([]int, limit+1)   // min cost to reach exactly t tokens
	pr := make([]int, limit+1)   // chosen variant index
	prev := make([]int, limit+1) // previous t
	for t := range dp {
		dp[t], pr[t], prev[t] = inf, -1, -1
	}
	dp[0] = 0
	for t := 0; t <= limit; t++ {
		if dp[t] == inf {
			continue
		}
		for i, v := range regular {
			nt := min(t+v.tok, limit)
			if cost := dp[t] + v.price; cost < dp[nt] {
				dp[nt], pr[nt], prev[nt] = cost, i, t
			}
		}
	}

	// cheapest exact total at or above t
	best := make([]int, limit+2)
	bestAt := make([]int, limit+2)
	best[limit+1], bestAt[limit+1] = inf, -1
	for t := limit; t >= 0; t-- {
		best[t], bestAt[t] = dp[t], t
		if best[t+1] < best[t] {
			best[t], bestAt[t] = best[t+1], bestAt[t+1]
		}
	}

	bestCost, bestMask, bestT := inf, 0, -1
	subsets(once, func(mask, tok, price int) {
		need := max(targetTokens-tok, 0)
		if best[need] == inf {
			return
		}
		if c := price + best[need]; c < bestCost {
			bestCost, bestMask, bestT = c, mask, bestAt[need]
		}
	})
	if bestT < 0 {
		return Plan{Currency: cat.Currency}, nil
	}

	counts := map[variant]int{}
	addSubset(counts, once, bestMask)
	for t := bestT; t > 0 && pr[t] != -1; t = prev[t] {
		counts[regular[pr[t]]]++
	}
	return buildPlan(cat, counts), nil
}

// MaxTokensUnderBudget computes the maximum tokens purchasable with budgetCents,
// tax included.
func MaxTokensUnderBudget(cat Catalog, budgetCents int, first FirstTimeState) (Plan, error) {
	if budgetCents > MaxBudgetCents {
		return Plan{}, fmt.Errorf("%w: budget %d cents, max %d", ErrPlanTooLarge, budgetCents, MaxBudgetCents)
	}
	if budgetCents <= 0 || len(cat.Packs) == 0 {
		return Plan{Currency: cat.Currency}, nil
	}
	regular, once := expand(cat, first)
	effBudget := pretaxBudget(budgetCents, cat.TaxRate)

	// dp[c] = max tokens with cost exactly c
	dp := make([]int, effBudget+1)
	choose := make([]int, effBudget+1)
	for c := range choose {
		choose[c] = -1
	}
	for c := 0; c <= effBudget; c++ {
		for i, v := range regular {
			if nc := c + v.price; nc <= effBudget {
				if val := dp[c] + v.tok; val > dp[nc] {
					dp[nc], choose[nc] = val, i
				}
			}
		}
	}
	// best at any cost <= c
	bestAt := make([]int, effBudget+1)
	for c := 1; c <= effBudget; c++ {
		bestAt[c] = bestAt[c-1]
		if dp[c] > dp[bestAt[c]] {
			bestAt[c] = c
		}
	}

	bestTok, bestMask, bestC := -1, 0, 0
	subsets(once, func(mask, tok, price int) {
		if price > effBudget {
			return
		}
		c := bestAt[effBudget-price]
		if total := tok + dp[c]; total > bestTok {
			bestTok, bestMask, bestC = total, mask, c
		}
	})

	counts := map[variant]int{}
	addSubset(counts, once, bestMask)
	for c := bestC; c > 0 && choose[c] != -1; c -= regular[choose[c]].price {
		counts[regular[choose[c]]]++
	}
	return buildPlan(cat, counts), nil
}

// buildPlan turns chosen variants into line items ordered by pack id.
func buildPlan(cat Catalog, counts map[variant]int) Plan {
	plan := Plan{Currency: cat.Currency}
	for v, qty := range counts {
		sub := v.price * qty
		plan.Purchases = append(plan.Purchases, Purchase{
			PackID:     v.id,
			Name:       v.name,
			Qty:        qty,
			UnitPrice:  v.price,
			UnitTokens: v.tok,
			Subtotal:   sub,
		})
		plan.SubCents += sub
		plan.TotalTokens += v.tok * qty
	}
	sort.Slice(plan.Purchases, func(i, j int) bool {
		return plan.Purchases[i].PackID < plan.Purchases[j].PackID
	})
	plan.TaxCents, plan.TotalCents = applyTax(plan.SubCents, cat.TaxRate)
	return plan
}
