package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pack models a purchasable crystal bundle in the store.
type Pack struct {
	ID          string `yaml:"id" json:"id"`                       // SKU id, e.g., "crystals_3150"
	Name        string `yaml:"name" json:"name"`                   // display name
	Tokens      int    `yaml:"tokens" json:"tokens"`               // base crystals granted
	BonusTokens int    `yaml:"bonus_tokens" json:"bonus_tokens"`   // permanent extra crystals
	FirstTimeX2 bool   `yaml:"first_time_x2" json:"first_time_x2"` // first purchase doubles Tokens (not BonusTokens)
	PriceCents  int    `yaml:"price_cents" json:"price_cents"`     // price in minor units
}

// Catalog is a regional crystal store and its tax rate.
// If prices are tax-inclusive, set TaxRate to zero.
type Catalog struct {
	TokenName string          `yaml:"token_name" json:"token_name"`
	Currency  string          `yaml:"currency" json:"currency"` // ISO code, e.g., "USD"
	TaxRate   decimal.Decimal `yaml:"tax_rate" json:"tax_rate"` // e.g., 0.13 for 13%
	Packs     []Pack          `yaml:"packs" json:"packs"`
}

// FirstTimeState describes per-pack first-time eligibility.
type FirstTimeState map[string]bool // packID -> true if first-time x2 is still available

// Eligible marks every first-time pack of the catalog as still available.
func (c Catalog) Eligible() FirstTimeState {
	st := FirstTimeState{}
	for _, p := range c.Packs {
		if p.FirstTimeX2 {
			st[p.ID] = true
		}
	}
	return st
}

var ErrBadCatalog = errors.New("invalid store catalog")

// Validate collects every problem with the catalog.
func (c Catalog) Validate() error {
	var errs []string
	if c.TaxRate.IsNegative() {
		errs = append(errs, "tax_rate must be >= 0")
	}
	seen := map[string]bool{}
	for i, p := range c.Packs {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("packs[%d].id is required", i))
		} else if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("packs[%d].id %q is duplicated", i, p.ID))
		}
		seen[p.ID] = true
		if p.Tokens+p.BonusTokens <= 0 {
			errs = append(errs, fmt.Sprintf("packs[%d] grants no %s", i, c.tokenName()))
		}
		if p.PriceCents <= 0 {
			errs = append(errs, fmt.Sprintf("packs[%d].price_cents must be > 0", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrBadCatalog, strings.Join(errs, "; "))
	}
	return nil
}

func (c Catalog) tokenName() string {
	if c.TokenName == "" {
		return "tokens"
	}
	return c.TokenName
}

// Plan summarizes a purchase plan.
type Plan struct {
	Purchases   []Purchase `json:"purchases"`
	SubCents    int        `json:"sub_cents"` // subtotal before tax
	TaxCents    int        `json:"tax_cents"`
	TotalCents  int        `json:"total_cents"`
	TotalTokens int        `json:"total_tokens"`
	Currency    string     `json:"currency"`
}

// Purchase is one line item in the plan.
type Purchase struct {
	PackID     string `json:"pack_id"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	UnitPrice  int    `json:"unit_price"`  // cents
	UnitTokens int    `json:"unit_tokens"` // tokens received per unit in this plan (x2/bonus applied)
	Subtotal   int    `json:"subtotal"`    // cents
}

// applyTax computes tax and total given a subtotal and a tax rate.
// Tax is rounded half away from zero to whole cents.
func applyTax(sub int, taxRate decimal.Decimal) (tax int, total int) {
	if !taxRate.IsPositive() {
		return 0, sub
	}
	t := int(decimal.NewFromInt(int64(sub)).Mul(taxRate).Round(0).IntPart())
	return t, sub + t
}

// pretaxBudget is the largest subtotal whose taxed total fits in budget.
func pretaxBudget(budget int, taxRate decimal.Decimal) int {
	if !taxRate.IsPositive() {
		return budget
	}
	b := int(decimal.NewFromInt(int64(budget)).DivRound(taxRate.Add(decimal.NewFromInt(1)), 8).Floor().IntPart())
	// rounding may leave room for one more cent either way
	for {
		if _, total := applyTax(b+1, taxRate); total > budget {
			break
		}
		b++
	}
	for b > 0 {
		if _, total := applyTax(b, taxRate); total <= budget {
			break
		}
		b--
	}
	return b
}
