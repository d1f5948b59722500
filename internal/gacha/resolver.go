package gacha

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrSampleOutOfRange = errors.New("sample out of range; must be in [0,1)")
	ErrBadPartition     = errors.New("intervals do not tile [0,1)")
)

// Interval maps [Lo, Hi) to one outcome tier.
type Interval struct {
	Lo   decimal.Decimal
	Hi   decimal.Decimal
	Tier Tier
}

// Table is an ordered set of contiguous intervals.
type Table []Interval

type segment struct {
	width decimal.Decimal
	tier  Tier
}

// buildTable chains intervals from running sums of segment widths. The last
// interval always closes at exactly 1.
func buildTable(segs []segment) Table {
	t := make(Table, 0, len(segs))
	lo := decimal.Zero
	for i, s := range segs {
		hi := lo.Add(s.width)
		if i == len(segs)-1 {
			hi = decimal.NewFromInt(1)
		}
		t = append(t, Interval{Lo: lo, Hi: hi, Tier: s.tier})
		lo = hi
	}
	return t
}

// Check verifies that the table starts at 0, ends at 1, has no gaps or
// overlaps and that every boundary increases.
func (t Table) Check() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty table", ErrBadPartition)
	}
	if !t[0].Lo.IsZero() {
		return fmt.Errorf("%w: starts at %s", ErrBadPartition, t[0].Lo)
	}
	for i, iv := range t {
		if !iv.Hi.GreaterThan(iv.Lo) {
			return fmt.Errorf("%w: %s interval [%s,%s) is empty", ErrBadPartition, iv.Tier, iv.Lo, iv.Hi)
		}
		if i > 0 && !iv.Lo.Equal(t[i-1].Hi) {
			return fmt.Errorf("%w: gap before %s", ErrBadPartition, iv.Tier)
		}
	}
	if last := t[len(t)-1].Hi; !last.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: ends at %s", ErrBadPartition, last)
	}
	return nil
}

// Width sums the interval widths.
func (t Table) Width() decimal.Decimal {
	sum := decimal.Zero
	for _, iv := range t {
		sum = sum.Add(iv.Hi.Sub(iv.Lo))
	}
	return sum
}

// Lookup returns the tier whose interval holds the sample.
func (t Table) Lookup(sample decimal.Decimal) (Tier, error) {
	if sample.IsNegative() || sample.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("%w: got %s", ErrSampleOutOfRange, sample)
	}
	// first interval whose upper bound is above the sample
	i := sort.Search(len(t), func(i int) bool { return sample.LessThan(t[i].Hi) })
	return t[i].Tier, nil
}

// Resolver turns samples into outcome tiers for one rate model.
// It is immutable and safe for concurrent use.
type Resolver struct {
	model      RateModel
	standard   Table
	fourOrMore Table // three star mass folded into four star
}

// NewResolver builds both interval tables for a rate model.
func NewResolver(m RateModel) (*Resolver, error) {
	o, t := m.Overall, m.Target
	featured := m.usesFeaturedTiers()

	five := rarity(t.FiveStar, o.FiveStar, featured, TargetedFiveStar, NonTargetedFeaturedFiveStar, NonTargetedFiveStar)
	four := rarity(t.FourStar, o.FourStar, featured, TargetedFourStar, NonTargetedFeaturedFourStar, NonTargetedFourStar)
	three := rarity(t.ThreeStar, o.ThreeStar, featured, TargetedThreeStar, NonTargetedFeaturedThreeStar, NonTargetedThreeStar)
	// everything above the five star boundary goes to four star
	fourOrMore := rarity(t.GuaranteedFourStar, decimal.NewFromInt(1).Sub(o.FiveStar), featured,
		TargetedFourStar, NonTargetedFeaturedFourStar, NonTargetedFourStar)

	r := &Resolver{
		model:      m,
		standard:   buildTable(concat(five, four, three)),
		fourOrMore: buildTable(concat(five, fourOrMore)),
	}
	for _, tb := range []Table{r.standard, r.fourOrMore} {
		if err := tb.Check(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// rarity splits one rarity's total into the targeted weapon, the co-featured
// weapon (two featured banners only) and the rest of the pool.
func rarity(target, total decimal.Decimal, featured bool, targeted, cofeatured, rest Tier) []segment {
	segs := []segment{{width: target, tier: targeted}}
	remaining := total.Sub(target)
	if featured {
		segs = append(segs, segment{width: target, tier: cofeatured})
		remaining = remaining.Sub(target)
	}
	return append(segs, segment{width: remaining, tier: rest})
}

func concat(blocks ...[]segment) []segment {
	var out []segment
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// Model returns the rate model the resolver was built from.
func (r *Resolver) Model() RateModel { return r.model }

// Table returns the intervals used for standard or guaranteed four star draws.
func (r *Resolver) Table(guaranteedFourStar bool) Table {
	if guaranteedFourStar {
		return r.fourOrMore
	}
	return r.standard
}

// Resolve maps a sample in [0,1) to a tier. A sample on a boundary belongs
// to the interval it opens.
func (r *Resolver) Resolve(sample decimal.Decimal, guaranteedFourStar bool) (Tier, error) {
	return r.Table(guaranteedFourStar).Lookup(sample)
}

// GuaranteedFeaturedFiveStar draws a featured five star. With desired set
// (featured mode only) the targeted weapon is drawn; otherwise the draw lands
// on any five star that is not the target.
func (r *Resolver) GuaranteedFeaturedFiveStar(rng RandomSource, desired bool) (Tier, error) {
	if desired && r.model.Mode == TargetFeatured {
		return r.Resolve(Uniform(rng, decimal.Zero, r.model.Target.FiveStar), false)
	}
	return r.Resolve(Uniform(rng, r.model.Target.FiveStar, r.model.Overall.FiveStar), false)
}

// GuaranteedFiveStar draws any five star.
func (r *Resolver) GuaranteedFiveStar(rng RandomSource) (Tier, error) {
	return r.Resolve(Uniform(rng, decimal.Zero, r.model.Overall.FiveStar), false)
}

// GuaranteedFourStar draws four star or better.
func (r *Resolver) GuaranteedFourStar(rng RandomSource) (Tier, error) {
	return r.Resolve(Sample(rng), true)
}

// Draw performs one unconstrained draw.
func (r *Resolver) Draw(rng RandomSource) (Tier, error) {
	return r.Resolve(Sample(rng), false)
}

// DrawRule performs the guaranteed draw a stamp card rule grants.
func (r *Resolver) DrawRule(rule Rule, rng RandomSource) (Tier, error) {
	switch rule {
	case RuleFeaturedFiveStar:
		return r.GuaranteedFeaturedFiveStar(rng, true)
	case RuleNotDesiredFiveStar:
		return r.GuaranteedFeaturedFiveStar(rng, false)
	case RuleFiveStar:
		return r.GuaranteedFiveStar(rng)
	case RuleFourStar:
		return r.GuaranteedFourStar(rng)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedRule, rule)
	}
}
