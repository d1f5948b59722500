package gacha

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-sim/internal/token"
)

// Criterion selects when a pull session stops.
type Criterion string

const (
	// Pull until the targeted weapon reaches an overboost level (0..10).
	CriterionOverboost Criterion = "overboost"
	// Pull until a number of crystals has been spent.
	CriterionCrystalsSpent Criterion = "crystals_spent"
	// Pull until a number of stamps has been earned.
	CriterionStampsEarned Criterion = "stamps_earned"
)

const (
	// draws resolved per batch
	BatchSize = 10
	// weapon parts needed per overboost level
	PartsPerOverboost = 200
	MaxOverboost      = 10
)

var (
	ErrUnsupportedCriterion = errors.New("unsupported session criterion; must be overboost, crystals_spent or stamps_earned")
	ErrCriterionRange       = errors.New("criterion value out of range")
	ErrBadBanner            = errors.New("invalid banner")
	ErrBadStampValue        = errors.New("stamp value must be >= 1")
)

// Banner is the static data a session needs.
type Banner struct {
	Name                    string          `json:"name"`
	Weapons                 []string        `json:"weapons"` // featured weapons, one or two
	NonFeaturedFiveStarRate decimal.Decimal `json:"non_featured_five_star_percent_rate"`
	Cards                   []CardDef       `json:"stamp_cards"`
}

func (b Banner) NumFeatured() int { return len(b.Weapons) }

// TrialParams describes one simulated pull session.
type TrialParams struct {
	Criterion     Criterion
	Threshold     int
	Banner        Banner
	Mode          TargetMode
	StartingParts int

	RNG      RandomSource // nil => DefaultRNG
	Resolver *Resolver    // optional, shared across trials of the same banner
	Currency *token.Token // nil => token.Crystals
}

// Batch is one ten-draw.
type Batch struct {
	Rules       []Rule
	Outcomes    []Tier
	WeaponParts int
}

// Session is a single pull session: the stamp card state machine plus the
// running totals. It is not safe for concurrent use.
type Session struct {
	criterion Criterion
	threshold int
	resolver  *Resolver
	rng       RandomSource
	batchCost int

	cards     []CardDef
	index     int
	card      *StampCard
	completed []*StampCard
	pending   []Rule

	totals Totals
}

// NewSession validates the parameters and prepares the first stamp card.
// Every configuration error is reported here, before any draw happens.
func NewSession(p TrialParams) (*Session, error) {
	if len(p.Banner.Cards) == 0 {
		return nil, fmt.Errorf("%w: %q has no stamp cards", ErrBadBanner, p.Banner.Name)
	}
	for _, def := range p.Banner.Cards {
		if err := ValidateCard(def); err != nil {
			return nil, err
		}
	}
	if p.StartingParts < 0 {
		return nil, fmt.Errorf("%w: starting weapon parts must be >= 0", ErrCriterionRange)
	}

	resolver := p.Resolver
	if resolver == nil {
		model, err := ComputeTargetRates(p.Banner.NumFeatured(), p.Mode, p.Banner.NonFeaturedFiveStarRate)
		if err != nil {
			return nil, err
		}
		if resolver, err = NewResolver(model); err != nil {
			return nil, err
		}
	}

	currency := token.Crystals
	if p.Currency != nil {
		currency = *p.Currency
	}
	batchCost := currency.TokensForDraws(BatchSize)
	if batchCost <= 0 {
		return nil, fmt.Errorf("%w: %s ten-draw cost must be > 0, got %d", ErrCriterionRange, currency.Name, batchCost)
	}
	if err := validateCriterion(p.Criterion, p.Threshold, batchCost); err != nil {
		return nil, err
	}

	rng := p.RNG
	if rng == nil {
		rng = DefaultRNG()
	}
	card, err := NewStampCard(p.Banner.Cards[0])
	if err != nil {
		return nil, err
	}

	model := resolver.Model()
	return &Session{
		criterion: p.Criterion,
		threshold: p.Threshold,
		resolver:  resolver,
		rng:       rng,
		batchCost: batchCost,
		cards:     p.Banner.Cards,
		card:      card,
		totals: Totals{
			WeaponParts: p.StartingParts,
			Metadata: TrialMetadata{
				Criterion:     p.Criterion,
				Threshold:     p.Threshold,
				Banner:        p.Banner.Name,
				NumFeatured:   model.NumFeatured,
				Mode:          model.Mode,
				StartingParts: p.StartingParts,
				TargetRates:   model.Target,
			},
		},
	}, nil
}

func validateCriterion(c Criterion, v, batchCost int) error {
	switch c {
	case CriterionOverboost:
		if v < 0 || v > MaxOverboost {
			return fmt.Errorf("%w: overboost level must be in [0,%d], got %d", ErrCriterionRange, MaxOverboost, v)
		}
	case CriterionCrystalsSpent:
		if v < batchCost {
			return fmt.Errorf("%w: crystals_spent needs at least %d crystals, got %d", ErrCriterionRange, batchCost, v)
		}
	case CriterionStampsEarned:
		if v < 0 {
			return fmt.Errorf("%w: stamps_earned must be >= 0, got %d", ErrCriterionRange, v)
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnsupportedCriterion, c)
	}
	return nil
}

// stamp value table: uniform draw in 1..10000, bucket upper bounds inclusive
var stampBuckets = []struct{ upTo, value int }{
	{4500, 1}, // 45%
	{8000, 2}, // 35%
	{9592, 3}, // 15.92%
	{9794, 4}, // 2.02%
	{9944, 5}, // 1.50%
	{9999, 6}, // 0.55%
}

// StampValue maps a draw in 1..10000 to the stamps earned by a ten-draw.
// Anything outside 1..9999 earns a full card (12).
func StampValue(draw int) int {
	if draw >= 1 {
		for _, b := range stampBuckets {
			if draw <= b.upTo {
				return b.value
			}
		}
	}
	return MaxStampCardValue
}

// DrawStampValue draws the stamps for the next ten-draw.
func DrawStampValue(rng RandomSource) int {
	return StampValue(rng.IntN(10000) + 1)
}

// ProgressStep adds stamps to the active card and queues every rule whose
// threshold is crossed. Completing a card retires it and carries the
// overflow into the next one, scanning the new card from zero.
func (s *Session) ProgressStep(stamps int) error {
	if stamps < 1 {
		return fmt.Errorf("%w: got %d", ErrBadStampValue, stamps)
	}
	s.totals.StampsEarned += stamps

	value := s.card.Value + stamps
	for value >= MaxStampCardValue {
		s.pending = append(s.pending, s.card.crossed(value)...)
		s.nextCard()
		value -= MaxStampCardValue
	}
	s.pending = append(s.pending, s.card.crossed(value)...)
	s.card.Value = value
	return nil
}

// nextCard retires the active card. The last definition is reused forever.
func (s *Session) nextCard() {
	s.completed = append(s.completed, s.card)
	s.index++
	def := s.cards[min(s.index, len(s.cards)-1)]
	// definitions were validated in NewSession
	s.card = &StampCard{Def: def}
}

// RunBatch performs one ten-draw: queued rules first (FIFO), then plain
// draws until ten outcomes exist. Rules beyond ten wait for the next batch.
func (s *Session) RunBatch() (Batch, error) {
	n := min(len(s.pending), BatchSize)
	b := Batch{
		Rules:    append([]Rule(nil), s.pending[:n]...),
		Outcomes: make([]Tier, 0, BatchSize),
	}
	s.pending = append(s.pending[:0], s.pending[n:]...)

	for _, rule := range b.Rules {
		tier, err := s.resolver.DrawRule(rule, s.rng)
		if err != nil {
			return Batch{}, err
		}
		b.Outcomes = append(b.Outcomes, tier)
	}
	for len(b.Outcomes) < BatchSize {
		tier, err := s.resolver.Draw(s.rng)
		if err != nil {
			return Batch{}, err
		}
		b.Outcomes = append(b.Outcomes, tier)
	}

	for _, tier := range b.Outcomes {
		b.WeaponParts += WeaponParts(tier)
		s.totals.Record(tier)
	}
	s.totals.CrystalsSpent += s.batchCost
	s.totals.TenDraws++
	return b, nil
}

// Tick is one full cycle: earn stamps, then draw.
func (s *Session) Tick() error {
	if err := s.ProgressStep(DrawStampValue(s.rng)); err != nil {
		return err
	}
	_, err := s.RunBatch()
	return err
}

// Done reports whether the stopping criterion holds.
func (s *Session) Done() bool {
	switch s.criterion {
	case CriterionOverboost:
		return s.totals.WeaponParts >= (s.threshold+1)*PartsPerOverboost
	case CriterionCrystalsSpent:
		return s.totals.CrystalsSpent >= s.threshold
	default:
		return s.totals.StampsEarned >= s.threshold
	}
}

// ctxCheckBatches is how many batches run between context checks.
const ctxCheckBatches = 64

// Run ticks until the criterion holds and returns the final totals.
func (s *Session) Run() (Totals, error) {
	return s.RunContext(context.Background())
}

// RunContext is Run, stopping early with the context's error once ctx is done.
func (s *Session) RunContext(ctx context.Context) (Totals, error) {
	for n := 0; !s.Done(); n++ {
		if n%ctxCheckBatches == 0 {
			if err := ctx.Err(); err != nil {
				return s.totals, err
			}
		}
		if err := s.Tick(); err != nil {
			return s.totals, err
		}
	}
	return s.totals, nil
}

func (s *Session) Totals() Totals  { return s.totals }
func (s *Session) CardIndex() int  { return s.index }
func (s *Session) CardValue() int  { return s.card.Value }
func (s *Session) Pending() []Rule { return append([]Rule(nil), s.pending...) }
func (s *Session) BatchCost() int  { return s.batchCost }

// Completed lists the definitions of every retired card, oldest first.
func (s *Session) Completed() []CardDef {
	out := make([]CardDef, len(s.completed))
	for i, c := range s.completed {
		out[i] = c.Def
	}
	return out
}

// RunTrial runs one pull session to completion.
func RunTrial(p TrialParams) (Totals, error) {
	return RunTrialContext(context.Background(), p)
}

// RunTrialContext runs one pull session until it completes or ctx is done.
func RunTrialContext(ctx context.Context, p TrialParams) (Totals, error) {
	s, err := NewSession(p)
	if err != nil {
		return Totals{}, err
	}
	return s.RunContext(ctx)
}
