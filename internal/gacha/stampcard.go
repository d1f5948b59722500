package gacha

import (
	"errors"
	"fmt"
	"strings"
)

// Rule is the guaranteed draw a stamp card threshold grants.
type Rule string

const (
	RuleFeaturedFiveStar   Rule = "guaranteed_featured_five_star_draw"
	RuleFiveStar           Rule = "guaranteed_five_star_draw"
	RuleFourStar           Rule = "guaranteed_four_star_draw"
	RuleNotDesiredFiveStar Rule = "guaranteed_not_desired_five_star_draw"
)

// Rules lists every supported stamp card rule.
var Rules = []Rule{RuleFeaturedFiveStar, RuleFiveStar, RuleFourStar, RuleNotDesiredFiveStar}

func (r Rule) valid() bool {
	for _, v := range Rules {
		if r == v {
			return true
		}
	}
	return false
}

// MaxStampCardValue is the number of stamps that completes a card.
const MaxStampCardValue = 12

var (
	ErrUnsupportedRule = errors.New("unsupported stamp card rule")
	ErrBadThreshold    = errors.New("stamp card threshold must be in (0,12]")
)

// CardEntry fires Rule once the card value reaches Threshold.
type CardEntry struct {
	Threshold int  `json:"position" yaml:"position"`
	Rule      Rule `json:"rule" yaml:"rule"`
}

// CardDef is one page of a banner's stamp card sequence.
type CardDef struct {
	Name    string      `json:"name" yaml:"name"`
	Entries []CardEntry `json:"entries" yaml:"entries"`
}

// StampCard is the card currently being filled.
type StampCard struct {
	Def   CardDef
	Value int // [0, 12)
}

// NewStampCard validates the card definition and starts it at zero.
// Every unsupported rule is reported, not only the first.
func NewStampCard(def CardDef) (*StampCard, error) {
	if err := ValidateCard(def); err != nil {
		return nil, err
	}
	return &StampCard{Def: def}, nil
}

// ValidateCard checks the rules and thresholds of a card definition.
func ValidateCard(def CardDef) error {
	var unsupported []string
	seen := map[Rule]bool{}
	for _, e := range def.Entries {
		if !e.Rule.valid() && !seen[e.Rule] {
			seen[e.Rule] = true
			unsupported = append(unsupported, string(e.Rule))
		}
	}
	if len(unsupported) > 0 {
		return fmt.Errorf("%w in card %q: %s", ErrUnsupportedRule, def.Name, strings.Join(unsupported, ", "))
	}
	for _, e := range def.Entries {
		if e.Threshold <= 0 || e.Threshold > MaxStampCardValue {
			return fmt.Errorf("%w: card %q has %d", ErrBadThreshold, def.Name, e.Threshold)
		}
	}
	return nil
}

// crossed returns the rules whose thresholds lie in (Value, to], in card order.
func (c *StampCard) crossed(to int) []Rule {
	var out []Rule
	for _, e := range c.Def.Entries {
		if c.Value < e.Threshold && e.Threshold <= to {
			out = append(out, e.Rule)
		}
	}
	return out
}
