// resolve.go
package banner

import (
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-sim/internal/gacha"
	"github.com/xtding233/gacha-sim/internal/token"
)

// Overrides carries per-request changes applied after default → banner.
type Overrides struct {
	NonFeaturedRate *decimal.Decimal
	Weapons         []string
	PerTenDraw      *int
}

type Resolver interface {
	// Returns merged RawBanner and the normalized EngineParams
	Resolve(name string, o Overrides) (RawBanner, EngineParams, error)
}

var _ Resolver = (*Loader)(nil)

// Resolve merges default → banner → overrides, validates the result and
// converts it into engine types.
func (l *Loader) Resolve(name string, o Overrides) (RawBanner, EngineParams, error) {
	raw, err := l.LoadMerged(name)
	if err != nil {
		return RawBanner{}, EngineParams{}, err
	}
	raw = applyOverrides(raw, o)
	if err := ValidateRaw(raw); err != nil {
		return raw, EngineParams{}, err
	}
	return raw, Normalize(raw), nil
}

// All resolves every banner in the directory. The first invalid banner
// aborts the listing.
func (l *Loader) All() ([]EngineParams, error) {
	names, err := l.List()
	if err != nil {
		return nil, err
	}
	params := make([]EngineParams, 0, len(names))
	for _, n := range names {
		_, s, err := l.Resolve(n, Overrides{})
		if err != nil {
			return nil, err
		}
		params = append(params, s)
	}
	return params, nil
}

func applyOverrides(raw RawBanner, o Overrides) RawBanner {
	if o.NonFeaturedRate != nil {
		r := *o.NonFeaturedRate
		raw.NonFeaturedRate = &r
	}
	if len(o.Weapons) > 0 {
		raw.Weapons = append([]string(nil), o.Weapons...)
	}
	if o.PerTenDraw != nil {
		c := CurrencyConfig{}
		if raw.Currency != nil {
			c = *raw.Currency
		}
		c.PerTenDraw = o.PerTenDraw
		raw.Currency = &c
	}
	return raw
}

// Normalize converts a validated RawBanner. Missing currency fields fall
// back to crystals.
func Normalize(raw RawBanner) EngineParams {
	cur := token.Crystals
	if raw.Currency != nil {
		if raw.Currency.Name != "" {
			cur.Name = raw.Currency.Name
		}
		if raw.Currency.PerDraw != nil {
			cur.PerDraw = *raw.Currency.PerDraw
		}
		if raw.Currency.PerTenDraw != nil {
			cur.PerTenDraw = *raw.Currency.PerTenDraw
		}
	}
	var rate decimal.Decimal
	if raw.NonFeaturedRate != nil {
		rate = *raw.NonFeaturedRate
	}
	return EngineParams{
		Banner: gacha.Banner{
			Name:                    raw.Name,
			Weapons:                 append([]string(nil), raw.Weapons...),
			NonFeaturedFiveStarRate: rate,
			Cards:                   append([]gacha.CardDef(nil), raw.Cards...),
		},
		Title:      raw.Title,
		Characters: raw.Characters,
		Costumes:   raw.Costumes,
		EndDate:    raw.EndDate,
		Currency:   cur,
		Store:      raw.Store,
		Version:    raw.Version,
	}
}
