// types.go
package banner

import (
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-sim/internal/gacha"
	"github.com/xtding233/gacha-sim/internal/pricing"
	"github.com/xtding233/gacha-sim/internal/token"
)

// RawBanner is one banner file as read from YAML. default.yaml shares the
// schema; empty fields inherit from it.
type RawBanner struct {
	Version string `yaml:"version,omitempty"`
	Name    string `yaml:"name,omitempty"`
	Title   string `yaml:"title,omitempty"`

	Characters      []string         `yaml:"characters,omitempty"`
	Weapons         []string         `yaml:"weapons,omitempty"` // featured weapons, one or two
	Costumes        []string         `yaml:"costumes,omitempty"`
	EndDate         string           `yaml:"end_date,omitempty"`
	NonFeaturedRate *decimal.Decimal `yaml:"non_featured_five_star_rate,omitempty"`

	Cards    []gacha.CardDef  `yaml:"stamp_cards,omitempty"`
	Currency *CurrencyConfig  `yaml:"currency,omitempty"`
	Store    *pricing.Catalog `yaml:"store,omitempty"`
	Notes    string           `yaml:"notes,omitempty"`
}

type CurrencyConfig struct {
	Name       string `yaml:"name,omitempty"`
	PerDraw    *int   `yaml:"per_draw"`
	PerTenDraw *int   `yaml:"per_ten_draw"`
}

// EngineParams is a merged, validated banner ready for the engine.
type EngineParams struct {
	Banner     gacha.Banner     `json:"banner"`
	Title      string           `json:"title,omitempty"`
	Characters []string         `json:"characters,omitempty"`
	Costumes   []string         `json:"costumes,omitempty"`
	EndDate    string           `json:"end_date,omitempty"`
	Currency   token.Token      `json:"currency"`
	Store      *pricing.Catalog `json:"store,omitempty"`
	Version    string           `json:"version,omitempty"` // effective config version for tracing
}
