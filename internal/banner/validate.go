package banner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xtding233/gacha-sim/internal/gacha"
)

var ErrInvalid = errors.New("banner validation failed")

// ValidateRaw checks semantic constraints of a merged RawBanner and reports
// every problem at once.
func ValidateRaw(cfg RawBanner) error {
	var errs []string

	if cfg.Name == "" {
		errs = append(errs, "name is required")
	}

	// weapons
	switch n := len(cfg.Weapons); {
	case n == 0:
		errs = append(errs, "weapons is required")
	case n > 2:
		errs = append(errs, fmt.Sprintf("weapons must list 1 or 2 featured weapons, got %d", n))
	}
	for i, w := range cfg.Weapons {
		if strings.TrimSpace(w) == "" {
			errs = append(errs, fmt.Sprintf("weapons[%d] is empty", i))
		}
	}

	// non_featured_five_star_rate
	if cfg.NonFeaturedRate == nil {
		errs = append(errs, "non_featured_five_star_rate is required")
	} else if r := *cfg.NonFeaturedRate; !r.IsPositive() || !r.LessThan(gacha.Overall.FiveStar) {
		errs = append(errs, fmt.Sprintf("non_featured_five_star_rate must be in (0,%s)", gacha.Overall.FiveStar))
	}

	// stamp_cards
	if len(cfg.Cards) == 0 {
		errs = append(errs, "stamp_cards is required")
	}
	for i, def := range cfg.Cards {
		if def.Name == "" {
			errs = append(errs, fmt.Sprintf("stamp_cards[%d].name is required", i))
		}
		if err := gacha.ValidateCard(def); err != nil {
			errs = append(errs, fmt.Sprintf("stamp_cards[%d]: %v", i, err))
		}
	}

	// currency (optional)
	if cfg.Currency != nil {
		if cfg.Currency.PerDraw != nil && *cfg.Currency.PerDraw <= 0 {
			errs = append(errs, "currency.per_draw must be > 0")
		}
		if cfg.Currency.PerTenDraw != nil && *cfg.Currency.PerTenDraw < 0 {
			errs = append(errs, "currency.per_ten_draw must be >= 0")
		}
	}

	// store (optional)
	if cfg.Store != nil {
		if err := cfg.Store.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("store: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}
