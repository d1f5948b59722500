package gacha

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// TargetMode selects which weapon the player is pulling for.
type TargetMode string

const (
	// the featured weapon (or one of two featured weapons) of the banner
	TargetFeatured TargetMode = "featured"
	// an arbitrary weapon from the general pool, drawn at the non-featured rate
	TargetWishlisted TargetMode = "wishlisted"
)

var (
	ErrUnsupportedMode     = errors.New("unsupported target mode; must be featured or wishlisted")
	ErrUnsupportedFeatured = errors.New("unsupported number of featured weapons; must be 1 or 2")
)

// divPlaces is the number of decimal places kept after a division.
// Every rate in (0,1) keeps at least 16 significant digits.
const divPlaces = 20

// Rates holds one probability per rarity tier.
// GuaranteedFourStar is the four-star rate rescaled so that it absorbs the
// three-star mass on a guaranteed four-star draw.
type Rates struct {
	FiveStar           decimal.Decimal `json:"five_star"`
	FourStar           decimal.Decimal `json:"four_star"`
	GuaranteedFourStar decimal.Decimal `json:"guaranteed_four_star"`
	ThreeStar          decimal.Decimal `json:"three_star"`
}

// Half returns every rate divided by two. Exact, no rounding.
func (r Rates) Half() Rates {
	h := decimal.RequireFromString("0.5")
	return Rates{
		FiveStar:           r.FiveStar.Mul(h),
		FourStar:           r.FourStar.Mul(h),
		GuaranteedFourStar: r.GuaranteedFourStar.Mul(h),
		ThreeStar:          r.ThreeStar.Mul(h),
	}
}

var (
	// Overall rarity rates of every draw, regardless of banner.
	Overall = Rates{
		FiveStar:           decimal.RequireFromString("0.075"),
		FourStar:           decimal.RequireFromString("0.225"),
		GuaranteedFourStar: decimal.RequireFromString("0.925"),
		ThreeStar:          decimal.RequireFromString("0.70"),
	}

	// Game-balance constants published for the featured weapon of a one
	// weapon banner. They are externally sourced and may change with the game.
	OneFeaturedRates = Rates{
		FiveStar:           decimal.RequireFromString("0.01"),
		FourStar:           decimal.RequireFromString("0.10"),
		GuaranteedFourStar: rescaleFourStar(decimal.RequireFromString("0.10")),
		ThreeStar:          decimal.RequireFromString("0.20"),
	}

	// Two featured weapons split the featured budget evenly.
	TwoFeaturedRates = OneFeaturedRates.Half()

	// total featured four/three star share removed from the general pool
	featuredFourStarShare  = decimal.RequireFromString("0.10")
	featuredThreeStarShare = decimal.RequireFromString("0.20")

	wishlistedFiveStar = map[int]decimal.Decimal{
		1: decimal.RequireFromString("0.01"),
		2: decimal.RequireFromString("0.008"),
	}
)

// rescaleFourStar folds the three-star pool into a four-star rate while
// keeping its share of four-star-or-better draws.
func rescaleFourStar(fourStar decimal.Decimal) decimal.Decimal {
	return fourStar.Mul(Overall.FourStar.Add(Overall.ThreeStar)).DivRound(Overall.FourStar, divPlaces)
}

// RateModel is the pair of overall and target rates used for one banner.
type RateModel struct {
	Overall     Rates      `json:"overall"`
	Target      Rates      `json:"target"`
	Mode        TargetMode `json:"target_mode"`
	NumFeatured int        `json:"num_featured"`
}

// BannerWeaponCount estimates how many weapons the banner pool holds from the
// non-featured five star rate: round(1.5 / rate) + 5 + numFeatured.
func BannerWeaponCount(numFeatured int, nonFeaturedRate decimal.Decimal) decimal.Decimal {
	pool := decimal.RequireFromString("1.5").DivRound(nonFeaturedRate, divPlaces).RoundBank(0)
	return pool.Add(decimal.NewFromInt(5)).Add(decimal.NewFromInt(int64(numFeatured)))
}

// ComputeTargetRates builds the RateModel for a banner.
func ComputeTargetRates(numFeatured int, mode TargetMode, nonFeaturedRate decimal.Decimal) (RateModel, error) {
	if numFeatured != 1 && numFeatured != 2 {
		return RateModel{}, fmt.Errorf("%w: got %d", ErrUnsupportedFeatured, numFeatured)
	}
	if err := validateRate(nonFeaturedRate); err != nil {
		return RateModel{}, fmt.Errorf("non featured five star rate: %w", err)
	}

	m := RateModel{Overall: Overall, Mode: mode, NumFeatured: numFeatured}
	switch mode {
	case TargetWishlisted:
		others := BannerWeaponCount(numFeatured, nonFeaturedRate).Sub(decimal.NewFromInt(int64(numFeatured)))
		four := Overall.FourStar.Sub(featuredFourStarShare).DivRound(others, divPlaces)
		m.Target = Rates{
			FiveStar:           wishlistedFiveStar[numFeatured],
			FourStar:           four,
			GuaranteedFourStar: rescaleFourStar(four),
			ThreeStar:          Overall.ThreeStar.Sub(featuredThreeStarShare).DivRound(others, divPlaces),
		}
	case TargetFeatured:
		if numFeatured == 1 {
			m.Target = OneFeaturedRates
		} else {
			m.Target = TwoFeaturedRates
		}
	default:
		return RateModel{}, fmt.Errorf("%w: got %q", ErrUnsupportedMode, mode)
	}
	return m, nil
}

// usesFeaturedTiers reports whether draws distinguish the co-featured weapon
// from the general pool.
func (m RateModel) usesFeaturedTiers() bool {
	return m.NumFeatured == 2 && m.Mode == TargetFeatured
}
