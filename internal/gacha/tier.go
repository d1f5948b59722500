package gacha

// Tier is the outcome of resolving one draw.
type Tier int

const (
	TargetedFiveStar Tier = iota
	NonTargetedFeaturedFiveStar
	NonTargetedFiveStar
	TargetedFourStar
	NonTargetedFeaturedFourStar
	NonTargetedFourStar
	TargetedThreeStar
	NonTargetedFeaturedThreeStar
	NonTargetedThreeStar
)

// Tiers lists every outcome tier in resolution order.
var Tiers = []Tier{
	TargetedFiveStar,
	NonTargetedFeaturedFiveStar,
	NonTargetedFiveStar,
	TargetedFourStar,
	NonTargetedFeaturedFourStar,
	NonTargetedFourStar,
	TargetedThreeStar,
	NonTargetedFeaturedThreeStar,
	NonTargetedThreeStar,
}

var tierNames = [...]string{
	TargetedFiveStar:             "targeted_five_star",
	NonTargetedFeaturedFiveStar:  "nontargeted_featured_five_star",
	NonTargetedFiveStar:          "nontargeted_five_star",
	TargetedFourStar:             "targeted_four_star",
	NonTargetedFeaturedFourStar:  "nontargeted_featured_four_star",
	NonTargetedFourStar:          "nontargeted_four_star",
	TargetedThreeStar:            "targeted_three_star",
	NonTargetedFeaturedThreeStar: "nontargeted_featured_three_star",
	NonTargetedThreeStar:         "nontargeted_three_star",
}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return "unknown"
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Weapon parts granted for the targeted weapon per draw.
const (
	PartsFiveStar  = 200
	PartsFourStar  = 10
	PartsThreeStar = 1
)

// WeaponParts converts a draw outcome into weapon parts for the targeted weapon.
func WeaponParts(t Tier) int {
	switch t {
	case TargetedFiveStar:
		return PartsFiveStar
	case TargetedFourStar:
		return PartsFourStar
	case TargetedThreeStar:
		return PartsThreeStar
	default:
		return 0
	}
}
