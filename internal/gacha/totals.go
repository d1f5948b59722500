package gacha

// TrialMetadata echoes the inputs of a trial for traceability.
type TrialMetadata struct {
	Criterion     Criterion  `json:"session_criterion"`
	Threshold     int        `json:"criterion_value"`
	Banner        string     `json:"banner"`
	NumFeatured   int        `json:"num_featured"`
	Mode          TargetMode `json:"target_weapon_type"`
	StartingParts int        `json:"starting_weapon_parts"`
	TargetRates   Rates      `json:"target_weapon_rates"`
}

// Totals is the running record of a session and, once it terminates, the
// output of the trial.
type Totals struct {
	WeaponParts   int `json:"targeted_weapon_parts"`
	StampsEarned  int `json:"total_stamps_earned"`
	CrystalsSpent int `json:"num_crystals_spent"`
	TenDraws      int `json:"ten_draws"`

	TargetedFiveStars             int `json:"targeted_five_stars_drawn"`
	TargetedFourStars             int `json:"targeted_four_stars_drawn"`
	TargetedThreeStars            int `json:"targeted_three_stars_drawn"`
	NonTargetedFeaturedFiveStars  int `json:"nontargeted_featured_five_stars_drawn"`
	NonTargetedFeaturedFourStars  int `json:"nontargeted_featured_four_stars_drawn"`
	NonTargetedFeaturedThreeStars int `json:"nontargeted_featured_three_stars_drawn"`
	NonTargetedFiveStars          int `json:"nontargeted_five_stars_drawn"`
	NonTargetedFourStars          int `json:"nontargeted_four_stars_drawn"`
	NonTargetedThreeStars         int `json:"nontargeted_three_stars_drawn"`

	Metadata TrialMetadata `json:"metadata"`
}

// counter returns the per-tier field for t.
func (t *Totals) counter(tier Tier) *int {
	switch tier {
	case TargetedFiveStar:
		return &t.TargetedFiveStars
	case TargetedFourStar:
		return &t.TargetedFourStars
	case TargetedThreeStar:
		return &t.TargetedThreeStars
	case NonTargetedFeaturedFiveStar:
		return &t.NonTargetedFeaturedFiveStars
	case NonTargetedFeaturedFourStar:
		return &t.NonTargetedFeaturedFourStars
	case NonTargetedFeaturedThreeStar:
		return &t.NonTargetedFeaturedThreeStars
	case NonTargetedFiveStar:
		return &t.NonTargetedFiveStars
	case NonTargetedFourStar:
		return &t.NonTargetedFourStars
	default:
		return &t.NonTargetedThreeStars
	}
}

// Record counts one outcome and its weapon parts.
func (t *Totals) Record(tier Tier) {
	*t.counter(tier)++
	t.WeaponParts += WeaponParts(tier)
}

// Count returns how many draws landed on tier.
func (t Totals) Count(tier Tier) int {
	return *t.counter(tier)
}

// Draws is the total number of resolved outcomes.
func (t Totals) Draws() int {
	n := 0
	for _, tier := range Tiers {
		n += t.Count(tier)
	}
	return n
}

// OverboostLevel reached with the current weapon parts; -1 means the weapon
// itself has not been obtained yet.
func (t Totals) OverboostLevel() int {
	return OverboostLevel(t.WeaponParts)
}

// OverboostLevel converts weapon parts into an overboost level:
// floor(parts / 200) - 1.
func OverboostLevel(parts int) int {
	return parts/PartsPerOverboost - 1
}
