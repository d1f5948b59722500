package token

// Token defines how many units of a currency are required per draw

type Token struct {
	Name       string `yaml:"name" json:"name"`                 // e.g. "Crystals"
	PerDraw    int    `yaml:"per_draw" json:"per_draw"`         // tokens per single draw, e.g. 300
	PerTenDraw int    `yaml:"per_ten_draw" json:"per_ten_draw"` // optional; if 0 -> equal to 10 * PerDraw
}

// Crystals is the premium currency spent on weapon banners.
var Crystals = Token{Name: "Crystals", PerDraw: 300, PerTenDraw: 3000}

// TokensForDraws returns how many tokens are required for n draws.
// Full ten-draws are charged at PerTenDraw, the rest at PerDraw.
func (t Token) TokensForDraws(n int) int {
	if n <= 0 {
		return 0
	}
	if t.PerTenDraw > 0 && n >= 10 {
		tens := n / 10
		rem := n % 10
		return tens*t.PerTenDraw + rem*t.PerDraw
	}
	return n * t.PerDraw
}

// DrawsForTokens is the inverse: how many draws n tokens buy when spent in
// ten-draws first.
func (t Token) DrawsForTokens(n int) int {
	if n <= 0 {
		return 0
	}
	draws := 0
	if t.PerTenDraw > 0 {
		draws = n / t.PerTenDraw * 10
		n %= t.PerTenDraw
	}
	if t.PerDraw > 0 {
		draws += n / t.PerDraw
	}
	return draws
}
