package gacha

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/big"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// RandomSource abstract

type RandomSource interface {
	Float64() float64 // [0, 1)
	IntN(n int) int   // [0, n)
}

// crypto random : default generation method
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	// Read 53bit random => [0, 1)
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// backto math / rand/ v2
		return rand.Float64()
	}

	// max 53
	u := binary.BigEndian.Uint64(buf[:]) >> 11 // 53 bits
	return float64(u) / (1 << 53)
}

func (cryptoRNG) IntN(n int) int {
	v, err := cryptoRand.Int(cryptoRand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return rand.IntN(n)
	}
	return int(v.Int64())
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

// Replicable RNG (e.g. Monte Carlo)
type seededRNG struct{ r *rand.Rand }

func NewSeededRNG(seed uint64) RandomSource {
	return NewStreamRNG(seed, 0)
}

// NewStreamRNG returns an independent PCG stream; trials of one run share
// the seed and use their index as the stream.
func NewStreamRNG(seed, stream uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, stream))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

func (s *seededRNG) IntN(n int) int { return s.r.IntN(n) }

// Sample draws a uniform decimal in [0, 1).
func Sample(rng RandomSource) decimal.Decimal {
	return decimal.NewFromFloat(rng.Float64())
}

// Uniform draws a decimal in [lo, hi). The scaling is exact, so the result
// never reaches hi.
func Uniform(rng RandomSource, lo, hi decimal.Decimal) decimal.Decimal {
	return lo.Add(hi.Sub(lo).Mul(Sample(rng)))
}
