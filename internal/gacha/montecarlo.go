package gacha

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Stats summarizes one metric over all trials.
type Stats struct {
	Mean   float64 `json:"mean"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"stddev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
}

// calcStats computes mean/variance/percentiles for integer samples.
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	// variance (population)
	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}
	variance := acc / float64(n)

	cp := append([]int(nil), xs...)
	sort.Ints(cp)
	percentile := func(p float64) float64 {
		if n == 1 {
			return float64(cp[0])
		}
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i+1 >= n {
			return float64(cp[i])
		}
		return float64(cp[i])*(1-f) + float64(cp[i+1])*f
	}

	return Stats{
		Mean:   mean,
		Var:    variance,
		StdDev: math.Sqrt(variance),
		Min:    cp[0],
		Max:    cp[n-1],
		P50:    percentile(0.50),
		P90:    percentile(0.90),
		P99:    percentile(0.99),
	}
}

// Report is the result of a Monte Carlo run.
type Report struct {
	RunID     string        `json:"run_id"`
	Seed      uint64        `json:"seed"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`

	Criterion Criterion  `json:"session_criterion"`
	Threshold int        `json:"criterion_value"`
	Banner    string     `json:"banner"`
	Mode      TargetMode `json:"target_weapon_type"`

	CrystalsSpent Stats `json:"num_crystals_spent"`
	WeaponParts   Stats `json:"targeted_weapon_parts"`
	StampsEarned  Stats `json:"total_stamps_earned"`
	TenDraws      Stats `json:"ten_draws"`

	Trials []Totals `json:"trials,omitempty"`
}

// Summarize fills the per-metric stats from r.Trials.
func (r *Report) Summarize() {
	n := len(r.Trials)
	crystals, parts, stamps, draws := make([]int, n), make([]int, n), make([]int, n), make([]int, n)
	for i, t := range r.Trials {
		crystals[i] = t.CrystalsSpent
		parts[i] = t.WeaponParts
		stamps[i] = t.StampsEarned
		draws[i] = t.TenDraws
	}
	r.CrystalsSpent = calcStats(crystals)
	r.WeaponParts = calcStats(parts)
	r.StampsEarned = calcStats(stamps)
	r.TenDraws = calcStats(draws)
}

var ErrNoTrials = errors.New("number of trials must be >= 1")

// Runner repeats independent trials on a bounded worker pool.
type Runner struct {
	Params  TrialParams // RNG is ignored; every trial gets its own stream
	Trials  int
	Workers int     // <= 0 => 1
	Seed    *uint64 // nil => random seed

	Cache    *ResolverCache  // optional
	Clock    clockwork.Clock // nil => real clock
	Logger   *zerolog.Logger // nil => no logging
	Progress func(done int)  // optional; called from worker goroutines after each trial
}

func randomSeed() uint64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(buf[:])
}

// Run executes all trials. Trial i always uses PCG stream i of the seed, so a
// seeded run returns the same report whatever the worker count.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.Trials <= 0 {
		return nil, ErrNoTrials
	}
	clock := r.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := zerolog.Nop()
	if r.Logger != nil {
		log = *r.Logger
	}
	seed := randomSeed()
	if r.Seed != nil {
		seed = *r.Seed
	}
	workers := max(r.Workers, 1)

	params := r.Params
	if params.Resolver == nil && r.Cache != nil {
		res, err := r.Cache.ForBanner(params.Banner, params.Mode)
		if err != nil {
			return nil, err
		}
		params.Resolver = res
	}
	// surface configuration errors before spawning workers
	probe, err := NewSession(params)
	if err != nil {
		return nil, err
	}
	params.Resolver = probe.resolver

	report := &Report{
		RunID:     uuid.NewString(),
		Seed:      seed,
		StartedAt: clock.Now(),
		Criterion: params.Criterion,
		Threshold: params.Threshold,
		Banner:    params.Banner.Name,
		Mode:      params.Mode,
		Trials:    make([]Totals, r.Trials),
	}
	log.Info().
		Str("run_id", report.RunID).
		Str("banner", report.Banner).
		Str("criterion", string(report.Criterion)).
		Int("value", report.Threshold).
		Int("trials", r.Trials).
		Int("workers", workers).
		Uint64("seed", seed).
		Msg("simulation started")

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < r.Trials; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := params
			p.RNG = NewStreamRNG(seed, uint64(i))
			t, err := RunTrialContext(gctx, p)
			if err != nil {
				return err
			}
			report.Trials[i] = t
			n := done.Add(1)
			if r.Progress != nil {
				r.Progress(int(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("run_id", report.RunID).Msg("simulation aborted")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Summarize()
	report.Elapsed = clock.Since(report.StartedAt)
	log.Info().
		Str("run_id", report.RunID).
		Dur("elapsed", report.Elapsed).
		Float64("crystals_p50", report.CrystalsSpent.P50).
		Float64("crystals_p90", report.CrystalsSpent.P90).
		Msg("simulation finished")
	return report, nil
}
