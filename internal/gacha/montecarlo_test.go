package gacha

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestCalcStats(t *testing.T) {
	s := calcStats([]int{4, 1, 3, 2, 5})
	if s.Mean != 3 || s.Var != 2 || s.Min != 1 || s.Max != 5 {
		t.Fatalf("stats: %+v", s)
	}
	if math.Abs(s.StdDev-math.Sqrt2) > 1e-12 {
		t.Fatalf("stddev %v", s.StdDev)
	}
	if s.P50 != 3 || math.Abs(s.P90-4.6) > 1e-12 {
		t.Fatalf("percentiles: p50 %v p90 %v", s.P50, s.P90)
	}
	if one := calcStats([]int{7}); one.P99 != 7 || one.StdDev != 0 {
		t.Fatalf("single sample: %+v", one)
	}
	if empty := calcStats(nil); empty != (Stats{}) {
		t.Fatalf("empty: %+v", empty)
	}
}

func testRunner(workers int, seed uint64) *Runner {
	return &Runner{
		Params: TrialParams{
			Criterion: CriterionOverboost,
			Threshold: 1,
			Banner:    zackSephiroth,
			Mode:      TargetFeatured,
		},
		Trials:  64,
		Workers: workers,
		Seed:    &seed,
	}
}

func TestRunnerSeededIndependentOfWorkers(t *testing.T) {
	ctx := context.Background()
	a, err := testRunner(1, 2024).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := testRunner(8, 2024).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Trials, b.Trials) {
		t.Fatal("trials differ between 1 and 8 workers")
	}
	if a.CrystalsSpent != b.CrystalsSpent || a.WeaponParts != b.WeaponParts {
		t.Fatal("summaries differ between 1 and 8 workers")
	}
	if a.RunID == b.RunID {
		t.Fatal("run ids should be unique")
	}
	for i, tr := range a.Trials {
		if tr.OverboostLevel() < 1 {
			t.Fatalf("trial %d stopped at overboost %d", i, tr.OverboostLevel())
		}
	}
}

func TestRunnerClockAndProgress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache, err := NewResolverCache(ResolverCacheSize)
	if err != nil {
		t.Fatal(err)
	}
	var calls, highest atomic.Int64
	r := testRunner(4, 1)
	r.Clock = clock
	r.Cache = cache
	r.Progress = func(done int) {
		calls.Add(1)
		for {
			cur := highest.Load()
			if int64(done) <= cur || highest.CompareAndSwap(cur, int64(done)) {
				return
			}
		}
	}

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !rep.StartedAt.Equal(clock.Now()) || rep.Elapsed != 0 {
		t.Fatalf("fake clock: started %v elapsed %v", rep.StartedAt, rep.Elapsed)
	}
	if calls.Load() != 64 || highest.Load() != 64 {
		t.Fatalf("progress: %d calls, highest %d", calls.Load(), highest.Load())
	}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hits, misses := cache.Counts(); hits != 1 || misses != 1 {
		t.Fatalf("cache hits %d misses %d", hits, misses)
	}
}

func TestRunnerErrors(t *testing.T) {
	r := testRunner(2, 1)
	r.Trials = 0
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrNoTrials) {
		t.Fatalf("no trials: got %v", err)
	}

	r = testRunner(2, 1)
	r.Params.Threshold = 12
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrCriterionRange) {
		t.Fatalf("bad threshold: got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testRunner(2, 1).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled: got %v", err)
	}
}

func TestRunnerDeadlineStopsLongTrials(t *testing.T) {
	r := testRunner(2, 1)
	r.Params.Criterion = CriterionStampsEarned
	r.Params.Threshold = 2_000_000_000
	r.Trials = 4

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Fatalf("run outlived its deadline by %v", d)
	}
}

func TestResolverCache(t *testing.T) {
	c, err := NewResolverCache(2)
	if err != nil {
		t.Fatal(err)
	}
	a, err := c.ForBanner(zackSephiroth, TargetFeatured)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.ForBanner(zackSephiroth, TargetFeatured)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("expected the cached resolver")
	}
	w, err := c.ForBanner(zackSephiroth, TargetWishlisted)
	if err != nil {
		t.Fatal(err)
	}
	if w == a || w.Model().Mode != TargetWishlisted {
		t.Fatal("modes must not share a resolver")
	}
	if _, err := c.Get(3, TargetFeatured, testRate); !errors.Is(err, ErrUnsupportedFeatured) {
		t.Fatalf("bad config: got %v", err)
	}
	if hits, misses := c.Counts(); hits != 1 || misses != 3 {
		t.Fatalf("hits %d misses %d", hits, misses)
	}
	if _, err := NewResolverCache(0); err == nil {
		t.Fatal("zero size cache should fail")
	}
}
