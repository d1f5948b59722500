// Package server exposes the simulator over HTTP and gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-sim/internal/banner"
	"github.com/xtding233/gacha-sim/internal/gacha"
	"github.com/xtding233/gacha-sim/internal/pricing"
)

const (
	DefaultTrials  = 1000
	MaxTrials      = 100_000
	DefaultTimeout = 2 * time.Minute

	// upper bounds on the criterion value of a request
	MaxCrystalsSpent = 30_000_000
	MaxStampsEarned  = 20_000
)

var ErrBadRequest = errors.New("bad request")

// Request is a simulation request shared by both transports.
type Request struct {
	Banner        string
	Criterion     gacha.Criterion
	Value         int
	Mode          gacha.TargetMode
	StartingParts int
	Trials        int
	Seed          *uint64
	Rate          *decimal.Decimal // overrides the banner's non-featured rate
	BudgetCents   int              // > 0 plans the most crystals the budget buys
	IncludeTrials bool
}

// withDefaults fills the optional fields.
func (r Request) withDefaults() Request {
	if r.Criterion == "" {
		r.Criterion = gacha.CriterionOverboost
	}
	if r.Mode == "" {
		r.Mode = gacha.TargetFeatured
	}
	if r.Trials == 0 {
		r.Trials = DefaultTrials
	}
	return r
}

// SimulateResponse is a report plus, when the banner has a store, the price
// of the median and 90th percentile crystal spend.
type SimulateResponse struct {
	*gacha.Report
	pricing.Quote
}

// Server resolves banners and runs trials for the HTTP and gRPC handlers.
type Server struct {
	Loader  *banner.Loader
	Cache   *gacha.ResolverCache
	Log     zerolog.Logger
	Clock   clockwork.Clock
	Workers int
	Timeout time.Duration // per request; <= 0 => none
}

// New creates a server. The resolver cache is created on demand.
func New(l *banner.Loader, log zerolog.Logger, workers int) (*Server, error) {
	cache, err := gacha.NewResolverCache(gacha.ResolverCacheSize)
	if err != nil {
		return nil, err
	}
	return &Server{
		Loader:  l,
		Cache:   cache,
		Log:     log,
		Clock:   clockwork.NewRealClock(),
		Workers: max(workers, 1),
		Timeout: DefaultTimeout,
	}, nil
}

// params resolves the banner and builds trial parameters.
func (s *Server) params(req Request) (gacha.TrialParams, banner.EngineParams, error) {
	if req.Banner == "" {
		return gacha.TrialParams{}, banner.EngineParams{}, fmt.Errorf("%w: banner is required", ErrBadRequest)
	}
	if err := checkValue(req.Criterion, req.Value); err != nil {
		return gacha.TrialParams{}, banner.EngineParams{}, err
	}
	_, bp, err := s.Loader.Resolve(req.Banner, banner.Overrides{NonFeaturedRate: req.Rate})
	if err != nil {
		return gacha.TrialParams{}, banner.EngineParams{}, err
	}
	res, err := s.Cache.ForBanner(bp.Banner, req.Mode)
	if err != nil {
		return gacha.TrialParams{}, banner.EngineParams{}, err
	}
	cur := bp.Currency
	return gacha.TrialParams{
		Criterion:     req.Criterion,
		Threshold:     req.Value,
		Banner:        bp.Banner,
		Mode:          req.Mode,
		StartingParts: req.StartingParts,
		Resolver:      res,
		Currency:      &cur,
	}, bp, nil
}

// checkValue bounds the criterion values a request may ask for.
func checkValue(c gacha.Criterion, v int) error {
	var limit int
	switch c {
	case gacha.CriterionCrystalsSpent:
		limit = MaxCrystalsSpent
	case gacha.CriterionStampsEarned:
		limit = MaxStampsEarned
	default:
		return nil
	}
	if v > limit {
		return fmt.Errorf("%w: %s value must be <= %d", ErrBadRequest, c, limit)
	}
	return nil
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// Trial runs a single pull session.
func (s *Server) Trial(ctx context.Context, req Request) (gacha.Totals, error) {
	req = req.withDefaults()
	p, _, err := s.params(req)
	if err != nil {
		return gacha.Totals{}, err
	}
	if req.Seed != nil {
		p.RNG = gacha.NewSeededRNG(*req.Seed)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return gacha.RunTrialContext(ctx, p)
}

// Simulate runs a Monte Carlo report.
func (s *Server) Simulate(ctx context.Context, req Request) (*SimulateResponse, error) {
	req = req.withDefaults()
	if req.Trials < 1 || req.Trials > MaxTrials {
		return nil, fmt.Errorf("%w: trials must be in [1,%d]", ErrBadRequest, MaxTrials)
	}
	if req.BudgetCents < 0 || req.BudgetCents > pricing.MaxBudgetCents {
		return nil, fmt.Errorf("%w: budget_cents must be in [0,%d]", ErrBadRequest, pricing.MaxBudgetCents)
	}
	p, bp, err := s.params(req)
	if err != nil {
		return nil, err
	}
	if req.BudgetCents > 0 && bp.Store == nil {
		return nil, fmt.Errorf("%w: banner %q has no store to plan a budget with", ErrBadRequest, req.Banner)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	r := gacha.Runner{
		Params:  p,
		Trials:  req.Trials,
		Workers: s.Workers,
		Seed:    req.Seed,
		Clock:   s.Clock,
		Logger:  &s.Log,
	}
	rep, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	if !req.IncludeTrials {
		rep.Trials = nil
	}

	resp := &SimulateResponse{Report: rep}
	if bp.Store != nil {
		q, err := pricing.QuoteSpend(*bp.Store, rep.CrystalsSpent.P50, rep.CrystalsSpent.P90, req.BudgetCents, bp.Currency)
		if err != nil {
			return nil, err
		}
		resp.Quote = q
	}
	return resp, nil
}

// Banners lists every valid banner.
func (s *Server) Banners() ([]banner.EngineParams, error) {
	return s.Loader.All()
}

// clientError reports whether err was caused by the request.
func clientError(err error) bool {
	for _, target := range []error{
		ErrBadRequest,
		banner.ErrInvalid,
		gacha.ErrUnsupportedCriterion,
		gacha.ErrCriterionRange,
		gacha.ErrUnsupportedMode,
		gacha.ErrUnsupportedFeatured,
		gacha.ErrInvalidRate,
		gacha.ErrUnsupportedRule,
		gacha.ErrBadThreshold,
		gacha.ErrBadBanner,
		gacha.ErrNoTrials,
		pricing.ErrPlanTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
