package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/xtding233/gacha-sim/internal/banner"
	"github.com/xtding233/gacha-sim/internal/config"
	"github.com/xtding233/gacha-sim/internal/gacha"
	"github.com/xtding233/gacha-sim/internal/pricing"
)

type simulateOpts struct {
	banner        string
	criterion     string
	value         int
	mode          string
	startingParts int
	trials        int
	seed          uint64
	rate          string
	format        string
	output        string
	progress      bool
	price         bool
	budgetCents   int
}

func newSimulateCmd() *cobra.Command {
	var o simulateOpts
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run pull sessions and report crystals spent, weapon parts and stamps",
		Example: `  gachasim simulate --banner cloud_glenn --criterion overboost --value 0 --trials 10000
  gachasim simulate --banner zack_sephiroth --criterion crystals_spent --value 90000 --format json -o out.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.banner, "banner", "b", "", "Banner name (file under <config-dir>/banners)")
	f.StringVarP(&o.criterion, "criterion", "c", string(gacha.CriterionOverboost), "Stop criterion: overboost, crystals_spent or stamps_earned")
	f.IntVarP(&o.value, "value", "v", 0, "Criterion value")
	f.StringVarP(&o.mode, "mode", "m", string(gacha.TargetFeatured), "Target weapon: featured or wishlisted")
	f.IntVar(&o.startingParts, "starting-parts", 0, "Weapon parts owned before pulling")
	f.IntVarP(&o.trials, "trials", "n", 1000, "Number of trials")
	f.Uint64Var(&o.seed, "seed", 0, "Seed for a reproducible run (random when unset)")
	f.StringVar(&o.rate, "rate", "", "Override the banner's non-featured five star rate")
	f.StringVar(&o.format, "format", "summary", "Output: summary, csv or json")
	f.StringVarP(&o.output, "output", "o", "-", "Output file, - for stdout")
	f.BoolVar(&o.progress, "progress", true, "Show a progress bar on stderr")
	f.BoolVar(&o.price, "price", true, "Price the P50/P90 spend with the banner's store")
	f.IntVar(&o.budgetCents, "budget-cents", 0, "Also plan the most crystals this budget buys (minor currency units)")
	_ = cmd.MarkFlagRequired("banner")
	return cmd
}

func runSimulate(cmd *cobra.Command, o simulateOpts) error {
	var overrides banner.Overrides
	if o.rate != "" {
		r, err := decimal.NewFromString(o.rate)
		if err != nil {
			return fmt.Errorf("invalid --rate: %w", err)
		}
		overrides.NonFeaturedRate = &r
	}
	switch o.format {
	case "summary", "csv", "json":
	default:
		return fmt.Errorf("invalid --format %q: must be summary, csv or json", o.format)
	}
	if o.budgetCents < 0 || o.budgetCents > pricing.MaxBudgetCents {
		return fmt.Errorf("invalid --budget-cents %d: must be in [0,%d]", o.budgetCents, pricing.MaxBudgetCents)
	}

	_, bp, err := newLoader().Resolve(o.banner, overrides)
	if err != nil {
		return err
	}
	cache, err := gacha.NewResolverCache(gacha.ResolverCacheSize)
	if err != nil {
		return err
	}

	runner := gacha.Runner{
		Params: gacha.TrialParams{
			Criterion:     gacha.Criterion(o.criterion),
			Threshold:     o.value,
			Banner:        bp.Banner,
			Mode:          gacha.TargetMode(o.mode),
			StartingParts: o.startingParts,
			Currency:      &bp.Currency,
		},
		Trials:  o.trials,
		Workers: config.Workers(),
		Cache:   cache,
		Logger:  &logger,
	}
	if cmd.Flags().Changed("seed") {
		runner.Seed = &o.seed
	}
	if o.progress && o.trials > 0 {
		bar := pb.StartNew(o.trials)
		bar.SetWriter(os.Stderr)
		bar.Set(pb.CleanOnFinish, true)
		runner.Progress = func(int) { bar.Increment() }
		defer bar.Finish()
	}

	rep, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	w := io.Writer(os.Stdout)
	if o.output != "-" {
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch o.format {
	case "csv":
		return writeCSV(w, rep.Trials)
	case "json":
		return writeJSON(w, rep)
	}
	if err := writeSummary(w, rep); err != nil {
		return err
	}
	if !o.price {
		return nil
	}
	if bp.Store == nil {
		if o.budgetCents > 0 {
			logger.Warn().Str("banner", bp.Banner.Name).Msg("banner has no store; budget not planned")
		}
		return nil
	}
	q, err := pricing.QuoteSpend(*bp.Store, rep.CrystalsSpent.P50, rep.CrystalsSpent.P90, o.budgetCents, bp.Currency)
	if err != nil {
		return err
	}
	return writePrices(w, *bp.Store, q)
}
