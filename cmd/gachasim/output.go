package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xtding233/gacha-sim/internal/gacha"
	"github.com/xtding233/gacha-sim/internal/pricing"
)

var csvHeader = func() []string {
	h := []string{
		"trial",
		"targeted_weapon_parts",
		"overboost_level",
		"total_stamps_earned",
		"num_crystals_spent",
		"ten_draws",
	}
	for _, t := range gacha.Tiers {
		h = append(h, t.String()+"s_drawn")
	}
	return append(h, "banner", "target_weapon_type", "session_criterion", "criterion_value", "starting_weapon_parts")
}()

// writeCSV writes one row per trial.
func writeCSV(w io.Writer, trials []gacha.Totals) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, t := range trials {
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(t.WeaponParts),
			strconv.Itoa(t.OverboostLevel()),
			strconv.Itoa(t.StampsEarned),
			strconv.Itoa(t.CrystalsSpent),
			strconv.Itoa(t.TenDraws),
		}
		for _, tier := range gacha.Tiers {
			row = append(row, strconv.Itoa(t.Count(tier)))
		}
		m := t.Metadata
		row = append(row, m.Banner, string(m.Mode), string(m.Criterion), strconv.Itoa(m.Threshold), strconv.Itoa(m.StartingParts))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeSummary prints the per-metric statistics as a table.
func writeSummary(w io.Writer, rep *gacha.Report) error {
	fmt.Fprintf(w, "run %s  banner %s  %s=%d  mode %s  seed %d  trials %d  (%s)\n\n",
		rep.RunID, rep.Banner, rep.Criterion, rep.Threshold, rep.Mode, rep.Seed, len(rep.Trials), rep.Elapsed.Round(1e6))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "metric\tmean\tstddev\tmin\tp50\tp90\tp99\tmax\t")
	for _, row := range []struct {
		name string
		s    gacha.Stats
	}{
		{"crystals spent", rep.CrystalsSpent},
		{"weapon parts", rep.WeaponParts},
		{"stamps earned", rep.StampsEarned},
		{"ten draws", rep.TenDraws},
	} {
		s := row.s
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%d\t%.0f\t%.0f\t%.0f\t%d\t\n",
			row.name, s.Mean, s.StdDev, s.Min, s.P50, s.P90, s.P99, s.Max)
	}
	return tw.Flush()
}

// writePrices prints the quoted plans. Unpriced percentiles are skipped.
func writePrices(w io.Writer, store pricing.Catalog, q pricing.Quote) error {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	unit := store.TokenName
	if unit == "" {
		unit = "tokens"
	}
	fmt.Fprintf(tw, "plan\t%s\tcost (%s)\tpacks\n", unit, store.Currency)
	for _, row := range []struct {
		name string
		plan *pricing.Plan
	}{{"p50 spend", q.P50}, {"p90 spend", q.P90}, {"budget", q.Budget}} {
		if row.plan == nil {
			continue
		}
		packs := make([]string, 0, len(row.plan.Purchases))
		for _, it := range row.plan.Purchases {
			packs = append(packs, fmt.Sprintf("%dx %s", it.Qty, it.Name))
		}
		fmt.Fprintf(tw, "%s\t%d\t%d.%02d\t%s\n", row.name, row.plan.TotalTokens,
			row.plan.TotalCents/100, row.plan.TotalCents%100, strings.Join(packs, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if q.BudgetTenDraws != nil {
		_, err := fmt.Fprintf(w, "budget buys %d ten-draws\n", *q.BudgetTenDraws)
		return err
	}
	return nil
}
