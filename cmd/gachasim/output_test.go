package main

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xtding233/gacha-sim/internal/banner"
	"github.com/xtding233/gacha-sim/internal/gacha"
	"github.com/xtding233/gacha-sim/internal/pricing"
	"github.com/xtding233/gacha-sim/internal/token"
)

func sampleTrials() []gacha.Totals {
	a := gacha.Totals{StampsEarned: 41, CrystalsSpent: 12000, TenDraws: 4}
	a.Record(gacha.TargetedFiveStar)
	a.Record(gacha.NonTargetedThreeStar)
	a.WeaponParts = 230
	a.Metadata = gacha.TrialMetadata{
		Criterion: gacha.CriterionCrystalsSpent,
		Threshold: 12000,
		Banner:    "cloud_glenn",
		Mode:      gacha.TargetFeatured,
	}
	b := a
	b.WeaponParts = 10
	return []gacha.Totals{a, b}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCSV(&buf, sampleTrials()); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows: %d", len(rows))
	}
	if len(rows[0]) != 20 || rows[0][6] != "targeted_five_stars_drawn" {
		t.Fatalf("header: %v", rows[0])
	}
	first := rows[1]
	if first[0] != "0" || first[1] != "230" || first[2] != "0" || first[4] != "12000" || first[6] != "1" {
		t.Fatalf("row: %v", first)
	}
	if first[15] != "cloud_glenn" || first[17] != "crystals_spent" {
		t.Fatalf("metadata columns: %v", first[15:])
	}
	if rows[2][2] != "-1" {
		t.Fatalf("overboost of 10 parts: %s", rows[2][2])
	}
}

func TestWriteSummary(t *testing.T) {
	rep := &gacha.Report{RunID: "r1", Banner: "cloud_glenn", Trials: sampleTrials()}
	rep.Summarize()
	var buf bytes.Buffer
	if err := writeSummary(&buf, rep); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run r1", "crystals spent", "weapon parts", "stamps earned", "ten draws", "12000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWritePrices(t *testing.T) {
	store := pricing.Catalog{
		TokenName: "Crystals",
		Currency:  "USD",
		Packs: []pricing.Pack{
			{ID: "small", Name: "Small", Tokens: 1000, PriceCents: 999},
		},
	}
	q, err := pricing.QuoteSpend(store, 1500, 2600, 3000, token.Crystals)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := writePrices(&buf, store, q); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "19.98") || !strings.Contains(out, "29.97") || !strings.Contains(out, "3x Small") {
		t.Fatalf("prices:\n%s", out)
	}
	// 3000 cents buys three packs, 3000 crystals
	if !strings.Contains(out, "budget buys 1 ten-draws") {
		t.Fatalf("budget line missing:\n%s", out)
	}

	buf.Reset()
	if err := writePrices(&buf, store, pricing.Quote{}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "spend") {
		t.Fatalf("unpriced rows printed:\n%s", buf.String())
	}
}

func TestWriteBanners(t *testing.T) {
	params, err := banner.NewLoader(filepath.Join("..", "..", "configs")).All()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := writeBanners(&buf, params); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "NAME") || !strings.HasPrefix(lines[1], "cloud_glenn") {
		t.Fatalf("banners:\n%s", buf.String())
	}
	if !strings.Contains(lines[2], "0.01315") {
		t.Fatalf("rate column: %s", lines[2])
	}
}
