package banner

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-sim/internal/gacha"
)

const testDefault = `
version: "1"
currency: { name: Crystals, per_draw: 300, per_ten_draw: 3000 }
stamp_cards:
  - name: page_one
    entries:
      - { position: 6, rule: guaranteed_featured_five_star_draw }
  - name: page_ex
    entries:
      - { position: 12, rule: guaranteed_five_star_draw }
`

const testBanner = `
name: solo
weapons: [buster_sword]
non_featured_five_star_rate: "0.0125"
currency: { per_ten_draw: 2700 }
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, "banners", name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadMergedDefaultThenBanner(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", testDefault)
	writeFile(t, dir, "solo.yaml", testBanner)

	l := NewLoader(dir)
	raw, err := l.LoadMerged("solo")
	if err != nil {
		t.Fatal(err)
	}
	if raw.Version != "1" || len(raw.Cards) != 2 || raw.Cards[1].Name != "page_ex" {
		t.Fatalf("defaults not inherited: %+v", raw)
	}
	if *raw.Currency.PerDraw != 300 || *raw.Currency.PerTenDraw != 2700 || raw.Currency.Name != "Crystals" {
		t.Fatalf("currency merge: %+v", raw.Currency)
	}
	if !raw.NonFeaturedRate.Equal(decimal.RequireFromString("0.0125")) {
		t.Fatalf("rate: %s", raw.NonFeaturedRate)
	}

	_, bp, err := l.Resolve("solo", Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if bp.Banner.NumFeatured() != 1 || bp.Currency.TokensForDraws(10) != 2700 {
		t.Fatalf("engine params: %+v", bp)
	}
}

func TestBannerNameFallsBackToFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", testDefault)
	writeFile(t, dir, "duo.yaml", "weapons: [a, b]\nnon_featured_five_star_rate: 0.013\n")
	raw, err := NewLoader(dir).LoadMerged("duo")
	if err != nil {
		t.Fatal(err)
	}
	if raw.Name != "duo" {
		t.Fatalf("name: %q", raw.Name)
	}
}

func TestUnknownBanner(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", testDefault)
	l := NewLoader(dir)
	for _, name := range []string{"missing", "default", "../default", "Upper", ""} {
		if _, err := l.LoadMerged(name); !errors.Is(err, ErrUnknownBanner) {
			t.Fatalf("%q: got %v", name, err)
		}
	}
}

func TestUnknownKeysRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "typo.yaml", "weapon: [a]\n")
	_, err := NewLoader(dir).LoadMerged("typo")
	if err == nil || !strings.Contains(err.Error(), "typo.yaml") {
		t.Fatalf("got %v", err)
	}
}

func TestValidateRawListsEveryProblem(t *testing.T) {
	rate := decimal.RequireFromString("0.2")
	perDraw := 0
	raw := RawBanner{
		Name:            "bad",
		Weapons:         []string{"a", "b", "c"},
		NonFeaturedRate: &rate,
		Cards: []gacha.CardDef{
			{Name: "", Entries: []gacha.CardEntry{{Threshold: 3, Rule: "free_ticket"}}},
		},
		Currency: &CurrencyConfig{PerDraw: &perDraw},
	}
	err := ValidateRaw(raw)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("got %v", err)
	}
	for _, want := range []string{
		"weapons must list 1 or 2",
		"non_featured_five_star_rate must be in (0,0.075)",
		"stamp_cards[0].name is required",
		"free_ticket",
		"currency.per_draw must be > 0",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}

	if err := ValidateRaw(RawBanner{}); err == nil ||
		!strings.Contains(err.Error(), "name is required; weapons is required; non_featured_five_star_rate is required; stamp_cards is required") {
		t.Fatalf("empty banner: %v", err)
	}
}

func TestResolveOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", testDefault)
	writeFile(t, dir, "solo.yaml", testBanner)
	l := NewLoader(dir)

	rate := decimal.RequireFromString("0.02")
	ten := 2500
	_, bp, err := l.Resolve("solo", Overrides{NonFeaturedRate: &rate, Weapons: []string{"x", "y"}, PerTenDraw: &ten})
	if err != nil {
		t.Fatal(err)
	}
	if !bp.Banner.NonFeaturedFiveStarRate.Equal(rate) || bp.Banner.NumFeatured() != 2 || bp.Currency.PerTenDraw != 2500 {
		t.Fatalf("overrides not applied: %+v", bp)
	}
	// overrides never leak into the cache
	raw, err := l.LoadMerged("solo")
	if err != nil {
		t.Fatal(err)
	}
	if len(raw.Weapons) != 1 || *raw.Currency.PerTenDraw != 2700 {
		t.Fatalf("cached banner modified: %+v", raw)
	}
}

func TestCacheAndInvalidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", testDefault)
	writeFile(t, dir, "solo.yaml", testBanner)
	l := NewLoader(dir)
	if _, err := l.LoadMerged("solo"); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "solo.yaml", strings.Replace(testBanner, "0.0125", "0.011", 1))
	raw, _ := l.LoadMerged("solo")
	if !raw.NonFeaturedRate.Equal(decimal.RequireFromString("0.0125")) {
		t.Fatal("expected cached value before invalidate")
	}
	l.Invalidate()
	raw, _ = l.LoadMerged("solo")
	if !raw.NonFeaturedRate.Equal(decimal.RequireFromString("0.011")) {
		t.Fatalf("after invalidate: %s", raw.NonFeaturedRate)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	if names, err := NewLoader(dir).List(); err != nil || len(names) != 0 {
		t.Fatalf("missing dir: %v %v", names, err)
	}
	writeFile(t, dir, "default.yaml", testDefault)
	writeFile(t, dir, "zeta.yaml", testBanner)
	writeFile(t, dir, "alpha.yaml", testBanner)
	writeFile(t, dir, "README.md", "docs")
	names, err := NewLoader(dir).List()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "zeta"}) {
		t.Fatalf("names: %v", names)
	}
}

func TestShippedBanners(t *testing.T) {
	l := NewLoader(filepath.Join("..", "..", "configs"))
	params, err := l.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 2 {
		t.Fatalf("expected 2 banners, got %d", len(params))
	}
	want := map[string]string{"cloud_glenn": "0.01339", "zack_sephiroth": "0.01315"}
	for _, s := range params {
		rate, ok := want[s.Banner.Name]
		if !ok {
			t.Fatalf("unexpected banner %q", s.Banner.Name)
		}
		if !s.Banner.NonFeaturedFiveStarRate.Equal(decimal.RequireFromString(rate)) {
			t.Fatalf("%s rate: %s", s.Banner.Name, s.Banner.NonFeaturedFiveStarRate)
		}
		if len(s.Banner.Cards) != 4 || s.Banner.NumFeatured() != 2 || s.Store == nil {
			t.Fatalf("%s: %+v", s.Banner.Name, s)
		}
		if _, err := gacha.NewSession(gacha.TrialParams{
			Criterion: gacha.CriterionOverboost,
			Banner:    s.Banner,
			Mode:      gacha.TargetFeatured,
			Currency:  &s.Currency,
		}); err != nil {
			t.Fatalf("%s: %v", s.Banner.Name, err)
		}
	}
}

func TestFileWatcher(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "solo.yaml", testBanner)
	clock := clockwork.NewFakeClock()
	changed := make(chan string, 4)
	w := NewFileWatcher(filepath.Join(dir, "banners"), time.Second, clock, func(path string) { changed <- path })
	w.Start()
	defer w.Stop()

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(p, future, future); err != nil {
		t.Fatal(err)
	}
	added := writeFile(t, dir, "duo.yaml", testBanner)
	clock.Advance(time.Second)

	got := map[string]bool{}
	for len(got) < 2 {
		select {
		case path := <-changed:
			got[path] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("changes seen: %v", got)
		}
	}
	if !got[p] || !got[added] {
		t.Fatalf("changes: %v", got)
	}
	w.Stop()
	w.Stop()
}
