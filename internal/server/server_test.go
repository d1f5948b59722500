package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/gacha-sim/internal/banner"
	"github.com/xtding233/gacha-sim/internal/gacha"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(banner.NewLoader(filepath.Join("..", "..", "configs")), zerolog.Nop(), 2)
	if err != nil {
		t.Fatal(err)
	}
	s.Clock = clockwork.NewFakeClock()
	return s
}

func get(t *testing.T, h http.Handler, url string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: decode %q: %v", url, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestHTTPTrial(t *testing.T) {
	h := testServer(t).Handler()
	var a, b gacha.Totals
	url := "/trial?banner=cloud_glenn&criterion=crystals_spent&value=30000&seed=9"
	if code := get(t, h, url, &a); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if a.CrystalsSpent != 30000 || a.TenDraws != 10 || a.Metadata.Banner != "cloud_glenn" {
		t.Fatalf("totals: %+v", a)
	}
	get(t, h, url, &b)
	if a.WeaponParts != b.WeaponParts || a.StampsEarned != b.StampsEarned {
		t.Fatal("seeded trial not repeatable")
	}
}

func TestHTTPSimulate(t *testing.T) {
	h := testServer(t).Handler()
	var resp struct {
		RunID         string         `json:"run_id"`
		Trials        []gacha.Totals `json:"trials"`
		CrystalsSpent gacha.Stats    `json:"num_crystals_spent"`
		PriceP50      *struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"price_p50"`
	}
	url := "/simulate?banner=zack_sephiroth&criterion=overboost&value=0&trials=20&seed=1&include_trials=true"
	if code := get(t, h, url, &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.RunID == "" || len(resp.Trials) != 20 {
		t.Fatalf("report: id %q, %d trials", resp.RunID, len(resp.Trials))
	}
	if resp.PriceP50 == nil || float64(resp.PriceP50.TotalTokens) < resp.CrystalsSpent.P50 {
		t.Fatalf("p50 price: %+v for %v crystals", resp.PriceP50, resp.CrystalsSpent.P50)
	}
}

func TestHTTPErrors(t *testing.T) {
	h := testServer(t).Handler()
	cases := []struct {
		url  string
		want int
	}{
		{"/trial", http.StatusBadRequest},
		{"/trial?banner=nope", http.StatusNotFound},
		{"/trial?banner=cloud_glenn&value=x", http.StatusBadRequest},
		{"/trial?banner=cloud_glenn&criterion=overboost&value=11", http.StatusBadRequest},
		{"/trial?banner=cloud_glenn&mode=limited", http.StatusBadRequest},
		{"/trial?banner=cloud_glenn&rate=2", http.StatusBadRequest},
		{"/trial?banner=cloud_glenn&seed=-1", http.StatusBadRequest},
		{"/simulate?banner=cloud_glenn&trials=-5", http.StatusBadRequest},
		{"/simulate?banner=cloud_glenn&trials=1000000", http.StatusBadRequest},
		{"/trial?banner=cloud_glenn&criterion=stamps_earned&value=2000000000", http.StatusBadRequest},
		{"/trial?banner=cloud_glenn&criterion=crystals_spent&value=2000000000", http.StatusBadRequest},
		{"/simulate?banner=cloud_glenn&budget_cents=-1", http.StatusBadRequest},
		{"/simulate?banner=cloud_glenn&budget_cents=100000000", http.StatusBadRequest},
		{"/simulate?banner=cloud_glenn&budget_cents=x", http.StatusBadRequest},
	}
	for _, c := range cases {
		var e errResp
		if code := get(t, h, c.url, &e); code != c.want || e.Err == "" {
			t.Fatalf("%s: status %d err %q, want %d", c.url, code, e.Err, c.want)
		}
	}
}

func TestHTTPSimulateBudget(t *testing.T) {
	h := testServer(t).Handler()
	var resp struct {
		Budget *struct {
			TotalTokens int `json:"total_tokens"`
			TotalCents  int `json:"total_cents"`
		} `json:"budget_plan"`
		BudgetTenDraws *int `json:"budget_ten_draws"`
	}
	url := "/simulate?banner=cloud_glenn&criterion=crystals_spent&value=3000&trials=2&seed=1&budget_cents=10000"
	if code := get(t, h, url, &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.Budget == nil || resp.Budget.TotalTokens == 0 || resp.Budget.TotalCents > 10000 {
		t.Fatalf("budget plan: %+v", resp.Budget)
	}
	if resp.BudgetTenDraws == nil || *resp.BudgetTenDraws != resp.Budget.TotalTokens/3000 {
		t.Fatalf("budget ten-draws %v for %d crystals", resp.BudgetTenDraws, resp.Budget.TotalTokens)
	}
}

func TestTrialValueBounds(t *testing.T) {
	s := testServer(t)
	for _, req := range []Request{
		{Banner: "cloud_glenn", Criterion: gacha.CriterionStampsEarned, Value: MaxStampsEarned + 1},
		{Banner: "cloud_glenn", Criterion: gacha.CriterionCrystalsSpent, Value: 2_000_000_000},
	} {
		if _, err := s.Trial(context.Background(), req); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("%s=%d: got %v", req.Criterion, req.Value, err)
		}
	}
}

func TestRequestTimeout(t *testing.T) {
	s := testServer(t)
	s.Timeout = 20 * time.Millisecond
	start := time.Now()
	code := get(t, s.Handler(), "/simulate?banner=cloud_glenn&criterion=overboost&value=10&trials=100000", nil)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", code)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Fatalf("request outlived its timeout by %v", d)
	}

	c := dialBufconn(t, s)
	_, err := c.Simulate(context.Background(), mustStruct(t, map[string]any{
		"banner":    "cloud_glenn",
		"criterion": "overboost",
		"value":     10,
		"trials":    100000,
	}))
	if status.Code(err) != codes.DeadlineExceeded {
		t.Fatalf("grpc: %v", err)
	}
}

func TestHTTPBanners(t *testing.T) {
	var params []struct {
		Banner struct {
			Name string `json:"name"`
		} `json:"banner"`
		Title string `json:"title"`
	}
	if code := get(t, testServer(t).Handler(), "/banners", &params); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(params) != 2 || params[0].Banner.Name != "cloud_glenn" || params[1].Title == "" {
		t.Fatalf("banners: %+v", params)
	}
}

func dialBufconn(t *testing.T, s *Server) *SimulatorClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	RegisterSimulatorServer(gs, NewGRPCService(s))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewSimulatorClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGRPCSimulate(t *testing.T) {
	c := dialBufconn(t, testServer(t))
	out, err := c.Simulate(context.Background(), mustStruct(t, map[string]any{
		"banner":    "cloud_glenn",
		"criterion": "stamps_earned",
		"value":     24,
		"trials":    10,
		"seed":      "18446744073709551615",
	}))
	if err != nil {
		t.Fatal(err)
	}
	f := out.GetFields()
	if f["run_id"].GetStringValue() == "" || f["banner"].GetStringValue() != "cloud_glenn" {
		t.Fatalf("response: %v", out)
	}
	stamps := f["total_stamps_earned"].GetStructValue().GetFields()
	if stamps["min"].GetNumberValue() < 24 {
		t.Fatalf("stamps: %v", stamps)
	}
	if _, ok := f["trials"]; ok {
		t.Fatal("trials returned without include_trials")
	}
}

func TestGRPCRunTrial(t *testing.T) {
	c := dialBufconn(t, testServer(t))
	out, err := c.RunTrial(context.Background(), mustStruct(t, map[string]any{
		"banner":    "zack_sephiroth",
		"criterion": "crystals_spent",
		"value":     9000,
		"mode":      "wishlisted",
		"seed":      3,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.GetFields()["num_crystals_spent"].GetNumberValue(); got != 9000 {
		t.Fatalf("crystals: %v", got)
	}
}

func TestGRPCStatusCodes(t *testing.T) {
	c := dialBufconn(t, testServer(t))
	cases := []struct {
		req  map[string]any
		want codes.Code
	}{
		{map[string]any{"banner": "nope"}, codes.NotFound},
		{map[string]any{"banner": "cloud_glenn", "value": 1.5}, codes.InvalidArgument},
		{map[string]any{"banner": "cloud_glenn", "criterion": "pulls"}, codes.InvalidArgument},
		{map[string]any{"banner": "cloud_glenn", "seed": -2}, codes.InvalidArgument},
		{map[string]any{}, codes.InvalidArgument},
	}
	for _, tc := range cases {
		_, err := c.RunTrial(context.Background(), mustStruct(t, tc.req))
		if status.Code(err) != tc.want {
			t.Fatalf("%v: got %v want %v", tc.req, err, tc.want)
		}
	}
}
