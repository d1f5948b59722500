package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-sim/internal/banner"
	"github.com/xtding233/gacha-sim/internal/gacha"
)

type errResp struct {
	Err string `json:"err"`
}

func parseInt(r *http.Request, key string) (int, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func parseUint(r *http.Request, key string) (uint64, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func parseDecimal(r *http.Request, key string) (decimal.Decimal, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return decimal.Decimal{}, false, ""
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false, "invalid " + key
	}
	return v, true, ""
}

// parseRequest reads the shared query parameters:
// banner, criterion, value, mode, starting_parts, trials, seed, rate,
// budget_cents, include_trials.
func parseRequest(r *http.Request) (Request, string) {
	q := r.URL.Query()
	req := Request{
		Banner:        q.Get("banner"),
		Criterion:     gacha.Criterion(q.Get("criterion")),
		Mode:          gacha.TargetMode(q.Get("mode")),
		IncludeTrials: q.Get("include_trials") == "true",
	}
	var msg string
	if req.Value, _, msg = parseInt(r, "value"); msg != "" {
		return req, msg
	}
	if req.StartingParts, _, msg = parseInt(r, "starting_parts"); msg != "" {
		return req, msg
	}
	if req.Trials, _, msg = parseInt(r, "trials"); msg != "" {
		return req, msg
	}
	if req.BudgetCents, _, msg = parseInt(r, "budget_cents"); msg != "" {
		return req, msg
	}
	seed, ok, msg := parseUint(r, "seed")
	if msg != "" {
		return req, msg
	}
	if ok {
		req.Seed = &seed
	}
	rate, ok, msg := parseDecimal(r, "rate")
	if msg != "" {
		return req, msg
	}
	if ok {
		req.Rate = &rate
	}
	return req, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, banner.ErrUnknownBanner):
		status = http.StatusNotFound
	case clientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.Log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errResp{Err: err.Error()})
}

// single pull session
func (s *Server) handleTrial(w http.ResponseWriter, r *http.Request) {
	req, msg := parseRequest(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errResp{Err: msg})
		return
	}
	t, err := s.Trial(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// monte carlo report
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	req, msg := parseRequest(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errResp{Err: msg})
		return
	}
	rep, err := s.Simulate(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleBanners(w http.ResponseWriter, r *http.Request) {
	params, err := s.Banners()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

// Handler routes the HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /trial", s.handleTrial)
	mux.HandleFunc("GET /simulate", s.handleSimulate)
	mux.HandleFunc("GET /banners", s.handleBanners)
	return mux
}
