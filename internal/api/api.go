// Package api serves the read side over HTTP: decisions, positions, trade
// history, metrics and the live trade stream.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/ledger"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/metrics"
	"fusion-trader/internal/types"
)

// MarkSource supplies last-seen prices for equity. *engine.Engine implements it.
type MarkSource interface {
	Marks() map[string]decimal.Decimal
}

type Server struct {
	engine    interfaces.Engine
	ledger    *ledger.Ledger
	marks     MarkSource
	ws        http.HandlerFunc
	watchlist map[string]bool
}

// New builds the server. marks and ws may be nil; an empty watchlist serves
// decisions for any instrument.
func New(eng interfaces.Engine, l *ledger.Ledger, marks MarkSource, ws http.HandlerFunc, watchlist []string) *Server {
	wl := make(map[string]bool, len(watchlist))
	for _, w := range watchlist {
		wl[strings.ToUpper(w)] = true
	}
	return &Server{engine: eng, ledger: l, marks: marks, ws: ws, watchlist: wl}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"fusion-trader"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.ws != nil {
			r.Get("/ws", s.ws)
		}
		r.With(middleware.Timeout(30 * time.Second)).Group(func(r chi.Router) {
			r.Get("/decisions/{instrument}", s.GetDecision)
			r.Get("/positions", s.ListPositions)
			r.Get("/portfolio", s.GetPortfolio)
			r.Get("/trades", s.ListTrades)
		})
	})
	return r
}

// GetDecision handles GET /api/v1/decisions/{instrument}
func (s *Server) GetDecision(w http.ResponseWriter, r *http.Request) {
	instrument := strings.ToUpper(chi.URLParam(r, "instrument"))
	if len(s.watchlist) > 0 && !s.watchlist[instrument] {
		writeError(w, "instrument not on watchlist", http.StatusNotFound)
		return
	}
	res, err := s.engine.GetDecision(r.Context(), instrument)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Decision lookup failed", err, "instrument", instrument)
		writeError(w, "decision unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListPositions handles GET /api/v1/positions
func (s *Server) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.ledger.Store().Positions(r.Context())
	if err != nil {
		logger.ErrorWithErr(r.Context(), "List positions failed", err)
		writeError(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []types.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

type portfolio struct {
	Cash      decimal.Decimal  `json:"cash"`
	Exposure  decimal.Decimal  `json:"exposure"`
	Equity    decimal.Decimal  `json:"equity"`
	Positions []types.Position `json:"positions"`
}

// GetPortfolio handles GET /api/v1/portfolio
func (s *Server) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var marks map[string]decimal.Decimal
	if s.marks != nil {
		marks = s.marks.Marks()
	}
	cash, err := s.ledger.Store().Cash(ctx)
	if err != nil {
		writeError(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	exposure, err := s.ledger.Exposure(ctx, marks)
	if err != nil {
		writeError(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	positions, err := s.ledger.Store().Positions(ctx)
	if err != nil {
		writeError(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []types.Position{}
	}
	writeJSON(w, http.StatusOK, portfolio{Cash: cash, Exposure: exposure, Equity: cash.Add(exposure), Positions: positions})
}

// ListTrades handles GET /api/v1/trades?instrument=&from=&to=
// from is inclusive, to exclusive; both accept RFC3339 or YYYY-MM-DD.
func (s *Server) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.TradeFilter{Instrument: strings.ToUpper(q.Get("instrument"))}
	var err error
	if f.From, err = parseTime(q.Get("from")); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.To, err = parseTime(q.Get("to")); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		writeError(w, "to must be after from", http.StatusBadRequest)
		return
	}

	trades, err := s.ledger.Store().Trades(r.Context(), f)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "List trades failed", err)
		writeError(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []types.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
