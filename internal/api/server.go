// Package api provides the HTTP control surface for the simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/engine"
	"github.com/talgya/mini-economy/internal/history"
	"github.com/talgya/mini-economy/internal/metrics"
)

// HistoryStore serves persisted history. *persistence.DB satisfies it.
type HistoryStore interface {
	RecentDays(ctx context.Context, runID string, limit int) ([]economy.DailyStat, error)
	AgentDays(ctx context.Context, runID string, agentID, limit int) ([]history.AgentRecord, error)
}

// Server serves the simulation over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Driver   *engine.Driver
	Hub      *Hub
	Store    HistoryStore // Optional; per-agent history is unavailable without it
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Admin limiter: requests per IP per minute.
	AdminRate int

	limiter *RateLimiter
	srv     *http.Server
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	if s.limiter == nil {
		rate := s.AdminRate
		if rate <= 0 {
			rate = 60
		}
		s.limiter = NewRateLimiter(rate, time.Minute)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints.
		r.Get("/status", s.handleStatus)
		r.Get("/agents", s.handleAgents)
		r.Get("/agents/{agentID}", s.handleAgent)
		r.Get("/agents/{agentID}/days", s.handleAgentDays)
		r.Get("/history", s.handleHistory)
		r.Get("/buybacks", s.handleBuybacks)
		r.Get("/logs", s.handleLogs)
		if s.Hub != nil {
			r.Get("/ws", s.Hub.HandleWS)
		}

		// Admin endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Use(s.limiter.Middleware)
			r.Post("/step", s.handleStep)
			r.Post("/run", s.handleRun)
			r.Post("/pause", s.handlePause)
			r.Post("/reset", s.handleReset)
		})
	})
	return r
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires the admin bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeError(w, http.StatusForbidden, "admin endpoints disabled (no ECONSIM_ADMIN_KEY set)")
			return
		}
		if !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	l := snap.Ledger

	status := map[string]any{
		"name":           "mini-economy",
		"run_id":         snap.RunID,
		"day":            snap.Day,
		"busy":           snap.Busy,
		"auto_advance":   s.Driver != nil && s.Driver.Running(),
		"agents":         len(snap.Agents),
		"price":          l.MarketPrice,
		"trend":          l.PriceTrend,
		"reserve_meme":   l.ReserveMeme,
		"reserve_lvmon":  l.ReserveLvMON,
		"reservoir":      l.ReservoirLvMON,
		"total_wealth":   l.TotalWealth,
		"total_staked":   l.TotalStakedMeme,
		"medal_pool":     l.TotalMedalsInPool,
		"staking_apy":    l.StakingAPY(),
		"buyback_count":  len(l.BuybackHistory),
		"oracle_enabled": s.Sim.OracleEnabled(),
	}
	if s.Driver != nil {
		status["auto_advance_every"] = s.Driver.Every().String()
	}
	writeJSON(w, http.StatusOK, status)
}

// agentView adds valuation fields to an agent.
type agentView struct {
	agents.Agent
	NetWorth float64 `json:"net_worth"`
	PnL      float64 `json:"pnl"`
}

func viewOf(a agents.Agent, price float64) agentView {
	return agentView{Agent: a, NetWorth: a.NetWorth(price), PnL: a.PnL()}
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	result := make([]agentView, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		result = append(result, viewOf(a, snap.Ledger.MarketPrice))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	snap := s.Sim.Snapshot()
	for _, a := range snap.Agents {
		if int(a.ID) == id {
			writeJSON(w, http.StatusOK, viewOf(a, snap.Ledger.MarketPrice))
			return
		}
	}
	writeError(w, http.StatusNotFound, "agent not found")
}

func (s *Server) handleAgentDays(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	days, err := s.Store.AgentDays(r.Context(), s.Sim.RunID(), id, queryLimit(r, 30))
	if err != nil {
		slog.Error("agent history query failed", "agent", id, "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if days == nil {
		days = []history.AgentRecord{}
	}
	writeJSON(w, http.StatusOK, days)
}

// handleHistory serves the in-memory daily stats, or the persisted ones
// with ?source=db.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 0)
	if r.URL.Query().Get("source") == "db" {
		if s.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "history store not configured")
			return
		}
		if limit == 0 {
			limit = 365
		}
		stats, err := s.Store.RecentDays(r.Context(), s.Sim.RunID(), limit)
		if err != nil {
			slog.Error("history query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "history query failed")
			return
		}
		if stats == nil {
			stats = []economy.DailyStat{}
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	stats := s.Sim.Snapshot().History
	if limit > 0 && len(stats) > limit {
		stats = stats[len(stats)-limit:]
	}
	if stats == nil {
		stats = []economy.DailyStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleBuybacks(w http.ResponseWriter, r *http.Request) {
	recs := s.Sim.Snapshot().Ledger.BuybackHistory
	if recs == nil {
		recs = []economy.BuybackRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Events(queryLimit(r, 100)))
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	// The day runs to completion even if the client goes away.
	res, err := s.Sim.RunDay(context.WithoutCancel(r.Context()))
	if err != nil {
		var inv *engine.InvariantError
		switch {
		case errors.Is(err, engine.ErrDayInProgress):
			writeError(w, http.StatusConflict, "a day is already in progress")
		case errors.As(err, &inv):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.Driver == nil {
		writeError(w, http.StatusServiceUnavailable, "auto-advance not configured")
		return
	}
	if err := s.Driver.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auto_advance": true, "every": s.Driver.Every().String()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if s.Driver != nil {
		s.Driver.Pause()
	}
	writeJSON(w, http.StatusOK, map[string]any{"auto_advance": false})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.Reset(); err != nil {
		if errors.Is(err, engine.ErrDayInProgress) {
			writeError(w, http.StatusConflict, "a day is in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.Hub != nil {
		s.Hub.Broadcast(WSMessage{Type: "reset", Note: s.Sim.RunID()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": s.Sim.RunID(), "day": 1})
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
