package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"semidex-go/internal/database"
	"semidex-go/internal/ledger"
	"semidex-go/internal/models"
	"semidex-go/internal/registry"
	"semidex-go/internal/swap"
)

// CallerHeader carries the identity of the account making a request.
const CallerHeader = "X-Caller"

const maxBodyBytes = 1 << 20

// TradeLister reads the trade journal.
type TradeLister interface {
	ListTrades(ctx context.Context, filter database.TradeFilter) ([]models.Trade, error)
}

// Handler holds dependencies for the API endpoints.
type Handler struct {
	log      *zap.Logger
	registry *registry.Registry
	engine   *swap.Engine
	trades   TradeLister         // optional
	gatherer prometheus.Gatherer // optional
}

// NewHandler creates a new Handler. trades and gatherer may be nil.
func NewHandler(log *zap.Logger, reg *registry.Registry, engine *swap.Engine, trades TradeLister, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		log:      log.Named("api"),
		registry: reg,
		engine:   engine,
		trades:   trades,
		gatherer: gatherer,
	}
}

// Routes returns the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HealthHandler)

	mux.HandleFunc("GET /api/pairs", h.ListPairsHandler)
	mux.HandleFunc("POST /api/pairs", h.AddPairHandler)
	mux.HandleFunc("GET /api/pairs/{id}", h.GetPairHandler)
	mux.HandleFunc("DELETE /api/pairs/{id}", h.RemovePairHandler)
	mux.HandleFunc("GET /api/pairs/{id}/details", h.PairDetailsHandler)
	mux.HandleFunc("PUT /api/pairs/{id}/rate", h.UpdateRateHandler)
	mux.HandleFunc("POST /api/pairs/{id}/quote", h.QuoteHandler)
	mux.HandleFunc("POST /api/pairs/{id}/trade", h.TradeHandler)

	mux.HandleFunc("GET /api/events", h.EventsHandler)
	mux.HandleFunc("GET /api/trades", h.TradesHandler)

	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// PairView is a stored pair with its removed flag.
type PairView struct {
	registry.Pair
	Removed bool `json:"removed"`
}

// PairsResponse is the structure for the /api/pairs endpoint.
type PairsResponse struct {
	Count uint64     `json:"count"`
	Pairs []PairView `json:"pairs"`
}

// AddPairRequest is the body of POST /api/pairs.
type AddPairRequest struct {
	TokenA   string `json:"token_a"`
	TokenB   string `json:"token_b"`
	RateAtoB string `json:"rate_a_to_b"`
	ReserveA string `json:"reserve_a"`
	ReserveB string `json:"reserve_b"`
}

// UpdateRateRequest is the body of PUT /api/pairs/{id}/rate.
type UpdateRateRequest struct {
	RateAtoB string `json:"rate_a_to_b"`
}

// TradeRequest is the body of the quote and trade endpoints.
type TradeRequest struct {
	InputToken  string `json:"input_token"`
	InputAmount string `json:"input_amount"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthHandler reports liveness.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// ListPairsHandler returns every pair ever created, removed ones included.
func (h *Handler) ListPairsHandler(w http.ResponseWriter, r *http.Request) {
	pairs := h.registry.List()
	resp := PairsResponse{Count: uint64(len(pairs)), Pairs: make([]PairView, 0, len(pairs))}
	for _, p := range pairs {
		resp.Pairs = append(resp.Pairs, PairView{Pair: p, Removed: p.IsRemoved()})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// AddPairHandler registers a new pair.
func (h *Handler) AddPairHandler(w http.ResponseWriter, r *http.Request) {
	var req AddPairRequest
	if !h.decode(w, r, &req) {
		return
	}
	rate, err := parseAmount("rate_a_to_b", req.RateAtoB)
	if err != nil {
		h.writeError(w, err)
		return
	}

	id, err := h.registry.AddPair(r.Context(), caller(r),
		ledger.Address(req.TokenA), ledger.Address(req.TokenB), rate,
		ledger.Address(req.ReserveA), ledger.Address(req.ReserveB))
	if err != nil {
		h.writeError(w, err)
		return
	}

	pair, err := h.registry.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, PairView{Pair: pair})
}

// GetPairHandler returns one stored pair.
func (h *Handler) GetPairHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	pair, err := h.registry.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PairView{Pair: pair, Removed: pair.IsRemoved()})
}

// PairDetailsHandler returns a pair with token metadata and live reserve balances.
func (h *Handler) PairDetailsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	details, err := h.registry.GetDetails(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

// UpdateRateHandler overwrites the rate of a pair.
func (h *Handler) UpdateRateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req UpdateRateRequest
	if !h.decode(w, r, &req) {
		return
	}
	rate, err := parseAmount("rate_a_to_b", req.RateAtoB)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.registry.UpdateRate(r.Context(), caller(r), id, rate); err != nil {
		h.writeError(w, err)
		return
	}
	pair, err := h.registry.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PairView{Pair: pair, Removed: pair.IsRemoved()})
}

// RemovePairHandler tombstones a pair.
func (h *Handler) RemovePairHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.registry.Remove(r.Context(), caller(r), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QuoteHandler prices a trade without moving funds.
func (h *Handler) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	id, token, amount, ok := h.tradeArgs(w, r)
	if !ok {
		return
	}
	q, err := h.engine.Quote(id, token, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

// TradeHandler sells input_amount of input_token to the pair for the caller.
func (h *Handler) TradeHandler(w http.ResponseWriter, r *http.Request) {
	trader := caller(r)
	if trader.IsNull() {
		h.writeError(w, fmt.Errorf("%s header is required: %w", CallerHeader, registry.ErrInvalidArgument))
		return
	}
	id, token, amount, ok := h.tradeArgs(w, r)
	if !ok {
		return
	}
	receipt, err := h.engine.Trade(r.Context(), trader, id, token, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

// EventsHandler returns the NewPair log.
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.Events())
}

// TradesHandler returns journaled trades, most recent first.
// Optional query parameters: pair_id, caller, limit.
func (h *Handler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	if h.trades == nil {
		h.writeJSON(w, http.StatusOK, []models.Trade{})
		return
	}

	var filter database.TradeFilter
	query := r.URL.Query()
	if raw := query.Get("pair_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, fmt.Errorf("invalid pair_id %q: %w", raw, registry.ErrInvalidArgument))
			return
		}
		filter.PairID = &id
	}
	filter.Caller = query.Get("caller")
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, fmt.Errorf("invalid limit %q: %w", raw, registry.ErrInvalidArgument))
			return
		}
		filter.Limit = limit
	}

	trades, err := h.trades.ListTrades(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	h.writeJSON(w, http.StatusOK, trades)
}

func (h *Handler) tradeArgs(w http.ResponseWriter, r *http.Request) (registry.PairID, ledger.Address, math.Int, bool) {
	id, err := pairID(r)
	if err != nil {
		h.writeError(w, err)
		return 0, "", math.Int{}, false
	}
	var req TradeRequest
	if !h.decode(w, r, &req) {
		return 0, "", math.Int{}, false
	}
	amount, err := parseAmount("input_amount", req.InputAmount)
	if err != nil {
		h.writeError(w, err)
		return 0, "", math.Int{}, false
	}
	return id, ledger.Address(req.InputToken), amount, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeError(w, fmt.Errorf("malformed request body: %v: %w", err, registry.ErrInvalidArgument))
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, registry.ErrUnauthorized):
		status = http.StatusForbidden
		msg = registry.ErrUnauthorized.Error()
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, swap.ErrSettlement):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", zap.Error(err))
	}
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}

func caller(r *http.Request) ledger.Address {
	return ledger.Address(r.Header.Get(CallerHeader))
}

func pairID(r *http.Request) (registry.PairID, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pair id %q: %w", raw, registry.ErrInvalidArgument)
	}
	return registry.PairID(id), nil
}

func parseAmount(field, raw string) (math.Int, error) {
	v, ok := math.NewIntFromString(raw)
	if !ok {
		return math.Int{}, fmt.Errorf("%s must be a decimal integer, got %q: %w", field, raw, registry.ErrInvalidArgument)
	}
	return v, nil
}
