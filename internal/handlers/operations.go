package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"transfer-router/internal/common/logging"
	"transfer-router/internal/orchestrator"
)

// HealthSnapshots returns every gateway's breaker state and counters
func (h *Handlers) HealthSnapshots(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.monitor.SnapshotAll())
}

// HealthSnapshot returns one gateway's breaker state and counters
func (h *Handlers) HealthSnapshot(w http.ResponseWriter, r *http.Request) {
	gateway := mux.Vars(r)["gateway"]
	h.writeJSON(w, http.StatusOK, h.monitor.Snapshot(gateway))
}

// ResetGateway manually closes a gateway's circuit
func (h *Handlers) ResetGateway(w http.ResponseWriter, r *http.Request) {
	gateway := mux.Vars(r)["gateway"]
	h.monitor.ResetGateway(gateway)
	h.logger.Info("gateway manually reset", logging.String("gateway", gateway))
	h.writeJSON(w, http.StatusOK, h.monitor.Snapshot(gateway))
}

// ListStocks returns every stock row
func (h *Handlers) ListStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.ledger.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list stocks", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list stocks")
		return
	}
	h.writeJSON(w, http.StatusOK, stocks)
}

// LowStocks returns stock rows at or below their minimum threshold
func (h *Handlers) LowStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.ledger.BelowThreshold(r.Context())
	if err != nil {
		h.logger.Error("failed to list low stocks", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list low stocks")
		return
	}
	h.writeJSON(w, http.StatusOK, stocks)
}

type creditStockRequest struct {
	Gateway string `json:"gateway"`
	Country string `json:"country"`
	Amount  int64  `json:"amount"`
}

// CreditStock tops up a (gateway,country) balance
func (h *Handlers) CreditStock(w http.ResponseWriter, r *http.Request) {
	var req creditStockRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Gateway == "" || req.Country == "" || req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "gateway, country and a positive amount are required")
		return
	}

	if err := h.ledger.Credit(r.Context(), req.Gateway, req.Country, req.Amount); err != nil {
		h.logger.Error("failed to credit stock", err,
			logging.String("gateway", req.Gateway),
			logging.String("country", req.Country))
		h.writeError(w, http.StatusInternalServerError, "failed to credit stock")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{
		"balance": h.ledger.Available(r.Context(), req.Gateway, req.Country),
	})
}

// AnalyticsSummary returns the global rollup
func (h *Handlers) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.tracker.Summary())
}

// AnalyticsGateways returns per-gateway metrics, or top-N with ?top=n
func (h *Handlers) AnalyticsGateways(w http.ResponseWriter, r *http.Request) {
	if top := r.URL.Query().Get("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		h.writeJSON(w, http.StatusOK, h.tracker.TopGateways(n))
		return
	}
	h.writeJSON(w, http.StatusOK, h.tracker.AllGatewayMetrics())
}

// AnalyticsCorridors returns per-corridor metrics, or the problematic set
func (h *Handlers) AnalyticsCorridors(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("problematic") == "true" {
		h.writeJSON(w, http.StatusOK, h.tracker.ProblematicCorridors())
		return
	}
	h.writeJSON(w, http.StatusOK, h.tracker.CorridorMetrics())
}

// AnalyticsBridges returns per-bridge metrics, or the problematic set
func (h *Handlers) AnalyticsBridges(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("problematic") == "true" {
		h.writeJSON(w, http.StatusOK, h.tracker.ProblematicBridges())
		return
	}
	h.writeJSON(w, http.StatusOK, h.tracker.BridgeMetrics())
}

// AnalyticsTrend returns the last n days of totals (?days=n, default 7)
func (h *Handlers) AnalyticsTrend(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 || n > 90 {
			h.writeError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = n
	}
	h.writeJSON(w, http.StatusOK, h.tracker.DailyTrend(days))
}

// AnalyticsRecommendations returns derived tuning hints
func (h *Handlers) AnalyticsRecommendations(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.tracker.Recommendations())
}

// AnalyticsAlerts returns the currently active alerts
func (h *Handlers) AnalyticsAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.tracker.ActiveAlerts())
}

// Simulate runs the unified routing decision as a dry run. Nothing executes
// and no stock moves; business failures come back as 200 with the structured
// decision.
func (h *Handlers) Simulate(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if !h.decode(w, r, &req) {
		return
	}
	if req.SenderPhone == "" || req.RecipientPhone == "" || req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "sender_phone, recipient_phone and a positive amount are required")
		return
	}

	decision, err := h.orch.Decide(r.Context(), &req)
	if err != nil {
		h.logger.Error("simulation failed", err)
		h.writeError(w, http.StatusInternalServerError, "simulation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, decision)
}

// ListGateways returns the configured gateway client names
func (h *Handlers) ListGateways(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]string{"gateways": h.registry.Names()})
}

// ListOperators returns the known destination operators
func (h *Handlers) ListOperators(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]string{"operators": h.operators.Operators()})
}

type setOperatorRequest struct {
	Gateways []string `json:"gateways"`
}

// SetOperator replaces the supported-gateway set for an operator
func (h *Handlers) SetOperator(w http.ResponseWriter, r *http.Request) {
	operator := mux.Vars(r)["operator"]
	var req setOperatorRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.operators.SetOperator(operator, req.Gateways)
	h.writeJSON(w, http.StatusOK, map[string]any{"operator": operator, "gateways": req.Gateways})
}
