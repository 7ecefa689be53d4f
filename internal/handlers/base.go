// Package handlers implements the admin HTTP surface: runtime routing policy,
// health snapshots, analytics views, stock management and dry-run simulation.
// Business outcomes (no route, insufficient capacity) render as 200 with a
// descriptive body; only malformed requests get a 4xx.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transfer-router/internal/analytics"
	"transfer-router/internal/common/logging"
	"transfer-router/internal/gateways"
	"transfer-router/internal/health"
	"transfer-router/internal/orchestrator"
	"transfer-router/internal/routing"
	"transfer-router/internal/stock"
)

const maxBodyBytes = 1 << 20

// Handlers carries the admin surface dependencies
type Handlers struct {
	orch      *orchestrator.Orchestrator
	monitor   *health.Monitor
	ledger    *stock.Ledger
	dynamic   *routing.DynamicConfig
	routes    routing.RouteRepository
	bridge    *routing.BridgeService
	operators *routing.OperatorDirectory
	registry  *gateways.Registry
	tracker   *analytics.Analytics
	metrics   *analytics.Metrics
	logger    logging.Logger
}

// New creates the admin handlers
func New(
	orch *orchestrator.Orchestrator,
	monitor *health.Monitor,
	ledger *stock.Ledger,
	dynamic *routing.DynamicConfig,
	routes routing.RouteRepository,
	bridge *routing.BridgeService,
	operators *routing.OperatorDirectory,
	registry *gateways.Registry,
	tracker *analytics.Analytics,
	metrics *analytics.Metrics,
	logger logging.Logger,
) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		orch:      orch,
		monitor:   monitor,
		ledger:    ledger,
		dynamic:   dynamic,
		routes:    routes,
		bridge:    bridge,
		operators: operators,
		registry:  registry,
		tracker:   tracker,
		metrics:   metrics,
		logger:    logger.WithFields(logging.String("component", "handlers")),
	}
}

// Router builds the full admin mux
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	if h.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	admin := r.PathPrefix("/admin").Subrouter()

	admin.HandleFunc("/config", h.GetConfig).Methods("GET")
	admin.HandleFunc("/config/weights", h.GetWeights).Methods("GET")
	admin.HandleFunc("/config/weights", h.PutWeights).Methods("PUT")
	admin.HandleFunc("/config/thresholds", h.PutThresholds).Methods("PUT")

	admin.HandleFunc("/blacklist", h.GetBlacklist).Methods("GET")
	admin.HandleFunc("/blacklist/{gateway}", h.AddBlacklist).Methods("POST")
	admin.HandleFunc("/blacklist/{gateway}", h.RemoveBlacklist).Methods("DELETE")

	admin.HandleFunc("/corridors/preferences", h.GetCorridorPreferences).Methods("GET")
	admin.HandleFunc("/corridors/preferences", h.PutCorridorPreference).Methods("PUT")
	admin.HandleFunc("/corridors/preferences", h.DeleteCorridorPreference).Methods("DELETE")

	admin.HandleFunc("/rules/temporary", h.ListTemporaryRules).Methods("GET")
	admin.HandleFunc("/rules/temporary", h.AddTemporaryRule).Methods("POST")
	admin.HandleFunc("/rules/temporary/{id}", h.DeleteTemporaryRule).Methods("DELETE")
	admin.HandleFunc("/rules/time", h.ListTimeBasedRules).Methods("GET")
	admin.HandleFunc("/rules/time", h.AddTimeBasedRule).Methods("POST")
	admin.HandleFunc("/rules/time/{id}", h.DeleteTimeBasedRule).Methods("DELETE")

	admin.HandleFunc("/health", h.HealthSnapshots).Methods("GET")
	admin.HandleFunc("/health/{gateway}", h.HealthSnapshot).Methods("GET")
	admin.HandleFunc("/health/{gateway}/reset", h.ResetGateway).Methods("POST")

	admin.HandleFunc("/gateways", h.ListGateways).Methods("GET")
	admin.HandleFunc("/operators", h.ListOperators).Methods("GET")
	admin.HandleFunc("/operators/{operator}", h.SetOperator).Methods("PUT")

	admin.HandleFunc("/routes", h.ListRoutes).Methods("GET")
	admin.HandleFunc("/routes", h.UpsertRoute).Methods("POST")
	admin.HandleFunc("/bridges", h.FindBridges).Methods("GET")

	admin.HandleFunc("/stocks", h.ListStocks).Methods("GET")
	admin.HandleFunc("/stocks/low", h.LowStocks).Methods("GET")
	admin.HandleFunc("/stocks/credit", h.CreditStock).Methods("POST")

	admin.HandleFunc("/analytics/summary", h.AnalyticsSummary).Methods("GET")
	admin.HandleFunc("/analytics/gateways", h.AnalyticsGateways).Methods("GET")
	admin.HandleFunc("/analytics/corridors", h.AnalyticsCorridors).Methods("GET")
	admin.HandleFunc("/analytics/bridges", h.AnalyticsBridges).Methods("GET")
	admin.HandleFunc("/analytics/trend", h.AnalyticsTrend).Methods("GET")
	admin.HandleFunc("/analytics/recommendations", h.AnalyticsRecommendations).Methods("GET")
	admin.HandleFunc("/analytics/alerts", h.AnalyticsAlerts).Methods("GET")

	admin.HandleFunc("/simulate", h.Simulate).Methods("POST")

	return r
}

// Healthz reports process liveness
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(into); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
