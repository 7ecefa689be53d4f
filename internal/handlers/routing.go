package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"transfer-router/internal/common/logging"
	"transfer-router/internal/routing"
)

// GetConfig returns the whole runtime routing policy
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.dynamic.Snapshot())
}

// GetWeights returns the current scoring weights
func (h *Handlers) GetWeights(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.dynamic.Weights())
}

// PutWeights replaces the scoring weights
func (h *Handlers) PutWeights(w http.ResponseWriter, r *http.Request) {
	var weights routing.Weights
	if !h.decode(w, r, &weights) {
		return
	}
	if err := h.dynamic.SetWeights(weights); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, weights)
}

type thresholdsRequest struct {
	MinScoreThreshold *int   `json:"min_score_threshold,omitempty"`
	SplitThreshold    *int64 `json:"split_threshold,omitempty"`
}

// PutThresholds updates the min score and split thresholds
func (h *Handlers) PutThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.MinScoreThreshold != nil {
		if err := h.dynamic.SetMinScoreThreshold(*req.MinScoreThreshold); err != nil {
			h.writeError(w, http.StatusBadRequest, "min_score_threshold must be between 0 and 100")
			return
		}
	}
	if req.SplitThreshold != nil {
		if err := h.dynamic.SetSplitThreshold(*req.SplitThreshold); err != nil {
			h.writeError(w, http.StatusBadRequest, "split_threshold must be positive")
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"min_score_threshold": h.dynamic.MinScoreThreshold(),
		"split_threshold":     h.dynamic.SplitThreshold(),
	})
}

// GetBlacklist lists blacklisted gateways
func (h *Handlers) GetBlacklist(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]string{"blacklist": h.dynamic.Blacklisted()})
}

// AddBlacklist blacklists a gateway
func (h *Handlers) AddBlacklist(w http.ResponseWriter, r *http.Request) {
	gateway := mux.Vars(r)["gateway"]
	h.dynamic.Blacklist(gateway)
	h.writeJSON(w, http.StatusOK, map[string][]string{"blacklist": h.dynamic.Blacklisted()})
}

// RemoveBlacklist removes a gateway from the blacklist
func (h *Handlers) RemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	gateway := mux.Vars(r)["gateway"]
	h.dynamic.Unblacklist(gateway)
	h.writeJSON(w, http.StatusOK, map[string][]string{"blacklist": h.dynamic.Blacklisted()})
}

// GetCorridorPreferences lists corridor preference entries
func (h *Handlers) GetCorridorPreferences(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.dynamic.CorridorPreferences())
}

type corridorPreferenceRequest struct {
	SourceCountry string `json:"source_country"`
	DestCountry   string `json:"dest_country"`
	routing.CorridorPreference
}

// PutCorridorPreference sets the preference entry for a corridor
func (h *Handlers) PutCorridorPreference(w http.ResponseWriter, r *http.Request) {
	var req corridorPreferenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SourceCountry == "" || req.DestCountry == "" {
		h.writeError(w, http.StatusBadRequest, "source_country and dest_country are required")
		return
	}
	h.dynamic.SetCorridorPreference(req.SourceCountry, req.DestCountry, req.CorridorPreference)
	h.writeJSON(w, http.StatusOK, h.dynamic.CorridorPreferences())
}

// DeleteCorridorPreference removes the preference entry for a corridor
func (h *Handlers) DeleteCorridorPreference(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	dest := r.URL.Query().Get("dest")
	if source == "" || dest == "" {
		h.writeError(w, http.StatusBadRequest, "source and dest query parameters are required")
		return
	}
	h.dynamic.DeleteCorridorPreference(source, dest)
	h.writeJSON(w, http.StatusOK, h.dynamic.CorridorPreferences())
}

// ListTemporaryRules lists stored temporary rules, expired included
func (h *Handlers) ListTemporaryRules(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.dynamic.TemporaryRules())
}

// AddTemporaryRule stores a temporary rule and returns its ID
func (h *Handlers) AddTemporaryRule(w http.ResponseWriter, r *http.Request) {
	var rule routing.TemporaryRule
	if !h.decode(w, r, &rule) {
		return
	}
	id, err := h.dynamic.AddTemporaryRule(rule)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "expires_at is required")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteTemporaryRule removes a temporary rule
func (h *Handlers) DeleteTemporaryRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.dynamic.DeleteTemporaryRule(id); err != nil {
		h.writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTimeBasedRules lists stored time-based rules
func (h *Handlers) ListTimeBasedRules(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.dynamic.TimeBasedRules())
}

// AddTimeBasedRule stores a time-based rule and returns its ID
func (h *Handlers) AddTimeBasedRule(w http.ResponseWriter, r *http.Request) {
	var rule routing.TimeBasedRule
	if !h.decode(w, r, &rule) {
		return
	}
	id, err := h.dynamic.AddTimeBasedRule(rule)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "start_hour must be 0-23 and end_hour 0-24")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteTimeBasedRule removes a time-based rule
func (h *Handlers) DeleteTimeBasedRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.dynamic.DeleteTimeBasedRule(id); err != nil {
		h.writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRoutes returns the whole route catalog
func (h *Handlers) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.routes.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list routes", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list routes")
		return
	}
	h.writeJSON(w, http.StatusOK, routes)
}

// UpsertRoute creates or replaces a catalog route
func (h *Handlers) UpsertRoute(w http.ResponseWriter, r *http.Request) {
	var route routing.Route
	if !h.decode(w, r, &route) {
		return
	}
	if route.SourceCountry == "" || route.DestCountry == "" || route.Gateway == "" {
		h.writeError(w, http.StatusBadRequest, "source_country, dest_country and gateway are required")
		return
	}
	if err := h.routes.Upsert(r.Context(), &route); err != nil {
		h.logger.Error("failed to upsert route", err,
			logging.String("corridor", route.Corridor()))
		h.writeError(w, http.StatusInternalServerError, "failed to save route")
		return
	}
	h.writeJSON(w, http.StatusOK, route)
}

// FindBridges lists viable bridge paths for a corridor, cheapest first.
// A corridor already served directly is a business outcome, not a fault.
func (h *Handlers) FindBridges(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	dest := r.URL.Query().Get("dest")
	if source == "" || dest == "" {
		h.writeError(w, http.StatusBadRequest, "source and dest query parameters are required")
		return
	}
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "amount must be a positive integer")
		return
	}

	bridges, err := h.bridge.FindAllBridgeRoutes(r.Context(), source, dest, amount)
	if err == routing.ErrDirectRouteExists {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"bridges": []any{},
			"message": "corridor is served by a direct route",
		})
		return
	}
	if err != nil {
		h.logger.Error("bridge discovery failed", err)
		h.writeError(w, http.StatusInternalServerError, "bridge discovery failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"bridges": bridges})
}
