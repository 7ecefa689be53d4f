package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-router/internal/analytics"
	"transfer-router/internal/fees"
	"transfer-router/internal/gateways"
	"transfer-router/internal/handlers"
	"transfer-router/internal/health"
	"transfer-router/internal/locks"
	"transfer-router/internal/orchestrator"
	"transfer-router/internal/phone"
	"transfer-router/internal/routing"
	"transfer-router/internal/stock"
)

type env struct {
	router  http.Handler
	routes  *routing.MemoryRouteRepository
	monitor *health.Monitor
	ledger  *stock.Ledger
	dynamic *routing.DynamicConfig
	tracker *analytics.Analytics
}

func newEnv(t *testing.T) *env {
	t.Helper()

	routes := routing.NewMemoryRouteRepository()
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	ledger := stock.NewLedger(stock.NewMemoryRepository(), locks.NewKeyedMutex(), nil)
	dynamic := routing.NewDynamicConfig(nil)
	operators := routing.NewOperatorDirectory()
	scorer := routing.NewScorer(monitor, ledger, dynamic, operators)
	bridge := routing.NewBridgeService(routes, monitor, ledger, []string{"CM", "SN"}, 0.5, nil)
	registry := gateways.NewRegistry()
	metrics := analytics.NewMetrics()
	tracker := analytics.New(metrics, nil)

	orch := orchestrator.New(
		orchestrator.Config{MaxRetries: 3, GatewayTimeout: 5 * time.Second},
		phone.NewResolver(), routes, scorer, dynamic, bridge,
		monitor, ledger, registry, fees.NewCalculator(1.0, 0), tracker, nil, nil,
	)

	h := handlers.New(orch, monitor, ledger, dynamic, routes, bridge, operators, registry, tracker, metrics, nil)
	return &env{
		router:  h.Router(),
		routes:  routes,
		monitor: monitor,
		ledger:  ledger,
		dynamic: dynamic,
		tracker: tracker,
	}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWeightsRoundTrip(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "GET", "/admin/config/weights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, routing.DefaultWeights(), decodeBody[routing.Weights](t, rec))

	rec = e.do(t, "PUT", "/admin/config/weights",
		routing.Weights{Cost: 40, Reliability: 30, Speed: 10, Stock: 10, Operator: 10})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, e.dynamic.Weights().Cost)

	rec = e.do(t, "PUT", "/admin/config/weights",
		routing.Weights{Cost: 99, Reliability: 30, Speed: 10, Stock: 10, Operator: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeightsMalformedBody(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest("PUT", "/admin/config/weights", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlacklistLifecycle(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/admin/blacklist/mtn_momo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, e.dynamic.IsBlacklisted("mtn_momo"))

	body := decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{"mtn_momo"}, body["blacklist"])

	rec = e.do(t, "DELETE", "/admin/blacklist/mtn_momo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, e.dynamic.IsBlacklisted("mtn_momo"))
}

func TestCorridorPreferences(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "PUT", "/admin/corridors/preferences", map[string]any{
		"source_country":    "CM",
		"dest_country":      "SN",
		"preferred_gateway": "wave",
		"bonus":             15,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	prefs := e.dynamic.CorridorPreferences()
	require.Contains(t, prefs, "CM->SN")
	assert.Equal(t, "wave", prefs["CM->SN"].PreferredGateway)

	// missing corridor fields
	rec = e.do(t, "PUT", "/admin/corridors/preferences", map[string]any{"bonus": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, "DELETE", "/admin/corridors/preferences?source=CM&dest=SN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, e.dynamic.CorridorPreferences())
}

func TestTemporaryRuleLifecycle(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/admin/rules/temporary", map[string]any{
		"gateway":     "wave",
		"score_delta": 10,
		"expires_at":  time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]string](t, rec)["id"]
	require.NotEmpty(t, id)

	rec = e.do(t, "GET", "/admin/rules/temporary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]routing.TemporaryRule](t, rec), 1)

	rec = e.do(t, "DELETE", "/admin/rules/temporary/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, "DELETE", "/admin/rules/temporary/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// missing expiry is malformed
	rec = e.do(t, "POST", "/admin/rules/temporary", map[string]any{"score_delta": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeBasedRuleLifecycle(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/admin/rules/time", map[string]any{
		"gateway":    "mtn_momo",
		"start_hour": 22,
		"end_hour":   6,
		"adjustment": -20,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]string](t, rec)["id"]

	rec = e.do(t, "DELETE", "/admin/rules/time/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, "POST", "/admin/rules/time", map[string]any{"start_hour": 30, "end_hour": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthSnapshotsAndReset(t *testing.T) {
	e := newEnv(t)

	for i := 0; i < 5; i++ {
		e.monitor.RecordFailure("wave", "provider error")
	}
	require.False(t, e.monitor.IsAvailable("wave"))

	rec := e.do(t, "GET", "/admin/health/wave", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody[health.Snapshot](t, rec)
	assert.Equal(t, "open", snap.State)

	rec = e.do(t, "POST", "/admin/health/wave/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, e.monitor.IsAvailable("wave"))
}

func TestStockEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/admin/stocks/credit", map[string]any{
		"gateway": "wave", "country": "SN", "amount": 500_000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(500_000), decodeBody[map[string]int64](t, rec)["balance"])

	rec = e.do(t, "GET", "/admin/stocks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*stock.Stock](t, rec), 1)

	rec = e.do(t, "POST", "/admin/stocks/credit", map[string]any{
		"gateway": "wave", "country": "SN", "amount": -5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouteCatalogEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/admin/routes", routing.Route{
		SourceCountry: "CM", DestCountry: "SN", Gateway: "wave", Priority: 10, FeePercent: 1.2, Enabled: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decodeBody[routing.Route](t, rec)
	assert.NotZero(t, saved.ID)

	rec = e.do(t, "GET", "/admin/routes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*routing.Route](t, rec), 1)

	rec = e.do(t, "POST", "/admin/routes", routing.Route{Gateway: "wave"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulateDryRun(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.routes.Upsert(ctx, &routing.Route{
		SourceCountry: "CM", DestCountry: "SN", Gateway: "wave", Priority: 10, FeePercent: 1.0, Enabled: true,
	}))
	require.NoError(t, e.ledger.Credit(ctx, "wave", "SN", 1_000_000))

	rec := e.do(t, "POST", "/admin/simulate", map[string]any{
		"sender_phone":    "+237650000001",
		"recipient_phone": "+221770000001",
		"amount":          100_000,
		"currency":        "XOF",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	decision := decodeBody[orchestrator.Decision](t, rec)
	assert.True(t, decision.Success)
	assert.Equal(t, orchestrator.PathDirect, decision.Path)

	// dry run leaves stock untouched
	assert.Equal(t, int64(1_000_000), e.ledger.Available(ctx, "wave", "SN"))
}

func TestSimulateBusinessFailureIs200(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/admin/simulate", map[string]any{
		"sender_phone":    "+237650000001",
		"recipient_phone": "+221770000001",
		"amount":          100_000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	decision := decodeBody[orchestrator.Decision](t, rec)
	assert.False(t, decision.Success)
	assert.Equal(t, orchestrator.FailureRoutingUnavailable, decision.FailureCode)
}

func TestSimulateMalformedIs400(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/admin/simulate", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	e := newEnv(t)

	e.tracker.RecordSuccess("wave", "CM->SN", 100_000, time.Second)
	e.tracker.RecordFailure("mtn_momo", "CM->SN", "timeout")

	rec := e.do(t, "GET", "/admin/analytics/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[analytics.Summary](t, rec)
	assert.Equal(t, int64(1), summary.TotalSuccess)

	rec = e.do(t, "GET", "/admin/analytics/gateways?top=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decodeBody[[]analytics.GatewayMetrics](t, rec)
	require.Len(t, top, 1)
	assert.Equal(t, "wave", top[0].Gateway)

	rec = e.do(t, "GET", "/admin/analytics/trend?days=200", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBridgeDiagnostics(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, r := range []*routing.Route{
		{SourceCountry: "GA", DestCountry: "CM", Gateway: "mtn_momo", FeePercent: 1.0, Enabled: true},
		{SourceCountry: "CM", DestCountry: "TD", Gateway: "orange_money", FeePercent: 1.5, Enabled: true},
	} {
		require.NoError(t, e.routes.Upsert(ctx, r))
	}
	require.NoError(t, e.ledger.Credit(ctx, "mtn_momo", "CM", 1_000_000))
	require.NoError(t, e.ledger.Credit(ctx, "orange_money", "TD", 1_000_000))

	rec := e.do(t, "GET", fmt.Sprintf("/admin/bridges?source=%s&dest=%s&amount=%d", "GA", "TD", 100_000), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string][]routing.BridgeRoute](t, rec)
	require.Len(t, body["bridges"], 1)

	rec = e.do(t, "GET", "/admin/bridges?source=GA&dest=TD", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)

	e.tracker.RecordSuccess("wave", "CM->SN", 100_000, time.Second)
	rec := e.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transfer_router_payouts_total")
}
