// Package analytics accumulates routing outcome counters and derives the
// operational views the admin surface serves: per-gateway and per-corridor
// metrics, alerts, daily trends and tuning recommendations. All counters are
// lock-free; records live in sync.Maps with atomic fields so the hot payout
// path never blocks on a reporting query.
package analytics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"transfer-router/internal/common/logging"
)

const (
	// alertFailureStreak is the consecutive failure count that raises an alert
	alertFailureStreak = 3
	// alertTTL is how long a raised alert stays active
	alertTTL = time.Hour
	// retentionDays is how long daily history is kept before pruning
	retentionDays = 90

	dayFormat = "2006-01-02"
)

// gatewayRecord accumulates outcomes for one gateway
type gatewayRecord struct {
	success             atomic.Int64
	failure             atomic.Int64
	fallback            atomic.Int64
	volume              atomic.Int64
	totalLatencyMs      atomic.Int64
	consecutiveFailures atomic.Int64
}

// pairRecord accumulates outcomes for a corridor or bridge signature
type pairRecord struct {
	success atomic.Int64
	failure atomic.Int64
}

// Alert is a raised operational alert, auto-expiring after its TTL
type Alert struct {
	ID        string    `json:"id"`
	Gateway   string    `json:"gateway"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GatewayMetrics is the reporting view of one gateway's counters
type GatewayMetrics struct {
	Gateway      string  `json:"gateway"`
	Success      int64   `json:"success"`
	Failure      int64   `json:"failure"`
	Fallback     int64   `json:"fallback"`
	Volume       int64   `json:"volume"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
}

// PairMetrics is the reporting view of a corridor or bridge signature
type PairMetrics struct {
	Key         string  `json:"key"`
	Success     int64   `json:"success"`
	Failure     int64   `json:"failure"`
	FailureRate float64 `json:"failure_rate"`
}

// DayMetrics is one calendar day's totals
type DayMetrics struct {
	Day     string `json:"day"`
	Success int64  `json:"success"`
	Failure int64  `json:"failure"`
	Volume  int64  `json:"volume"`
}

// Summary is the global rollup
type Summary struct {
	TotalSuccess int64   `json:"total_success"`
	TotalFailure int64   `json:"total_failure"`
	TotalVolume  int64   `json:"total_volume"`
	SuccessRate  float64 `json:"success_rate"`
	Gateways     int     `json:"gateways"`
	Corridors    int     `json:"corridors"`
	ActiveAlerts int     `json:"active_alerts"`
}

// Recommendation is a tuning hint derived from accumulated metrics
type Recommendation struct {
	Target  string `json:"target"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type dayRecord struct {
	success atomic.Int64
	failure atomic.Int64
	volume  atomic.Int64
}

// Analytics is the shared outcome accumulator
type Analytics struct {
	gateways  sync.Map // gateway -> *gatewayRecord
	corridors sync.Map // "SRC->DST" -> *pairRecord
	bridges   sync.Map // "SRC->HUB->DST" -> *pairRecord
	days      sync.Map // "2006-01-02" -> *dayRecord

	alertMu sync.Mutex
	alerts  map[string]*Alert

	metrics *Metrics
	logger  logging.Logger

	// now is swappable for tests
	now func() time.Time
}

// New creates an analytics accumulator. metrics may be nil when Prometheus
// export is not wanted.
func New(metrics *Metrics, logger logging.Logger) *Analytics {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Analytics{
		alerts:  make(map[string]*Alert),
		metrics: metrics,
		logger:  logger.WithFields(logging.String("component", "analytics")),
		now:     time.Now,
	}
}

func (a *Analytics) gateway(name string) *gatewayRecord {
	if rec, ok := a.gateways.Load(name); ok {
		return rec.(*gatewayRecord)
	}
	rec, _ := a.gateways.LoadOrStore(name, &gatewayRecord{})
	return rec.(*gatewayRecord)
}

func (a *Analytics) pair(m *sync.Map, key string) *pairRecord {
	if rec, ok := m.Load(key); ok {
		return rec.(*pairRecord)
	}
	rec, _ := m.LoadOrStore(key, &pairRecord{})
	return rec.(*pairRecord)
}

func (a *Analytics) day() *dayRecord {
	key := a.now().Format(dayFormat)
	if rec, ok := a.days.Load(key); ok {
		return rec.(*dayRecord)
	}
	rec, _ := a.days.LoadOrStore(key, &dayRecord{})
	return rec.(*dayRecord)
}

// RecordSuccess records a successful payout through a gateway on a corridor
func (a *Analytics) RecordSuccess(gateway, corridor string, amount int64, latency time.Duration) {
	rec := a.gateway(gateway)
	rec.success.Add(1)
	rec.volume.Add(amount)
	rec.totalLatencyMs.Add(latency.Milliseconds())
	rec.consecutiveFailures.Store(0)

	a.pair(&a.corridors, corridor).success.Add(1)

	day := a.day()
	day.success.Add(1)
	day.volume.Add(amount)

	if a.metrics != nil {
		a.metrics.payouts.WithLabelValues(gateway, "success").Inc()
	}
}

// RecordFailure records a failed payout attempt. Three consecutive failures on
// a gateway raise a one-hour alert.
func (a *Analytics) RecordFailure(gateway, corridor, reason string) {
	rec := a.gateway(gateway)
	rec.failure.Add(1)
	streak := rec.consecutiveFailures.Add(1)

	a.pair(&a.corridors, corridor).failure.Add(1)
	a.day().failure.Add(1)

	if a.metrics != nil {
		a.metrics.payouts.WithLabelValues(gateway, "failure").Inc()
	}

	if streak == alertFailureStreak {
		a.raiseAlert(gateway, reason)
	}
}

// RecordFallback records that execution fell through to a further gateway
func (a *Analytics) RecordFallback(gateway string) {
	a.gateway(gateway).fallback.Add(1)
	if a.metrics != nil {
		a.metrics.fallbacks.WithLabelValues(gateway).Inc()
	}
}

// RecordBridgeSuccess records a successful payout over a bridge path
func (a *Analytics) RecordBridgeSuccess(signature string) {
	a.pair(&a.bridges, signature).success.Add(1)
}

// RecordBridgeFailure records a failed payout over a bridge path
func (a *Analytics) RecordBridgeFailure(signature string) {
	a.pair(&a.bridges, signature).failure.Add(1)
}

func (a *Analytics) raiseAlert(gateway, reason string) {
	now := a.now()
	alert := &Alert{
		ID:        uuid.NewString(),
		Gateway:   gateway,
		Message:   "3 consecutive failures: " + reason,
		CreatedAt: now,
		ExpiresAt: now.Add(alertTTL),
	}

	a.alertMu.Lock()
	a.alerts[alert.ID] = alert
	a.alertMu.Unlock()

	a.logger.Warn("gateway alert raised",
		logging.String("gateway", gateway),
		logging.String("reason", reason),
	)
}

// ActiveAlerts returns the alerts that have not yet expired, newest first
func (a *Analytics) ActiveAlerts() []Alert {
	now := a.now()

	a.alertMu.Lock()
	defer a.alertMu.Unlock()

	active := make([]Alert, 0, len(a.alerts))
	for _, alert := range a.alerts {
		if now.Before(alert.ExpiresAt) {
			active = append(active, *alert)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	return active
}

// ExpireAlerts removes expired alerts; run from the cron sweep
func (a *Analytics) ExpireAlerts() int {
	now := a.now()

	a.alertMu.Lock()
	defer a.alertMu.Unlock()

	removed := 0
	for id, alert := range a.alerts {
		if !now.Before(alert.ExpiresAt) {
			delete(a.alerts, id)
			removed++
		}
	}
	return removed
}

// Summary returns the global rollup across all gateways
func (a *Analytics) Summary() Summary {
	var s Summary
	a.gateways.Range(func(_, v any) bool {
		rec := v.(*gatewayRecord)
		s.TotalSuccess += rec.success.Load()
		s.TotalFailure += rec.failure.Load()
		s.TotalVolume += rec.volume.Load()
		s.Gateways++
		return true
	})
	a.corridors.Range(func(_, _ any) bool {
		s.Corridors++
		return true
	})
	if total := s.TotalSuccess + s.TotalFailure; total > 0 {
		s.SuccessRate = float64(s.TotalSuccess) / float64(total)
	}
	s.ActiveAlerts = len(a.ActiveAlerts())
	return s
}

// GatewayMetrics returns the counters for one gateway
func (a *Analytics) GatewayMetrics(gateway string) GatewayMetrics {
	return gatewayView(gateway, a.gateway(gateway))
}

// AllGatewayMetrics returns every gateway's counters sorted by name
func (a *Analytics) AllGatewayMetrics() []GatewayMetrics {
	var result []GatewayMetrics
	a.gateways.Range(func(k, v any) bool {
		result = append(result, gatewayView(k.(string), v.(*gatewayRecord)))
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Gateway < result[j].Gateway })
	return result
}

func gatewayView(name string, rec *gatewayRecord) GatewayMetrics {
	m := GatewayMetrics{
		Gateway:  name,
		Success:  rec.success.Load(),
		Failure:  rec.failure.Load(),
		Fallback: rec.fallback.Load(),
		Volume:   rec.volume.Load(),
	}
	if total := m.Success + m.Failure; total > 0 {
		m.SuccessRate = float64(m.Success) / float64(total)
	}
	if m.Success > 0 {
		m.AvgLatencyMs = rec.totalLatencyMs.Load() / m.Success
	}
	return m
}

// CorridorMetrics returns the counters for every corridor sorted by key
func (a *Analytics) CorridorMetrics() []PairMetrics {
	return pairViews(&a.corridors)
}

// BridgeMetrics returns the counters for every bridge path sorted by key
func (a *Analytics) BridgeMetrics() []PairMetrics {
	return pairViews(&a.bridges)
}

func pairViews(m *sync.Map) []PairMetrics {
	var result []PairMetrics
	m.Range(func(k, v any) bool {
		result = append(result, pairView(k.(string), v.(*pairRecord)))
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

func pairView(key string, rec *pairRecord) PairMetrics {
	p := PairMetrics{Key: key, Success: rec.success.Load(), Failure: rec.failure.Load()}
	if total := p.Success + p.Failure; total > 0 {
		p.FailureRate = float64(p.Failure) / float64(total)
	}
	return p
}

// TopGateways returns the n highest-volume gateways, descending
func (a *Analytics) TopGateways(n int) []GatewayMetrics {
	all := a.AllGatewayMetrics()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Volume > all[j].Volume })
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// ProblematicCorridors returns corridors failing over 5% with at least 5 samples
func (a *Analytics) ProblematicCorridors() []PairMetrics {
	return problematic(a.CorridorMetrics(), 0.05, 5)
}

// ProblematicBridges returns bridge paths failing over 10% with more than 3 samples
func (a *Analytics) ProblematicBridges() []PairMetrics {
	return problematic(a.BridgeMetrics(), 0.10, 4)
}

func problematic(all []PairMetrics, rate float64, minSamples int64) []PairMetrics {
	var result []PairMetrics
	for _, p := range all {
		if p.Success+p.Failure >= minSamples && p.FailureRate > rate {
			result = append(result, p)
		}
	}
	return result
}

// DailyTrend returns the last n days of totals, oldest first. Days with no
// traffic are included as zero rows.
func (a *Analytics) DailyTrend(days int) []DayMetrics {
	result := make([]DayMetrics, 0, days)
	today := a.now()
	for i := days - 1; i >= 0; i-- {
		key := today.AddDate(0, 0, -i).Format(dayFormat)
		dm := DayMetrics{Day: key}
		if rec, ok := a.days.Load(key); ok {
			day := rec.(*dayRecord)
			dm.Success = day.success.Load()
			dm.Failure = day.failure.Load()
			dm.Volume = day.volume.Load()
		}
		result = append(result, dm)
	}
	return result
}

// Recommendations derives tuning hints: gateways with low success or high
// latency after 10 samples, corridors failing over 10% after 5 samples.
func (a *Analytics) Recommendations() []Recommendation {
	var recs []Recommendation

	for _, gw := range a.AllGatewayMetrics() {
		if gw.Success+gw.Failure < 10 {
			continue
		}
		if gw.SuccessRate < 0.90 {
			recs = append(recs, Recommendation{
				Target:  gw.Gateway,
				Kind:    "low_success_rate",
				Message: "consider lowering priority or blacklisting: success rate below 90%",
			})
		}
		if gw.AvgLatencyMs > 5000 {
			recs = append(recs, Recommendation{
				Target:  gw.Gateway,
				Kind:    "high_latency",
				Message: "average latency above 5s: consider reducing the speed weight exposure",
			})
		}
	}

	for _, c := range a.CorridorMetrics() {
		if c.Success+c.Failure >= 5 && c.FailureRate > 0.10 {
			recs = append(recs, Recommendation{
				Target:  c.Key,
				Kind:    "failing_corridor",
				Message: "corridor failure rate above 10%: review routes and gateway coverage",
			})
		}
	}
	return recs
}

// Prune drops daily rows older than the retention window; run from the cron
// sweep. Returns the number of rows removed.
func (a *Analytics) Prune() int {
	cutoff := a.now().AddDate(0, 0, -retentionDays).Format(dayFormat)

	removed := 0
	a.days.Range(func(k, _ any) bool {
		if k.(string) < cutoff {
			a.days.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		a.logger.Info("pruned daily analytics", logging.Int("rows", removed))
	}
	return removed
}
