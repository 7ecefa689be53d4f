package routing

import (
	"context"
	"sort"
	"sync"
	"time"

	"transfer-router/internal/health"
	"transfer-router/internal/stock"
)

// OperatorDirectory maps destination mobile operators to the gateways that
// can pay them out. Admin-managed; lookups are read-heavy.
type OperatorDirectory struct {
	supported map[string]map[string]struct{}
	mu        sync.RWMutex
}

// NewOperatorDirectory creates an empty operator directory
func NewOperatorDirectory() *OperatorDirectory {
	return &OperatorDirectory{supported: make(map[string]map[string]struct{})}
}

// SetOperator replaces the supported-gateway set for an operator
func (d *OperatorDirectory) SetOperator(operator string, gateways []string) {
	set := make(map[string]struct{}, len(gateways))
	for _, g := range gateways {
		set[g] = struct{}{}
	}
	d.mu.Lock()
	d.supported[operator] = set
	d.mu.Unlock()
}

// Supports returns (supported, known): whether the operator's gateway set
// includes the gateway, and whether the operator is known at all.
func (d *OperatorDirectory) Supports(operator, gateway string) (bool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set, known := d.supported[operator]
	if !known {
		return false, false
	}
	_, supported := set[gateway]
	return supported, true
}

// Operators returns the known operator names in stable order
func (d *OperatorDirectory) Operators() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.supported))
	for name := range d.supported {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const (
	// neutralSpeedScore applies when a gateway has no latency samples yet
	neutralSpeedScore = 80
	// neutralOperatorScore applies when the destination operator is unknown
	neutralOperatorScore = 70
	// maxFeePercent is the fee at which the cost score bottoms out
	maxFeePercent = 5.0
	// maxLatency is the latency at which the speed score bottoms out
	maxLatency = 10 * time.Second
	// stockComfortMultiple is the balance multiple that earns a full stock score
	stockComfortMultiple = 10
)

// Scorer computes the weighted multi-criteria score for candidate routes.
// A route on an unavailable circuit scores zero regardless of its merits.
type Scorer struct {
	monitor   *health.Monitor
	ledger    *stock.Ledger
	dynamic   *DynamicConfig
	operators *OperatorDirectory

	// now is swappable for tests
	now func() time.Time
}

// NewScorer creates a route scorer over the live health, stock and policy state
func NewScorer(monitor *health.Monitor, ledger *stock.Ledger, dynamic *DynamicConfig, operators *OperatorDirectory) *Scorer {
	return &Scorer{
		monitor:   monitor,
		ledger:    ledger,
		dynamic:   dynamic,
		operators: operators,
		now:       time.Now,
	}
}

// CalculateScore scores one candidate route for an amount toward a
// destination. Components are each 0-100; the total is their weighted
// average, integer-truncated, then run through the dynamic rule pipeline.
func (s *Scorer) CalculateScore(ctx context.Context, route *Route, amount int64, destCountry, destOperator string) *RouteScore {
	score := &RouteScore{Route: route}

	if !s.monitor.IsAvailable(route.Gateway) {
		return score
	}
	score.Available = true

	score.CostScore = costScore(route.FeePercent)
	score.ReliabilityScore = s.monitor.ReliabilityScore(route.Gateway)
	score.SpeedScore = s.speedScore(route.Gateway)
	score.StockScore = s.stockScore(ctx, route.Gateway, destCountry, amount)
	score.OperatorScore = s.operatorScore(destOperator, route.Gateway)

	w := s.dynamic.Weights()
	weighted := score.CostScore*w.Cost +
		score.ReliabilityScore*w.Reliability +
		score.SpeedScore*w.Speed +
		score.StockScore*w.Stock +
		score.OperatorScore*w.Operator
	base := weighted / 100

	score.TotalScore = s.dynamic.ApplyRules(base, route.Gateway, route.SourceCountry, route.DestCountry, amount, s.now())
	return score
}

// ScoreRoutes scores every candidate, preserving input order for ties
func (s *Scorer) ScoreRoutes(ctx context.Context, routes []*Route, amount int64, destCountry, destOperator string) []*RouteScore {
	scores := make([]*RouteScore, 0, len(routes))
	for _, route := range routes {
		scores = append(scores, s.CalculateScore(ctx, route, amount, destCountry, destOperator))
	}
	return scores
}

// costScore maps fee percent linearly from 0% -> 100 down to 5%+ -> 0
func costScore(feePercent float64) int {
	if feePercent <= 0 {
		return 100
	}
	if feePercent >= maxFeePercent {
		return 0
	}
	return int(100 - feePercent*100/maxFeePercent)
}

// speedScore maps average latency linearly from 0 -> 100 down to 10s+ -> 0;
// gateways with no samples get a neutral 80.
func (s *Scorer) speedScore(gateway string) int {
	if !s.monitor.HasLatencyData(gateway) {
		return neutralSpeedScore
	}
	avg := s.monitor.AverageLatency(gateway)
	if avg >= maxLatency {
		return 0
	}
	return int(100 - avg.Milliseconds()*100/maxLatency.Milliseconds())
}

// stockScore is 0 when the balance cannot cover the amount, 100 at ten times
// the amount, linear in between.
func (s *Scorer) stockScore(ctx context.Context, gateway, destCountry string, amount int64) int {
	if amount <= 0 {
		return 100
	}
	balance := s.ledger.Available(ctx, gateway, destCountry)
	if balance < amount {
		return 0
	}
	comfort := amount * stockComfortMultiple
	if balance >= comfort {
		return 100
	}
	return int((balance - amount) * 100 / (comfort - amount))
}

func (s *Scorer) operatorScore(operator, gateway string) int {
	if operator == "" {
		return neutralOperatorScore
	}
	supported, known := s.operators.Supports(operator, gateway)
	if !known {
		return neutralOperatorScore
	}
	if supported {
		return 100
	}
	return 0
}
