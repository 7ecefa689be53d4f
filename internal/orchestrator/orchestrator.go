// Package orchestrator is the decision and execution core of the router. It
// turns a transfer request into a routing strategy over scored direct routes,
// plans split payments for large amounts, falls back to bridge discovery when
// no direct corridor exists, and executes strategies against gateway clients
// with automatic failover.
//
// Business-rule failures (no route, insufficient capacity, undetectable
// country) never surface as Go errors; they are folded into the structured
// Result so the API layer can render them as descriptive non-fault responses.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"transfer-router/internal/analytics"
	"transfer-router/internal/common/logging"
	"transfer-router/internal/events"
	"transfer-router/internal/fees"
	"transfer-router/internal/gateways"
	"transfer-router/internal/health"
	"transfer-router/internal/phone"
	"transfer-router/internal/routing"
	"transfer-router/internal/stock"
)

// StrategyType tags how a transfer will be executed
type StrategyType string

const (
	StrategySingleWithFallback StrategyType = "SINGLE_WITH_FALLBACK"
	StrategySplit              StrategyType = "SPLIT"
)

// FailureCode classifies structured business failures
type FailureCode string

const (
	FailureNone                 FailureCode = ""
	FailureUndetectableCountry  FailureCode = "UNDETECTABLE_COUNTRY"
	FailureRoutingUnavailable   FailureCode = "ROUTING_UNAVAILABLE"
	FailureInsufficientCapacity FailureCode = "INSUFFICIENT_CAPACITY"
)

// Request is one inbound transfer to route
type Request struct {
	Reference      string `json:"reference"`
	SenderPhone    string `json:"sender_phone"`
	RecipientPhone string `json:"recipient_phone"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Operator       string `json:"operator,omitempty"`
}

// Allocation is one gateway's share of a split payment
type Allocation struct {
	Gateway string `json:"gateway"`
	Amount  int64  `json:"amount"`
}

// Strategy is the execution plan produced by orchestration
type Strategy struct {
	Type StrategyType `json:"type"`
	// Gateways is the ordered fallback list for SINGLE_WITH_FALLBACK
	Gateways []string `json:"gateways,omitempty"`
	// Allocations is the per-gateway amount plan for SPLIT
	Allocations []Allocation `json:"allocations,omitempty"`
	UseStock    bool         `json:"use_stock"`
}

// Result is the structured orchestration outcome. Success false with a
// FailureCode is a business outcome, not a fault.
type Result struct {
	Success       bool                  `json:"success"`
	FailureCode   FailureCode           `json:"failure_code,omitempty"`
	ErrorMessage  string                `json:"error_message,omitempty"`
	SourceCountry string                `json:"source_country,omitempty"`
	DestCountry   string                `json:"dest_country,omitempty"`
	Amount        int64                 `json:"amount"`
	Shortfall     int64                 `json:"shortfall,omitempty"`
	Strategy      *Strategy             `json:"strategy,omitempty"`
	Fees          *fees.Breakdown       `json:"fees,omitempty"`
	ScoredRoutes  []*routing.RouteScore `json:"scored_routes,omitempty"`
}

// PathType tags which routing path a unified decision took
type PathType string

const (
	PathDirect PathType = "DIRECT"
	PathBridge PathType = "BRIDGE"
	PathSplit  PathType = "SPLIT"
)

// Decision is the unified routing outcome: one entry point regardless of
// whether the transfer goes direct, over a bridge, or split across gateways.
type Decision struct {
	Path         PathType             `json:"path"`
	Success      bool                 `json:"success"`
	FailureCode  FailureCode          `json:"failure_code,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Result       *Result              `json:"result,omitempty"`
	Bridge       *routing.BridgeRoute `json:"bridge,omitempty"`
	Fees         *fees.Breakdown      `json:"fees,omitempty"`
}

// Config holds the orchestrator tunables. The split threshold lives in
// DynamicConfig so it stays hot-reloadable.
type Config struct {
	MaxRetries     int
	GatewayTimeout time.Duration
}

// Orchestrator composes scoring, policy, stock, health, bridging and gateway
// execution into transfer decisions.
type Orchestrator struct {
	config    Config
	resolver  *phone.Resolver
	routes    routing.RouteRepository
	scorer    *routing.Scorer
	dynamic   *routing.DynamicConfig
	bridge    *routing.BridgeService
	monitor   *health.Monitor
	ledger    *stock.Ledger
	registry  *gateways.Registry
	fees      fees.Calculator
	analytics *analytics.Analytics
	publisher events.Publisher
	logger    logging.Logger
}

// New creates the orchestrator over its collaborators
func New(
	config Config,
	resolver *phone.Resolver,
	routes routing.RouteRepository,
	scorer *routing.Scorer,
	dynamic *routing.DynamicConfig,
	bridge *routing.BridgeService,
	monitor *health.Monitor,
	ledger *stock.Ledger,
	registry *gateways.Registry,
	calculator fees.Calculator,
	tracker *analytics.Analytics,
	publisher events.Publisher,
	logger logging.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Orchestrator{
		config:    config,
		resolver:  resolver,
		routes:    routes,
		scorer:    scorer,
		dynamic:   dynamic,
		bridge:    bridge,
		monitor:   monitor,
		ledger:    ledger,
		registry:  registry,
		fees:      calculator,
		analytics: tracker,
		publisher: publisher,
		logger:    logger.WithFields(logging.String("component", "orchestrator")),
	}
}

// Orchestrate builds a routing strategy for a request without executing
// anything. It never debits stock; the admin simulation endpoint exposes it
// directly as a dry run.
func (o *Orchestrator) Orchestrate(ctx context.Context, req *Request) (*Result, error) {
	source, err := o.resolver.CountryForPhone(req.SenderPhone)
	if err != nil {
		return failure(req, FailureUndetectableCountry,
			"cannot determine sender country from phone number"), nil
	}
	dest, err := o.resolver.CountryForPhone(req.RecipientPhone)
	if err != nil {
		return failure(req, FailureUndetectableCountry,
			"cannot determine recipient country from phone number"), nil
	}

	if req.Amount > o.dynamic.SplitThreshold() {
		return o.planSplit(ctx, req, source, dest)
	}

	routes, err := o.routes.FindActiveRoutes(ctx, source, dest)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		result := failure(req, FailureRoutingUnavailable,
			fmt.Sprintf("no active routes for corridor %s", routing.CorridorKey(source, dest)))
		result.SourceCountry = source
		result.DestCountry = dest
		return result, nil
	}

	scored := o.scorer.ScoreRoutes(ctx, routes, req.Amount, dest, req.Operator)

	minScore := o.dynamic.MinScoreThreshold()
	qualifying := make([]*routing.RouteScore, 0, len(scored))
	for _, s := range scored {
		if s.Available && s.TotalScore >= minScore {
			qualifying = append(qualifying, s)
		}
	}
	if len(qualifying) == 0 {
		result := failure(req, FailureRoutingUnavailable,
			fmt.Sprintf("no route scored above %d for corridor %s", minScore, routing.CorridorKey(source, dest)))
		result.SourceCountry = source
		result.DestCountry = dest
		result.ScoredRoutes = scored
		return result, nil
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].TotalScore > qualifying[j].TotalScore
	})

	// distinct gateways across qualifying routes, in score order
	seen := make(map[string]struct{})
	var order []string
	for _, s := range qualifying {
		if _, dup := seen[s.Route.Gateway]; dup {
			continue
		}
		seen[s.Route.Gateway] = struct{}{}
		order = append(order, s.Route.Gateway)
	}

	primary := qualifying[0]
	breakdown := o.fees.CalculateFees(req.Amount, primary.Route.FeePercent)

	return &Result{
		Success:       true,
		SourceCountry: source,
		DestCountry:   dest,
		Amount:        req.Amount,
		Strategy: &Strategy{
			Type:     StrategySingleWithFallback,
			Gateways: order,
			UseStock: o.ledger.Covers(ctx, primary.Route.Gateway, dest, req.Amount),
		},
		Fees:         &breakdown,
		ScoredRoutes: qualifying,
	}, nil
}

// planSplit allocates a large amount greedily across healthy gateways by
// descending stock capacity. Nothing executes when total capacity falls short.
func (o *Orchestrator) planSplit(ctx context.Context, req *Request, source, dest string) (*Result, error) {
	routes, err := o.routes.FindActiveRoutes(ctx, source, dest)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		result := failure(req, FailureRoutingUnavailable,
			fmt.Sprintf("no active routes for corridor %s", routing.CorridorKey(source, dest)))
		result.SourceCountry = source
		result.DestCountry = dest
		return result, nil
	}

	type capacity struct {
		gateway string
		balance int64
	}
	seen := make(map[string]struct{})
	var capacities []capacity
	for _, route := range routes {
		if _, dup := seen[route.Gateway]; dup {
			continue
		}
		seen[route.Gateway] = struct{}{}
		if !o.monitor.IsAvailable(route.Gateway) || o.dynamic.IsBlacklisted(route.Gateway) {
			continue
		}
		if balance := o.ledger.Available(ctx, route.Gateway, dest); balance > 0 {
			capacities = append(capacities, capacity{gateway: route.Gateway, balance: balance})
		}
	}

	sort.SliceStable(capacities, func(i, j int) bool {
		if capacities[i].balance != capacities[j].balance {
			return capacities[i].balance > capacities[j].balance
		}
		return capacities[i].gateway < capacities[j].gateway
	})

	var allocations []Allocation
	remaining := req.Amount
	for _, c := range capacities {
		if remaining <= 0 {
			break
		}
		take := c.balance
		if take > remaining {
			take = remaining
		}
		allocations = append(allocations, Allocation{Gateway: c.gateway, Amount: take})
		remaining -= take
	}

	if remaining > 0 {
		result := failure(req, FailureInsufficientCapacity,
			fmt.Sprintf("insufficient gateway capacity: short %d for corridor %s",
				remaining, routing.CorridorKey(source, dest)))
		result.SourceCountry = source
		result.DestCountry = dest
		result.Shortfall = remaining
		return result, nil
	}

	// fee breakdown from the largest allocation's cheapest route
	breakdown := o.fees.CalculateFees(req.Amount, cheapestFeeFor(routes, allocations[0].Gateway))

	return &Result{
		Success:       true,
		SourceCountry: source,
		DestCountry:   dest,
		Amount:        req.Amount,
		Strategy: &Strategy{
			Type:        StrategySplit,
			Allocations: allocations,
			UseStock:    true,
		},
		Fees: &breakdown,
	}, nil
}

func cheapestFeeFor(routes []*routing.Route, gateway string) float64 {
	best := -1.0
	for _, r := range routes {
		if r.Gateway != gateway {
			continue
		}
		if best < 0 || r.FeePercent < best {
			best = r.FeePercent
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// Decide is the unified routing entry point: direct routing first, bridge
// discovery only when the corridor has no direct result, one tagged decision
// either way.
func (o *Orchestrator) Decide(ctx context.Context, req *Request) (*Decision, error) {
	result, err := o.Orchestrate(ctx, req)
	if err != nil {
		return nil, err
	}

	if result.Success {
		path := PathDirect
		if result.Strategy != nil && result.Strategy.Type == StrategySplit {
			path = PathSplit
		}
		return &Decision{Path: path, Success: true, Result: result, Fees: result.Fees}, nil
	}

	// only a routing-unavailable outcome falls through to bridge discovery
	if result.FailureCode != FailureRoutingUnavailable || result.SourceCountry == "" {
		return &Decision{
			Path:         PathDirect,
			Success:      false,
			FailureCode:  result.FailureCode,
			ErrorMessage: result.ErrorMessage,
			Result:       result,
		}, nil
	}

	bridge, err := o.bridge.FindBestBridge(ctx, result.SourceCountry, result.DestCountry, req.Amount)
	if err != nil {
		if err == routing.ErrNoBridgeRoute || err == routing.ErrDirectRouteExists {
			return &Decision{
				Path:         PathDirect,
				Success:      false,
				FailureCode:  result.FailureCode,
				ErrorMessage: result.ErrorMessage,
				Result:       result,
			}, nil
		}
		return nil, err
	}

	breakdown := o.fees.CalculateFees(req.Amount, bridge.TotalFeePercent)
	return &Decision{
		Path:    PathBridge,
		Success: true,
		Bridge:  bridge,
		Fees:    &breakdown,
	}, nil
}

func failure(req *Request, code FailureCode, message string) *Result {
	return &Result{
		Success:      false,
		FailureCode:  code,
		ErrorMessage: message,
		Amount:       req.Amount,
	}
}
