package routing

import (
	"context"
	"sort"

	"transfer-router/internal/common/logging"
	"transfer-router/internal/health"
	"transfer-router/internal/stock"
)

// BridgeService discovers indirect corridors through one or two intermediate
// countries when no direct route serves a corridor. One-hop search considers
// every catalog country with prioritized hubs first; two-hop search is
// restricted to the hub set to bound the search space.
type BridgeService struct {
	repo    RouteRepository
	monitor *health.Monitor
	ledger  *stock.Ledger
	logger  logging.Logger

	// hubs are the prioritized intermediate countries
	hubs []string
	// overheadPercent is the fixed fee overhead added per hop
	overheadPercent float64
}

// NewBridgeService creates a bridge discovery service
func NewBridgeService(repo RouteRepository, monitor *health.Monitor, ledger *stock.Ledger, hubs []string, overheadPercent float64, logger logging.Logger) *BridgeService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &BridgeService{
		repo:            repo,
		monitor:         monitor,
		ledger:          ledger,
		hubs:            hubs,
		overheadPercent: overheadPercent,
		logger:          logger.WithFields(logging.String("component", "bridge")),
	}
}

// FindBestBridge returns the cheapest viable bridge for a corridor, or
// ErrNoBridgeRoute when none exists. Invoking it for a corridor with a
// direct route is an error: direct routing always wins.
func (s *BridgeService) FindBestBridge(ctx context.Context, source, dest string, amount int64) (*BridgeRoute, error) {
	exists, err := s.repo.ExistsRoute(ctx, source, dest)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDirectRouteExists
	}

	var best *BridgeRoute

	consider := func(candidate *BridgeRoute) {
		if candidate == nil {
			return
		}
		if best == nil || candidate.TotalFeePercent < best.TotalFeePercent {
			best = candidate
		}
	}

	for _, via := range s.oneHopCandidates(ctx, source, dest) {
		consider(s.tryOneHop(ctx, source, via, dest, amount))
	}

	for _, via1 := range s.hubs {
		if via1 == source || via1 == dest {
			continue
		}
		for _, via2 := range s.hubs {
			if via2 == source || via2 == dest || via2 == via1 {
				continue
			}
			consider(s.tryTwoHop(ctx, source, via1, via2, dest, amount))
		}
	}

	if best == nil {
		return nil, ErrNoBridgeRoute
	}

	s.logger.Info("bridge route selected",
		logging.String("path", best.Signature()),
		logging.Int64("amount", amount),
	)
	return best, nil
}

// FindAllBridgeRoutes enumerates every viable one-hop bridge for a corridor
// sorted by total fee, for diagnostics and the admin surface.
func (s *BridgeService) FindAllBridgeRoutes(ctx context.Context, source, dest string, amount int64) ([]*BridgeRoute, error) {
	exists, err := s.repo.ExistsRoute(ctx, source, dest)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDirectRouteExists
	}

	var bridges []*BridgeRoute
	for _, via := range s.oneHopCandidates(ctx, source, dest) {
		if bridge := s.tryOneHop(ctx, source, via, dest, amount); bridge != nil {
			bridges = append(bridges, bridge)
		}
	}

	sort.SliceStable(bridges, func(i, j int) bool {
		return bridges[i].TotalFeePercent < bridges[j].TotalFeePercent
	})
	return bridges, nil
}

// oneHopCandidates returns hub countries first, then every other catalog
// country, excluding the endpoints and duplicates.
func (s *BridgeService) oneHopCandidates(ctx context.Context, source, dest string) []string {
	seen := map[string]struct{}{source: {}, dest: {}}
	var candidates []string

	for _, hub := range s.hubs {
		if _, dup := seen[hub]; dup {
			continue
		}
		seen[hub] = struct{}{}
		candidates = append(candidates, hub)
	}

	countries, err := s.repo.Countries(ctx)
	if err != nil {
		s.logger.Error("failed to load catalog countries", err)
		return candidates
	}
	for _, country := range countries {
		if _, dup := seen[country]; dup {
			continue
		}
		seen[country] = struct{}{}
		candidates = append(candidates, country)
	}
	return candidates
}

func (s *BridgeService) tryOneHop(ctx context.Context, source, via, dest string, amount int64) *BridgeRoute {
	leg1 := s.cheapestViableLeg(ctx, source, via, amount)
	if leg1 == nil {
		return nil
	}
	leg2 := s.cheapestViableLeg(ctx, via, dest, amount)
	if leg2 == nil {
		return nil
	}

	return &BridgeRoute{
		SourceCountry:   source,
		DestCountry:     dest,
		Intermediates:   []string{via},
		Legs:            []BridgeLeg{*leg1, *leg2},
		TotalFeePercent: leg1.FeePercent + leg2.FeePercent + s.overheadPercent,
	}
}

func (s *BridgeService) tryTwoHop(ctx context.Context, source, via1, via2, dest string, amount int64) *BridgeRoute {
	leg1 := s.cheapestViableLeg(ctx, source, via1, amount)
	if leg1 == nil {
		return nil
	}
	leg2 := s.cheapestViableLeg(ctx, via1, via2, amount)
	if leg2 == nil {
		return nil
	}
	leg3 := s.cheapestViableLeg(ctx, via2, dest, amount)
	if leg3 == nil {
		return nil
	}

	return &BridgeRoute{
		SourceCountry:   source,
		DestCountry:     dest,
		Intermediates:   []string{via1, via2},
		Legs:            []BridgeLeg{*leg1, *leg2, *leg3},
		TotalFeePercent: leg1.FeePercent + leg2.FeePercent + leg3.FeePercent + 2*s.overheadPercent,
	}
}

// cheapestViableLeg picks the cheapest route for one leg whose gateway is
// health-available and whose stock at the leg destination covers the amount.
func (s *BridgeService) cheapestViableLeg(ctx context.Context, source, dest string, amount int64) *BridgeLeg {
	routes, err := s.repo.FindActiveRoutes(ctx, source, dest)
	if err != nil {
		s.logger.Error("failed to load leg routes", err,
			logging.String("corridor", CorridorKey(source, dest)))
		return nil
	}

	var cheapest *Route
	for _, route := range routes {
		if !s.monitor.IsAvailable(route.Gateway) {
			continue
		}
		if !s.ledger.Covers(ctx, route.Gateway, dest, amount) {
			continue
		}
		if cheapest == nil || route.FeePercent < cheapest.FeePercent {
			cheapest = route
		}
	}
	if cheapest == nil {
		return nil
	}

	return &BridgeLeg{
		SourceCountry: source,
		DestCountry:   dest,
		Gateway:       cheapest.Gateway,
		FeePercent:    cheapest.FeePercent,
	}
}
