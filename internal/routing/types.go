package routing

import "fmt"

// Route is a static configured corridor edge. Routes are admin-managed and
// rarely mutated; scoring happens against live health and stock signals.
type Route struct {
	ID            int64   `json:"id"`
	SourceCountry string  `json:"source_country"`
	DestCountry   string  `json:"dest_country"`
	Gateway       string  `json:"gateway"`
	Priority      int     `json:"priority"`
	FeePercent    float64 `json:"fee_percent"`
	Enabled       bool    `json:"enabled"`
}

// Corridor returns the canonical "SRC->DST" key for this route
func (r *Route) Corridor() string {
	return CorridorKey(r.SourceCountry, r.DestCountry)
}

// CorridorKey builds the canonical corridor key
func CorridorKey(source, dest string) string {
	return source + "->" + dest
}

// RouteScore is the ephemeral scoring result for one candidate route.
// Component scores are each 0-100; Total is their weighted average after the
// dynamic rule pipeline. Never persisted.
type RouteScore struct {
	Route            *Route `json:"route"`
	CostScore        int    `json:"cost_score"`
	ReliabilityScore int    `json:"reliability_score"`
	SpeedScore       int    `json:"speed_score"`
	StockScore       int    `json:"stock_score"`
	OperatorScore    int    `json:"operator_score"`
	TotalScore       int    `json:"total_score"`
	Available        bool   `json:"available"`
}

// BridgeLeg is one hop of an indirect corridor
type BridgeLeg struct {
	SourceCountry string  `json:"source_country"`
	DestCountry   string  `json:"dest_country"`
	Gateway       string  `json:"gateway"`
	FeePercent    float64 `json:"fee_percent"`
}

// BridgeRoute is an ephemeral indirect corridor through one or two
// intermediate countries. TotalFeePercent includes the fixed per-hop
// overhead.
type BridgeRoute struct {
	SourceCountry   string      `json:"source_country"`
	DestCountry     string      `json:"dest_country"`
	Intermediates   []string    `json:"intermediates"`
	Legs            []BridgeLeg `json:"legs"`
	TotalFeePercent float64     `json:"total_fee_percent"`
}

// Signature returns the canonical path key, e.g. "CM->GA->SN"
func (b *BridgeRoute) Signature() string {
	sig := b.SourceCountry
	for _, via := range b.Intermediates {
		sig += "->" + via
	}
	return sig + "->" + b.DestCountry
}

func (b *BridgeRoute) String() string {
	return fmt.Sprintf("%s (%.2f%%)", b.Signature(), b.TotalFeePercent)
}
