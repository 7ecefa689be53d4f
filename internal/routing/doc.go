// Package routing holds the decision-making pieces of the transfer router:
// the static route catalog, the multi-criteria route scorer, the mutable
// runtime policy (DynamicConfig) and the bridge corridor search used when no
// direct route exists.
//
// The orchestrator composes these into full routing strategies; nothing in
// this package executes payouts or mutates stock.
package routing
