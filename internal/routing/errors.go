package routing

import "errors"

var (
	// ErrInvalidWeights is returned when scoring weights do not sum to 100
	ErrInvalidWeights = errors.New("scoring weights must sum to 100")

	// ErrRuleNotFound is returned when a dynamic rule is not found
	ErrRuleNotFound = errors.New("routing rule not found")

	// ErrInvalidRule is returned when a dynamic rule is invalid
	ErrInvalidRule = errors.New("invalid routing rule")

	// ErrNoBridgeRoute is returned when no viable bridge corridor exists
	ErrNoBridgeRoute = errors.New("no viable bridge route")

	// ErrDirectRouteExists is returned when bridge discovery is invoked for a
	// corridor that has a direct route
	ErrDirectRouteExists = errors.New("direct route exists, bridge routing not applicable")
)
