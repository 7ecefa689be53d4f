// Package errors provides the structured error taxonomy shared across the
// routing engine. Business-rule failures (no route, capacity shortfall) are
// folded into result types by the orchestrator; AppError covers everything
// that crosses component boundaries as a real error.
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeRoutingUnavailable means no corridor route exists or none survived scoring
	ErrTypeRoutingUnavailable ErrorType = "routing_unavailable"
	// ErrTypeGatewayFailure represents a per-attempt gateway execution failure
	ErrTypeGatewayFailure ErrorType = "gateway_failure"
	// ErrTypeInsufficientCapacity means combined gateway stock cannot cover a split payout
	ErrTypeInsufficientCapacity ErrorType = "insufficient_capacity"
	// ErrTypeStockViolation means a debit would drive a stock balance negative
	ErrTypeStockViolation ErrorType = "stock_violation"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeConnection, Message: msg, Cause: cause}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{Type: ErrTypeTimeout, Message: fmt.Sprintf("timeout during %s", operation)}
}

// RoutingUnavailableError creates an error for a corridor with no usable route
func RoutingUnavailableError(msg string) *AppError {
	return &AppError{Type: ErrTypeRoutingUnavailable, Message: msg}
}

// GatewayFailureError creates an error for a failed gateway attempt
func GatewayFailureError(gateway, msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeGatewayFailure,
		Message: msg,
		Cause:   cause,
		Context: map[string]interface{}{"gateway": gateway},
	}
}

// InsufficientCapacityError creates an error for a split-payment shortfall
func InsufficientCapacityError(shortfall int64) *AppError {
	return &AppError{
		Type:    ErrTypeInsufficientCapacity,
		Message: fmt.Sprintf("combined gateway capacity short by %d", shortfall),
		Context: map[string]interface{}{"shortfall": shortfall},
	}
}

// StockViolationError creates an error for a debit that would exceed balance.
// Admission checks should make this unreachable.
func StockViolationError(gateway, country string, balance, amount int64) *AppError {
	return &AppError{
		Type:    ErrTypeStockViolation,
		Message: "stock debit would drive balance negative",
		Context: map[string]interface{}{
			"gateway": gateway,
			"country": country,
			"balance": balance,
			"amount":  amount,
		},
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}
	return appErr.Type
}
