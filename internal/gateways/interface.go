// Package gateways defines the contract to external mobile-money providers
// and a registry of configured provider clients. The routing engine only ever
// talks to gateways through the PayoutGateway interface; the wire protocol of
// any specific provider lives behind its client.
package gateways

import (
	"context"
	"time"
)

// PayoutStatus is the lifecycle state of a payout at the provider
type PayoutStatus string

const (
	StatusPending   PayoutStatus = "PENDING"
	StatusSucceeded PayoutStatus = "SUCCEEDED"
	StatusFailed    PayoutStatus = "FAILED"
	StatusUnknown   PayoutStatus = "UNKNOWN"
)

// PayoutRequest is the provider-neutral payout instruction
type PayoutRequest struct {
	Reference      string `json:"reference"`
	RecipientPhone string `json:"recipient_phone"`
	Country        string `json:"country"`
	Operator       string `json:"operator,omitempty"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Narration      string `json:"narration,omitempty"`
}

// PayoutResponse is what a provider returns for an initiation attempt
type PayoutResponse struct {
	Success           bool         `json:"success"`
	ExternalReference string       `json:"external_reference,omitempty"`
	Status            PayoutStatus `json:"status"`
	Message           string       `json:"message,omitempty"`
}

// PayoutGateway is the contract every provider client implements.
// InitiatePayout must honor the context deadline; the orchestrator threads an
// explicit per-attempt deadline through it.
type PayoutGateway interface {
	Name() string
	InitiatePayout(ctx context.Context, req *PayoutRequest) (*PayoutResponse, error)
	CheckStatus(ctx context.Context, externalReference string) (PayoutStatus, error)
	HealthCheck(ctx context.Context) error
}

// Attempt records the outcome of one gateway call during fallback execution
type Attempt struct {
	Gateway   string        `json:"gateway"`
	Success   bool          `json:"success"`
	Reason    string        `json:"reason,omitempty"`
	Latency   time.Duration `json:"latency"`
	Reference string        `json:"reference,omitempty"`
}
