package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transfer-router/internal/common/logging"
	"transfer-router/internal/events"
	"transfer-router/internal/gateways"
	"transfer-router/internal/routing"
)

// ExecutionResult is the outcome of executing a strategy
type ExecutionResult struct {
	Success           bool               `json:"success"`
	Gateway           string             `json:"gateway,omitempty"`
	ExternalReference string             `json:"external_reference,omitempty"`
	Attempts          int                `json:"attempts"`
	FailedAttempts    []gateways.Attempt `json:"failed_attempts,omitempty"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	// Allocations reports per-gateway outcomes for split execution
	Allocations []AllocationResult `json:"allocations,omitempty"`
}

// AllocationResult is the outcome of one split allocation
type AllocationResult struct {
	Gateway           string `json:"gateway"`
	Amount            int64  `json:"amount"`
	Success           bool   `json:"success"`
	ExternalReference string `json:"external_reference,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// ExecuteWithFallback runs a SINGLE_WITH_FALLBACK strategy: up to
// min(len(gateways), maxRetries) distinct gateways in order, each attempt
// under its own deadline. Success records health and analytics, debits stock
// when the strategy calls for it, and returns immediately with the failures
// accumulated so far. Exhaustion returns an aggregate failure carrying every
// per-gateway reason and latency.
func (o *Orchestrator) ExecuteWithFallback(ctx context.Context, result *Result, payout *gateways.PayoutRequest) *ExecutionResult {
	if result == nil || result.Strategy == nil || result.Strategy.Type != StrategySingleWithFallback {
		return &ExecutionResult{ErrorMessage: "no executable single-gateway strategy"}
	}

	corridor := routing.CorridorKey(result.SourceCountry, result.DestCountry)
	strategy := result.Strategy

	maxAttempts := o.config.MaxRetries
	if len(strategy.Gateways) < maxAttempts {
		maxAttempts = len(strategy.Gateways)
	}

	var failed []gateways.Attempt
	for i := 0; i < maxAttempts; i++ {
		name := strategy.Gateways[i]
		if i > 0 {
			o.analytics.RecordFallback(strategy.Gateways[i-1])
		}

		attempt := o.attemptPayout(ctx, name, payout)
		if !attempt.Success {
			o.monitor.RecordFailure(name, attempt.Reason)
			o.analytics.RecordFailure(name, corridor, attempt.Reason)
			failed = append(failed, attempt)
			o.logger.Warn("payout attempt failed",
				logging.String("gateway", name),
				logging.String("reason", attempt.Reason),
				logging.Int("attempt", i+1),
			)
			continue
		}

		o.monitor.RecordSuccess(name, attempt.Latency)
		o.analytics.RecordSuccess(name, corridor, payout.Amount, attempt.Latency)

		if strategy.UseStock {
			if err := o.ledger.Debit(ctx, name, result.DestCountry, payout.Amount); err != nil {
				o.logger.Error("stock debit failed after successful payout", err,
					logging.String("gateway", name),
					logging.String("country", result.DestCountry),
				)
			}
		}

		o.publisher.PublishOutcome(events.PayoutEvent{
			Reference: payout.Reference,
			Gateway:   name,
			Corridor:  corridor,
			Amount:    payout.Amount,
			Success:   true,
			Attempts:  i + 1,
		})

		return &ExecutionResult{
			Success:           true,
			Gateway:           name,
			ExternalReference: attempt.Reference,
			Attempts:          i + 1,
			FailedAttempts:    failed,
		}
	}

	reasons := make([]string, 0, len(failed))
	for _, f := range failed {
		reasons = append(reasons, fmt.Sprintf("%s: %s (%dms)", f.Gateway, f.Reason, f.Latency.Milliseconds()))
	}
	message := "all gateways failed: " + strings.Join(reasons, "; ")

	o.publisher.PublishOutcome(events.PayoutEvent{
		Reference: payout.Reference,
		Corridor:  corridor,
		Amount:    payout.Amount,
		Success:   false,
		Attempts:  len(failed),
		Reason:    message,
	})

	return &ExecutionResult{
		Success:        false,
		Attempts:       len(failed),
		FailedAttempts: failed,
		ErrorMessage:   message,
	}
}

// attemptPayout calls one gateway under its own deadline. A panicking client
// is recovered into a failure record so remaining fallbacks still run.
func (o *Orchestrator) attemptPayout(ctx context.Context, name string, payout *gateways.PayoutRequest) (attempt gateways.Attempt) {
	attempt = gateways.Attempt{Gateway: name}
	start := time.Now()

	defer func() {
		attempt.Latency = time.Since(start)
		if r := recover(); r != nil {
			attempt.Success = false
			attempt.Reason = fmt.Sprintf("gateway client panic: %v", r)
		}
	}()

	client, err := o.registry.Get(name)
	if err != nil {
		attempt.Reason = err.Error()
		return attempt
	}

	attemptCtx := ctx
	if o.config.GatewayTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.config.GatewayTimeout)
		defer cancel()
	}

	resp, err := client.InitiatePayout(attemptCtx, payout)
	if err != nil {
		attempt.Reason = err.Error()
		return attempt
	}
	if !resp.Success {
		attempt.Reason = resp.Message
		if attempt.Reason == "" {
			attempt.Reason = "gateway declined payout"
		}
		return attempt
	}

	attempt.Success = true
	attempt.Reference = resp.ExternalReference
	return attempt
}

// ExecuteSplit runs a SPLIT strategy: each allocation goes to its planned
// gateway in order. A failed allocation stops further execution; completed
// allocations stand and are reported so the caller can reconcile.
func (o *Orchestrator) ExecuteSplit(ctx context.Context, result *Result, payout *gateways.PayoutRequest) *ExecutionResult {
	if result == nil || result.Strategy == nil || result.Strategy.Type != StrategySplit {
		return &ExecutionResult{ErrorMessage: "no executable split strategy"}
	}

	corridor := routing.CorridorKey(result.SourceCountry, result.DestCountry)
	exec := &ExecutionResult{}

	for i, alloc := range result.Strategy.Allocations {
		part := *payout
		part.Amount = alloc.Amount
		part.Reference = fmt.Sprintf("%s-%d", payout.Reference, i+1)

		attempt := o.attemptPayout(ctx, alloc.Gateway, &part)
		exec.Attempts++

		if !attempt.Success {
			o.monitor.RecordFailure(alloc.Gateway, attempt.Reason)
			o.analytics.RecordFailure(alloc.Gateway, corridor, attempt.Reason)
			exec.FailedAttempts = append(exec.FailedAttempts, attempt)
			exec.Allocations = append(exec.Allocations, AllocationResult{
				Gateway: alloc.Gateway,
				Amount:  alloc.Amount,
				Reason:  attempt.Reason,
			})
			exec.ErrorMessage = fmt.Sprintf("split leg %d via %s failed: %s", i+1, alloc.Gateway, attempt.Reason)
			break
		}

		o.monitor.RecordSuccess(alloc.Gateway, attempt.Latency)
		o.analytics.RecordSuccess(alloc.Gateway, corridor, alloc.Amount, attempt.Latency)
		if err := o.ledger.Debit(ctx, alloc.Gateway, result.DestCountry, alloc.Amount); err != nil {
			o.logger.Error("stock debit failed after successful split leg", err,
				logging.String("gateway", alloc.Gateway),
				logging.String("country", result.DestCountry),
			)
		}

		exec.Allocations = append(exec.Allocations, AllocationResult{
			Gateway:           alloc.Gateway,
			Amount:            alloc.Amount,
			Success:           true,
			ExternalReference: attempt.Reference,
		})
	}

	exec.Success = exec.ErrorMessage == "" && len(exec.Allocations) == len(result.Strategy.Allocations)

	o.publisher.PublishOutcome(events.PayoutEvent{
		Reference: payout.Reference,
		Corridor:  corridor,
		Amount:    payout.Amount,
		Success:   exec.Success,
		Attempts:  exec.Attempts,
		Reason:    exec.ErrorMessage,
	})
	return exec
}

// ExecuteBridge pays a transfer over a bridge path, one leg at a time. Any
// failed leg records a bridge failure for the path signature and stops.
func (o *Orchestrator) ExecuteBridge(ctx context.Context, bridge *routing.BridgeRoute, payout *gateways.PayoutRequest) *ExecutionResult {
	if bridge == nil {
		return &ExecutionResult{ErrorMessage: "no bridge route to execute"}
	}

	signature := bridge.Signature()
	exec := &ExecutionResult{}

	for i, leg := range bridge.Legs {
		part := *payout
		part.Country = leg.DestCountry
		part.Reference = fmt.Sprintf("%s-leg%d", payout.Reference, i+1)

		attempt := o.attemptPayout(ctx, leg.Gateway, &part)
		exec.Attempts++

		corridor := routing.CorridorKey(leg.SourceCountry, leg.DestCountry)
		if !attempt.Success {
			o.monitor.RecordFailure(leg.Gateway, attempt.Reason)
			o.analytics.RecordFailure(leg.Gateway, corridor, attempt.Reason)
			o.analytics.RecordBridgeFailure(signature)
			exec.FailedAttempts = append(exec.FailedAttempts, attempt)
			exec.ErrorMessage = fmt.Sprintf("bridge leg %s failed via %s: %s",
				corridor, leg.Gateway, attempt.Reason)

			o.publisher.PublishOutcome(events.PayoutEvent{
				Reference: payout.Reference,
				Gateway:   leg.Gateway,
				Corridor:  routing.CorridorKey(bridge.SourceCountry, bridge.DestCountry),
				Amount:    payout.Amount,
				Success:   false,
				Attempts:  exec.Attempts,
				Reason:    exec.ErrorMessage,
				Bridge:    signature,
			})
			return exec
		}

		o.monitor.RecordSuccess(leg.Gateway, attempt.Latency)
		o.analytics.RecordSuccess(leg.Gateway, corridor, payout.Amount, attempt.Latency)
		if err := o.ledger.Debit(ctx, leg.Gateway, leg.DestCountry, payout.Amount); err != nil {
			o.logger.Error("stock debit failed after successful bridge leg", err,
				logging.String("gateway", leg.Gateway),
				logging.String("country", leg.DestCountry),
			)
		}
		exec.Gateway = leg.Gateway
		exec.ExternalReference = attempt.Reference
	}

	exec.Success = true
	o.analytics.RecordBridgeSuccess(signature)

	o.publisher.PublishOutcome(events.PayoutEvent{
		Reference: payout.Reference,
		Gateway:   exec.Gateway,
		Corridor:  routing.CorridorKey(bridge.SourceCountry, bridge.DestCountry),
		Amount:    payout.Amount,
		Success:   true,
		Attempts:  exec.Attempts,
		Bridge:    signature,
	})
	return exec
}
