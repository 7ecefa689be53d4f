// Package testutil provides shared mocks and builders for routing tests
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"transfer-router/internal/events"
	"transfer-router/internal/gateways"
)

// MockGateway implements gateways.PayoutGateway for testing. Outcomes are
// scripted per call; once the script runs out the last entry repeats.
type MockGateway struct {
	mu        sync.Mutex
	name      string
	script    []MockOutcome
	callCount int

	// PanicOnCall makes InitiatePayout panic, for recovery tests
	PanicOnCall bool
	// Latency is reported to callers via a sleep before responding
	Latency time.Duration

	requests []*gateways.PayoutRequest
}

// MockOutcome scripts one InitiatePayout response
type MockOutcome struct {
	Success bool
	Message string
	Err     error
}

// NewMockGateway creates a gateway that succeeds on every call
func NewMockGateway(name string) *MockGateway {
	return &MockGateway{
		name:   name,
		script: []MockOutcome{{Success: true}},
	}
}

// NewFailingGateway creates a gateway that fails every call with message
func NewFailingGateway(name, message string) *MockGateway {
	return &MockGateway{
		name:   name,
		script: []MockOutcome{{Success: false, Message: message}},
	}
}

// Script replaces the outcome sequence
func (m *MockGateway) Script(outcomes ...MockOutcome) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = outcomes
	m.callCount = 0
	return m
}

func (m *MockGateway) Name() string { return m.name }

func (m *MockGateway) InitiatePayout(ctx context.Context, req *gateways.PayoutRequest) (*gateways.PayoutResponse, error) {
	if m.PanicOnCall {
		panic("mock gateway panic")
	}
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *req
	m.requests = append(m.requests, &copied)

	idx := m.callCount
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.callCount++
	outcome := m.script[idx]

	if outcome.Err != nil {
		return nil, outcome.Err
	}
	if !outcome.Success {
		return &gateways.PayoutResponse{
			Success: false,
			Status:  gateways.StatusFailed,
			Message: outcome.Message,
		}, nil
	}
	return &gateways.PayoutResponse{
		Success:           true,
		Status:            gateways.StatusSucceeded,
		ExternalReference: fmt.Sprintf("%s-ref-%d", m.name, m.callCount),
	}, nil
}

func (m *MockGateway) CheckStatus(ctx context.Context, ref string) (gateways.PayoutStatus, error) {
	return gateways.StatusSucceeded, nil
}

func (m *MockGateway) HealthCheck(ctx context.Context) error { return nil }

// Calls returns how many times InitiatePayout was invoked
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns copies of every payout request received
func (m *MockGateway) Requests() []*gateways.PayoutRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*gateways.PayoutRequest(nil), m.requests...)
}

// CapturePublisher records published payout events for assertions
type CapturePublisher struct {
	mu     sync.Mutex
	events []events.PayoutEvent
}

// NewCapturePublisher creates an empty capturing publisher
func NewCapturePublisher() *CapturePublisher {
	return &CapturePublisher{}
}

func (p *CapturePublisher) PublishOutcome(event events.PayoutEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *CapturePublisher) Close() error { return nil }

// Events returns a copy of everything published so far
func (p *CapturePublisher) Events() []events.PayoutEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.PayoutEvent(nil), p.events...)
}
