// Package health tracks per-gateway availability with a circuit breaker and
// rolling success/failure/latency statistics. One Monitor is shared by every
// in-flight transfer; per-gateway rows carry their own locks so requests
// touching different gateways never block each other.
package health

import (
	"sync"
	"time"

	"transfer-router/internal/common/logging"
)

// State represents the current state of a gateway circuit
type State int

const (
	// StateClosed means the gateway is accepting traffic
	StateClosed State = iota
	// StateOpen means the gateway is rejecting traffic
	StateOpen
	// StateHalfOpen means the gateway is being probed for recovery
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the circuit breaker and decay tunables
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before allowing a probe
	RecoveryTimeout time.Duration
	// MetricsWindow is the idle period after which counters are halved
	MetricsWindow time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  5 * time.Minute,
		MetricsWindow:    time.Hour,
	}
}

// gatewayHealth is the per-gateway record. Each row has its own lock;
// the Monitor map lock is only taken to locate or create rows.
type gatewayHealth struct {
	mu sync.Mutex

	state               State
	consecutiveFailures int
	totalSuccess        int64
	totalFailure        int64
	totalLatencyMs      int64
	lastFailureTime     time.Time
	lastFailureReason   string
	lastActivity        time.Time
}

// Snapshot is a point-in-time copy of a gateway's health for the admin surface
type Snapshot struct {
	Gateway             string     `json:"gateway"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalSuccess        int64      `json:"total_success"`
	TotalFailure        int64      `json:"total_failure"`
	ReliabilityScore    int        `json:"reliability_score"`
	AvgLatencyMs        int64      `json:"avg_latency_ms"`
	LastFailureReason   string     `json:"last_failure_reason,omitempty"`
	LastFailureTime     *time.Time `json:"last_failure_time,omitempty"`
}

// Monitor tracks health state for every known gateway
type Monitor struct {
	config   Config
	gateways map[string]*gatewayHealth
	mu       sync.RWMutex
	logger   logging.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewMonitor creates a health monitor with the given configuration
func NewMonitor(config Config, logger logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Monitor{
		config:   config,
		gateways: make(map[string]*gatewayHealth),
		logger:   logger.WithFields(logging.String("component", "health")),
		now:      time.Now,
	}
}

func (m *Monitor) get(gateway string) *gatewayHealth {
	m.mu.RLock()
	gh, ok := m.gateways[gateway]
	m.mu.RUnlock()
	if ok {
		return gh
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gh, ok = m.gateways[gateway]; ok {
		return gh
	}
	gh = &gatewayHealth{state: StateClosed}
	m.gateways[gateway] = gh
	return gh
}

// IsAvailable reports whether the gateway may be called. An open circuit past
// its recovery timeout transitions to half-open and becomes available again.
// Half-open allows concurrent probes; the first recorded outcome decides the
// next state.
func (m *Monitor) IsAvailable(gateway string) bool {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()

	switch gh.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if m.now().Sub(gh.lastFailureTime) >= m.config.RecoveryTimeout {
			m.setState(gateway, gh, StateHalfOpen)
			return true
		}
		return false
	}
	return false
}

// State returns the current circuit state of the gateway
func (m *Monitor) State(gateway string) State {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.state
}

// RecordSuccess records a successful gateway call with its observed latency.
// Any success resets the consecutive failure count; a success while half-open
// closes the circuit.
func (m *Monitor) RecordSuccess(gateway string, latency time.Duration) {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()

	gh.consecutiveFailures = 0
	gh.totalSuccess++
	gh.totalLatencyMs += latency.Milliseconds()
	gh.lastActivity = m.now()

	if gh.state == StateHalfOpen {
		m.setState(gateway, gh, StateClosed)
	}
}

// RecordFailure records a failed gateway call with the failure reason.
// Reaching the failure threshold opens the circuit; a failure while half-open
// reopens it and restarts the recovery timer.
func (m *Monitor) RecordFailure(gateway, reason string) {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()

	now := m.now()
	gh.consecutiveFailures++
	gh.totalFailure++
	gh.lastFailureTime = now
	gh.lastFailureReason = reason
	gh.lastActivity = now

	switch gh.state {
	case StateClosed:
		if gh.consecutiveFailures >= m.config.FailureThreshold {
			m.setState(gateway, gh, StateOpen)
		}
	case StateHalfOpen:
		m.setState(gateway, gh, StateOpen)
	}
}

// ReliabilityScore returns successes*100/total, or 100 when no data exists
func (m *Monitor) ReliabilityScore(gateway string) int {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()

	total := gh.totalSuccess + gh.totalFailure
	if total == 0 {
		return 100
	}
	return int(gh.totalSuccess * 100 / total)
}

// AverageLatency returns the rolling average latency across recorded
// successes, or zero when no successes exist.
func (m *Monitor) AverageLatency(gateway string) time.Duration {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()

	if gh.totalSuccess == 0 {
		return 0
	}
	return time.Duration(gh.totalLatencyMs/gh.totalSuccess) * time.Millisecond
}

// HasLatencyData reports whether any latency samples have been recorded
func (m *Monitor) HasLatencyData(gateway string) bool {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.totalSuccess > 0
}

// ResetGateway is a manual admin override that closes the circuit and clears
// the consecutive failure count. Cumulative counters are preserved.
func (m *Monitor) ResetGateway(gateway string) {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()

	gh.consecutiveFailures = 0
	m.setState(gateway, gh, StateClosed)
	m.logger.Info("gateway manually reset", logging.String("gateway", gateway))
}

// Decay halves the cumulative counters of every gateway that has been idle
// longer than the metrics window. Circuit state is untouched, so an open
// breaker stays open; old statistics just stop dominating the reliability
// score. Called from the hourly sweep.
func (m *Monitor) Decay() {
	m.mu.RLock()
	names := make([]string, 0, len(m.gateways))
	for name := range m.gateways {
		names = append(names, name)
	}
	m.mu.RUnlock()

	cutoff := m.now().Add(-m.config.MetricsWindow)
	for _, name := range names {
		gh := m.get(name)
		gh.mu.Lock()
		if gh.lastActivity.Before(cutoff) && (gh.totalSuccess > 0 || gh.totalFailure > 0) {
			gh.totalSuccess /= 2
			gh.totalFailure /= 2
			gh.totalLatencyMs /= 2
			m.logger.Debug("decayed idle gateway counters", logging.String("gateway", name))
		}
		gh.mu.Unlock()
	}
}

// Snapshot returns a copy of a single gateway's health
func (m *Monitor) Snapshot(gateway string) Snapshot {
	gh := m.get(gateway)
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return m.snapshotLocked(gateway, gh)
}

// SnapshotAll returns snapshots for every known gateway
func (m *Monitor) SnapshotAll() []Snapshot {
	m.mu.RLock()
	names := make([]string, 0, len(m.gateways))
	for name := range m.gateways {
		names = append(names, name)
	}
	m.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(names))
	for _, name := range names {
		snapshots = append(snapshots, m.Snapshot(name))
	}
	return snapshots
}

func (m *Monitor) snapshotLocked(gateway string, gh *gatewayHealth) Snapshot {
	snap := Snapshot{
		Gateway:             gateway,
		State:               gh.state.String(),
		ConsecutiveFailures: gh.consecutiveFailures,
		TotalSuccess:        gh.totalSuccess,
		TotalFailure:        gh.totalFailure,
		LastFailureReason:   gh.lastFailureReason,
	}

	total := gh.totalSuccess + gh.totalFailure
	if total == 0 {
		snap.ReliabilityScore = 100
	} else {
		snap.ReliabilityScore = int(gh.totalSuccess * 100 / total)
	}
	if gh.totalSuccess > 0 {
		snap.AvgLatencyMs = gh.totalLatencyMs / gh.totalSuccess
	}
	if !gh.lastFailureTime.IsZero() {
		t := gh.lastFailureTime
		snap.LastFailureTime = &t
	}
	return snap
}

// setState is called with the row lock held
func (m *Monitor) setState(gateway string, gh *gatewayHealth, newState State) {
	if gh.state == newState {
		return
	}
	oldState := gh.state
	gh.state = newState

	m.logger.Warn("gateway circuit state change",
		logging.String("gateway", gateway),
		logging.String("from_state", oldState.String()),
		logging.String("to_state", newState.String()),
	)
}
