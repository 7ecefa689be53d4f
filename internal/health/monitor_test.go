package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor() (*Monitor, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(DefaultConfig(), nil)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMonitor_OpensAfterThresholdFailures(t *testing.T) {
	m, _ := newTestMonitor()

	for i := 0; i < 4; i++ {
		m.RecordFailure("mtn_momo", "timeout")
		assert.Equal(t, StateClosed, m.State("mtn_momo"))
	}

	m.RecordFailure("mtn_momo", "timeout")
	assert.Equal(t, StateOpen, m.State("mtn_momo"))
	assert.False(t, m.IsAvailable("mtn_momo"))
}

func TestMonitor_SuccessResetsConsecutiveFailures(t *testing.T) {
	m, _ := newTestMonitor()

	for i := 0; i < 4; i++ {
		m.RecordFailure("wave", "http 500")
	}
	m.RecordSuccess("wave", 120*time.Millisecond)

	// Four more failures must not open the circuit; the streak restarted.
	for i := 0; i < 4; i++ {
		m.RecordFailure("wave", "http 500")
	}
	assert.Equal(t, StateClosed, m.State("wave"))

	m.RecordFailure("wave", "http 500")
	assert.Equal(t, StateOpen, m.State("wave"))
}

func TestMonitor_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	m, now := newTestMonitor()

	for i := 0; i < 5; i++ {
		m.RecordFailure("orange_money", "refused")
	}
	require.Equal(t, StateOpen, m.State("orange_money"))
	require.False(t, m.IsAvailable("orange_money"))

	*now = now.Add(5 * time.Minute)
	assert.True(t, m.IsAvailable("orange_money"))
	assert.Equal(t, StateHalfOpen, m.State("orange_money"))
}

func TestMonitor_HalfOpenSuccessCloses(t *testing.T) {
	m, now := newTestMonitor()

	for i := 0; i < 5; i++ {
		m.RecordFailure("mtn_momo", "refused")
	}
	*now = now.Add(6 * time.Minute)
	require.True(t, m.IsAvailable("mtn_momo"))

	m.RecordSuccess("mtn_momo", 80*time.Millisecond)
	assert.Equal(t, StateClosed, m.State("mtn_momo"))
}

func TestMonitor_HalfOpenFailureReopensWithFreshTimer(t *testing.T) {
	m, now := newTestMonitor()

	for i := 0; i < 5; i++ {
		m.RecordFailure("mtn_momo", "refused")
	}
	*now = now.Add(6 * time.Minute)
	require.True(t, m.IsAvailable("mtn_momo"))

	m.RecordFailure("mtn_momo", "still down")
	assert.Equal(t, StateOpen, m.State("mtn_momo"))

	// Timer restarted: 4 minutes later the circuit is still open.
	*now = now.Add(4 * time.Minute)
	assert.False(t, m.IsAvailable("mtn_momo"))

	*now = now.Add(time.Minute)
	assert.True(t, m.IsAvailable("mtn_momo"))
}

func TestMonitor_ReliabilityScore(t *testing.T) {
	m, _ := newTestMonitor()

	assert.Equal(t, 100, m.ReliabilityScore("unknown"))

	for i := 0; i < 9; i++ {
		m.RecordSuccess("wave", 100*time.Millisecond)
	}
	m.RecordFailure("wave", "timeout")
	assert.Equal(t, 90, m.ReliabilityScore("wave"))
}

func TestMonitor_AverageLatency(t *testing.T) {
	m, _ := newTestMonitor()

	assert.Equal(t, time.Duration(0), m.AverageLatency("wave"))
	assert.False(t, m.HasLatencyData("wave"))

	m.RecordSuccess("wave", 100*time.Millisecond)
	m.RecordSuccess("wave", 300*time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, m.AverageLatency("wave"))
	assert.True(t, m.HasLatencyData("wave"))
}

func TestMonitor_ResetGateway(t *testing.T) {
	m, _ := newTestMonitor()

	for i := 0; i < 5; i++ {
		m.RecordFailure("pawapay", "timeout")
	}
	require.Equal(t, StateOpen, m.State("pawapay"))

	m.ResetGateway("pawapay")
	assert.Equal(t, StateClosed, m.State("pawapay"))
	assert.True(t, m.IsAvailable("pawapay"))

	snap := m.Snapshot("pawapay")
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.Equal(t, int64(5), snap.TotalFailure, "cumulative counters survive a reset")
}

func TestMonitor_DecayHalvesIdleCounters(t *testing.T) {
	m, now := newTestMonitor()

	for i := 0; i < 8; i++ {
		m.RecordSuccess("mtn_momo", 100*time.Millisecond)
	}
	m.RecordFailure("mtn_momo", "timeout")
	m.RecordFailure("mtn_momo", "timeout")

	// Active gateway is untouched.
	m.Decay()
	snap := m.Snapshot("mtn_momo")
	assert.Equal(t, int64(8), snap.TotalSuccess)

	*now = now.Add(2 * time.Hour)
	m.Decay()
	snap = m.Snapshot("mtn_momo")
	assert.Equal(t, int64(4), snap.TotalSuccess)
	assert.Equal(t, int64(1), snap.TotalFailure)
}

func TestMonitor_DecayKeepsCircuitState(t *testing.T) {
	m, now := newTestMonitor()

	for i := 0; i < 5; i++ {
		m.RecordFailure("wave", "down")
	}
	require.Equal(t, StateOpen, m.State("wave"))

	*now = now.Add(90 * time.Minute)
	m.Decay()
	// Well past the recovery timeout, so the next availability check probes.
	assert.True(t, m.IsAvailable("wave"))
	assert.Equal(t, StateHalfOpen, m.State("wave"))
}

func TestMonitor_ConcurrentRecording(t *testing.T) {
	m, _ := newTestMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.RecordSuccess("g1", 50*time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			m.RecordSuccess("g2", 50*time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.Snapshot("g1").TotalSuccess)
	assert.Equal(t, int64(50), m.Snapshot("g2").TotalSuccess)
}
