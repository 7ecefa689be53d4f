package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-router/internal/health"
	"transfer-router/internal/locks"
	"transfer-router/internal/stock"
)

func newTestBridge(t *testing.T, hubs []string) (*BridgeService, *MemoryRouteRepository, *health.Monitor, *stock.Ledger) {
	t.Helper()

	repo := NewMemoryRouteRepository()
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	ledger := stock.NewLedger(stock.NewMemoryRepository(), locks.NewKeyedMutex(), nil)
	svc := NewBridgeService(repo, monitor, ledger, hubs, 0.5, nil)
	return svc, repo, monitor, ledger
}

func addRoute(t *testing.T, repo *MemoryRouteRepository, source, dest, gateway string, fee float64) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), &Route{
		SourceCountry: source,
		DestCountry:   dest,
		Gateway:       gateway,
		Priority:      100,
		FeePercent:    fee,
		Enabled:       true,
	}))
}

func TestFindBestBridgeRejectsDirectCorridor(t *testing.T) {
	svc, repo, _, _ := newTestBridge(t, []string{"CM"})
	addRoute(t, repo, "GA", "SN", "wave", 1.0)

	_, err := svc.FindBestBridge(context.Background(), "GA", "SN", 100_000)
	assert.ErrorIs(t, err, ErrDirectRouteExists)

	_, err = svc.FindAllBridgeRoutes(context.Background(), "GA", "SN", 100_000)
	assert.ErrorIs(t, err, ErrDirectRouteExists)
}

func TestFindBestBridgeOneHop(t *testing.T) {
	svc, repo, _, ledger := newTestBridge(t, []string{"CM", "SN"})
	ctx := context.Background()

	addRoute(t, repo, "GA", "CM", "mtn_momo", 1.0)
	addRoute(t, repo, "CM", "TD", "orange_money", 1.5)
	creditStock(t, ledger, "mtn_momo", "CM", 1_000_000)
	creditStock(t, ledger, "orange_money", "TD", 1_000_000)

	bridge, err := svc.FindBestBridge(ctx, "GA", "TD", 100_000)
	require.NoError(t, err)

	assert.Equal(t, []string{"CM"}, bridge.Intermediates)
	assert.Equal(t, "GA->CM->TD", bridge.Signature())
	require.Len(t, bridge.Legs, 2)
	assert.Equal(t, "mtn_momo", bridge.Legs[0].Gateway)
	assert.Equal(t, "orange_money", bridge.Legs[1].Gateway)
	assert.InDelta(t, 3.0, bridge.TotalFeePercent, 1e-9)
}

func TestFindBestBridgePicksCheapestLegs(t *testing.T) {
	svc, repo, _, ledger := newTestBridge(t, []string{"CM"})
	ctx := context.Background()

	addRoute(t, repo, "GA", "CM", "mtn_momo", 2.0)
	addRoute(t, repo, "GA", "CM", "wave", 0.8)
	addRoute(t, repo, "CM", "TD", "orange_money", 1.2)
	for _, gw := range []string{"mtn_momo", "wave"} {
		creditStock(t, ledger, gw, "CM", 1_000_000)
	}
	creditStock(t, ledger, "orange_money", "TD", 1_000_000)

	bridge, err := svc.FindBestBridge(ctx, "GA", "TD", 100_000)
	require.NoError(t, err)
	assert.Equal(t, "wave", bridge.Legs[0].Gateway)
	assert.InDelta(t, 2.5, bridge.TotalFeePercent, 1e-9)
}

func TestFindBestBridgeSkipsUnhealthyAndUnderfunded(t *testing.T) {
	svc, repo, monitor, ledger := newTestBridge(t, []string{"CM"})
	ctx := context.Background()

	addRoute(t, repo, "GA", "CM", "wave", 0.5)
	addRoute(t, repo, "GA", "CM", "mtn_momo", 1.0)
	addRoute(t, repo, "GA", "CM", "orange_money", 3.0)
	addRoute(t, repo, "CM", "TD", "pawapay", 1.0)

	// cheapest leg gateway has a tripped circuit
	for i := 0; i < 5; i++ {
		monitor.RecordFailure("wave", "provider error")
	}
	creditStock(t, ledger, "wave", "CM", 1_000_000)
	// next cheapest cannot cover the amount
	creditStock(t, ledger, "mtn_momo", "CM", 50_000)
	creditStock(t, ledger, "orange_money", "CM", 1_000_000)
	creditStock(t, ledger, "pawapay", "TD", 1_000_000)

	bridge, err := svc.FindBestBridge(ctx, "GA", "TD", 100_000)
	require.NoError(t, err)
	assert.Equal(t, "orange_money", bridge.Legs[0].Gateway)
}

func TestFindBestBridgeTwoHopHubsOnly(t *testing.T) {
	svc, repo, _, ledger := newTestBridge(t, []string{"CM", "SN"})
	ctx := context.Background()

	// no single intermediate connects GA to ML; CM -> SN does
	addRoute(t, repo, "GA", "CM", "mtn_momo", 1.0)
	addRoute(t, repo, "CM", "SN", "wave", 1.0)
	addRoute(t, repo, "SN", "ML", "orange_money", 1.0)
	creditStock(t, ledger, "mtn_momo", "CM", 1_000_000)
	creditStock(t, ledger, "wave", "SN", 1_000_000)
	creditStock(t, ledger, "orange_money", "ML", 1_000_000)

	bridge, err := svc.FindBestBridge(ctx, "GA", "ML", 100_000)
	require.NoError(t, err)

	assert.Equal(t, []string{"CM", "SN"}, bridge.Intermediates)
	assert.Equal(t, "GA->CM->SN->ML", bridge.Signature())
	require.Len(t, bridge.Legs, 3)
	assert.InDelta(t, 4.0, bridge.TotalFeePercent, 1e-9)
}

func TestFindBestBridgeNoTwoHopThroughNonHub(t *testing.T) {
	// same chain, but SN is not a hub so the 2-hop path is out of bounds
	svc, repo, _, ledger := newTestBridge(t, []string{"CM"})
	ctx := context.Background()

	addRoute(t, repo, "GA", "CM", "mtn_momo", 1.0)
	addRoute(t, repo, "CM", "SN", "wave", 1.0)
	addRoute(t, repo, "SN", "ML", "orange_money", 1.0)
	creditStock(t, ledger, "mtn_momo", "CM", 1_000_000)
	creditStock(t, ledger, "wave", "SN", 1_000_000)
	creditStock(t, ledger, "orange_money", "ML", 1_000_000)

	_, err := svc.FindBestBridge(ctx, "GA", "ML", 100_000)
	assert.ErrorIs(t, err, ErrNoBridgeRoute)
}

func TestFindBestBridgePrefersCheaperOneHop(t *testing.T) {
	svc, repo, _, ledger := newTestBridge(t, []string{"CM", "SN"})
	ctx := context.Background()

	// via CM: 2.0 + 2.0 + 0.5 = 4.5
	addRoute(t, repo, "GA", "CM", "mtn_momo", 2.0)
	addRoute(t, repo, "CM", "TD", "mtn_momo", 2.0)
	// via SN: 1.0 + 1.0 + 0.5 = 2.5
	addRoute(t, repo, "GA", "SN", "wave", 1.0)
	addRoute(t, repo, "SN", "TD", "wave", 1.0)
	creditStock(t, ledger, "mtn_momo", "CM", 1_000_000)
	creditStock(t, ledger, "mtn_momo", "TD", 1_000_000)
	creditStock(t, ledger, "wave", "SN", 1_000_000)
	creditStock(t, ledger, "wave", "TD", 1_000_000)

	bridge, err := svc.FindBestBridge(ctx, "GA", "TD", 100_000)
	require.NoError(t, err)
	assert.Equal(t, []string{"SN"}, bridge.Intermediates)
	assert.InDelta(t, 2.5, bridge.TotalFeePercent, 1e-9)
}

func TestFindBestBridgeUsesNonHubIntermediate(t *testing.T) {
	// 1-hop search covers every catalog country, not just hubs
	svc, repo, _, ledger := newTestBridge(t, []string{"CM"})
	ctx := context.Background()

	addRoute(t, repo, "GA", "BJ", "wave", 1.0)
	addRoute(t, repo, "BJ", "TD", "wave", 1.0)
	creditStock(t, ledger, "wave", "BJ", 1_000_000)
	creditStock(t, ledger, "wave", "TD", 1_000_000)

	bridge, err := svc.FindBestBridge(ctx, "GA", "TD", 100_000)
	require.NoError(t, err)
	assert.Equal(t, []string{"BJ"}, bridge.Intermediates)
}

func TestFindAllBridgeRoutesSortedByFee(t *testing.T) {
	svc, repo, _, ledger := newTestBridge(t, []string{"CM", "SN"})
	ctx := context.Background()

	addRoute(t, repo, "GA", "CM", "mtn_momo", 2.0)
	addRoute(t, repo, "CM", "TD", "mtn_momo", 2.0)
	addRoute(t, repo, "GA", "SN", "wave", 1.0)
	addRoute(t, repo, "SN", "TD", "wave", 1.0)
	creditStock(t, ledger, "mtn_momo", "CM", 1_000_000)
	creditStock(t, ledger, "mtn_momo", "TD", 1_000_000)
	creditStock(t, ledger, "wave", "SN", 1_000_000)
	creditStock(t, ledger, "wave", "TD", 1_000_000)

	bridges, err := svc.FindAllBridgeRoutes(ctx, "GA", "TD", 100_000)
	require.NoError(t, err)
	require.Len(t, bridges, 2)
	assert.Equal(t, []string{"SN"}, bridges[0].Intermediates)
	assert.Equal(t, []string{"CM"}, bridges[1].Intermediates)
	assert.Less(t, bridges[0].TotalFeePercent, bridges[1].TotalFeePercent)
}

func TestFindBestBridgeNoneViable(t *testing.T) {
	svc, _, _, _ := newTestBridge(t, []string{"CM"})

	_, err := svc.FindBestBridge(context.Background(), "GA", "TD", 100_000)
	assert.ErrorIs(t, err, ErrNoBridgeRoute)
}
