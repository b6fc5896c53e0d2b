package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestReplacePoolsKeepsLatestSnapshot verifies a refresh drops pools that disappeared.
func TestReplacePoolsKeepsLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := []PoolRecord{
		{ID: "0xb", Token0: "0x1", Token1: "0x2", FeeTier: 500, Liquidity: "10"},
		{ID: "0xa", Token0: "0x1", Token1: "0x3", FeeTier: 3000, Liquidity: "20"},
	}
	require.NoError(t, store.ReplacePools(ctx, 1, "v3", first))
	require.NoError(t, store.ReplacePools(ctx, 1, "v2", []PoolRecord{{ID: "0xc", Token0: "0x1", Token1: "0x2", ReserveUSD: "5.5"}}))

	pools, err := store.GetPools(ctx, 1, "v3")
	require.NoError(t, err)
	require.Len(t, pools, 2)
	require.Equal(t, "0xa", pools[0].ID)
	require.Equal(t, uint32(3000), pools[0].FeeTier)

	require.NoError(t, store.ReplacePools(ctx, 1, "v3", first[:1]))
	pools, err = store.GetPools(ctx, 1, "v3")
	require.NoError(t, err)
	require.Len(t, pools, 1)

	count, err := store.GetPoolCount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

// TestTokenFeesRespectAge verifies stale fee entries are not returned.
func TestTokenFeesRespectAge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.UpsertTokenFees(ctx, []TokenFeeRecord{
		{ChainID: 1, Token: "0xAbC", BuyFeeBps: "100", SellFeeBps: "200", UpdatedAt: now},
		{ChainID: 1, Token: "0xdef", BuyFeeBps: "0", SellFeeBps: "0", UpdatedAt: now.Add(-time.Hour)},
	}))

	fees, err := store.GetTokenFees(ctx, 1, []string{"0xabc", "0xDEF", "0x999"}, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, fees, 1)
	require.Equal(t, "200", fees["0xabc"].SellFeeBps)

	fees, err = store.GetTokenFees(ctx, 2, []string{"0xabc"}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, fees)
}

// TestCachedRouteLatestOnly verifies a second put replaces the first.
func TestCachedRouteLatestOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	key := RouteKey{ChainID: 1, TokenIn: "0xAA", TokenOut: "0xBB", TradeType: 0}

	missing, err := store.GetCachedRoute(ctx, key)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, store.PutCachedRoute(ctx, CachedRouteRecord{RouteKey: key, BlockNumber: 10, Payload: []byte(`{"a":1}`)}))
	require.NoError(t, store.PutCachedRoute(ctx, CachedRouteRecord{RouteKey: key, BlockNumber: 12, Payload: []byte(`{"a":2}`)}))

	got, err := store.GetCachedRoute(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uint64(12), got.BlockNumber)
	require.JSONEq(t, `{"a":2}`, string(got.Payload))
	require.Equal(t, "0xaa", got.TokenIn)
}

// TestSystemState verifies key-value round trips.
func TestSystemState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	v, err := store.GetSystemState(ctx, "last_block")
	require.NoError(t, err)
	require.Empty(t, v)

	require.NoError(t, store.SetSystemState(ctx, "last_block", "100"))
	v, err = store.GetSystemState(ctx, "last_block")
	require.NoError(t, err)
	require.Equal(t, "100", v)
}
