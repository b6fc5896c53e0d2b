package curator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"swaprouter/internal/chains"
	"swaprouter/internal/entities"
	"swaprouter/internal/persistence"
	"swaprouter/internal/providers"
	"swaprouter/internal/subgraph"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	wethID = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	usdcID = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

type fakeV3Source struct {
	pools  []subgraph.V3Pool
	err    error
	blocks []uint64
}

func (f *fakeV3Source) GetPools(ctx context.Context, cfg *providers.ProviderConfig) ([]subgraph.V3Pool, error) {
	n, _, _ := cfg.Block(ctx)
	f.blocks = append(f.blocks, n)
	return f.pools, f.err
}

type fakeV2Source struct {
	pools []subgraph.V2Pool
	err   error
}

func (f *fakeV2Source) GetPools(context.Context, *providers.ProviderConfig) ([]subgraph.V2Pool, error) {
	return f.pools, f.err
}

type pinnedBlocks uint64

func (b pinnedBlocks) BlockRef() *providers.BlockRef { return providers.PinnedBlock(uint64(b)) }

type fakeTokens struct{}

func (fakeTokens) GetTokens(_ context.Context, addrs []common.Address, _ *providers.ProviderConfig) (map[common.Address]entities.Token, error) {
	out := make(map[common.Address]entities.Token)
	for _, a := range addrs {
		out[a] = entities.NewToken(chains.Mainnet, a, 18, "TKN", "Token")
	}
	return out, nil
}

func newStore(t *testing.T) *persistence.Store {
	t.Helper()
	store, err := persistence.NewStore(filepath.Join(t.TempDir(), "curator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func universe() []subgraph.V3Pool {
	return []subgraph.V3Pool{{
		ID:        "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
		Token0:    subgraph.TokenRef{ID: usdcID, Symbol: "USDC"},
		Token1:    subgraph.TokenRef{ID: wethID, Symbol: "WETH"},
		FeeTier:   500,
		Liquidity: uint256.NewInt(1_000_000),
	}}
}

func pairs() []subgraph.V2Pool {
	return []subgraph.V2Pool{{
		ID:         "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc",
		Token0:     subgraph.TokenRef{ID: usdcID, Symbol: "USDC"},
		Token1:     subgraph.TokenRef{ID: wethID, Symbol: "WETH"},
		ReserveUSD: decimal.NewFromInt(50_000_000),
	}}
}

func cfg() Config {
	return Config{ChainID: chains.Mainnet, RefreshInterval: 1}
}

// TestBootstrapPersistsUniverse verifies pools, tokens and the refresh block are stored.
func TestBootstrapPersistsUniverse(t *testing.T) {
	store := newStore(t)
	v3 := &fakeV3Source{pools: universe()}
	c := NewCurator(cfg(), v3, &fakeV2Source{pools: pairs()}, store, pinnedBlocks(18_000_000), fakeTokens{}, nil)

	require.NoError(t, c.Bootstrap(context.Background()))
	require.Len(t, c.Pools(), 1)
	require.Len(t, c.V2Pools(), 1)
	require.Equal(t, 2, c.PoolCount())
	require.Equal(t, []uint64{18_000_000}, v3.blocks)

	ctx := context.Background()
	stored, err := store.GetPools(ctx, chains.Mainnet, "V3")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "1000000", stored[0].Liquidity)

	storedV2, err := store.GetPools(ctx, chains.Mainnet, "V2")
	require.NoError(t, err)
	require.Len(t, storedV2, 1)

	tokens, err := store.GetAllTokens(ctx, chains.Mainnet)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	block, err := store.GetSystemState(ctx, stateLastRefresh)
	require.NoError(t, err)
	require.Equal(t, "18000000", block)
}

// TestBootstrapFallsBackToStore verifies a failing indexer is covered by the stored snapshot.
func TestBootstrapFallsBackToStore(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := NewCurator(cfg(), &fakeV3Source{pools: universe()}, nil, store, nil, nil, nil)
	require.NoError(t, first.Bootstrap(ctx))

	second := NewCurator(cfg(), &fakeV3Source{err: errors.New("indexer down")}, nil, store, nil, nil, nil)
	require.NoError(t, second.Bootstrap(ctx))
	require.Len(t, second.Pools(), 1)
	require.Equal(t, uint64(1_000_000), second.Pools()[0].Liquidity.Uint64())
	require.Equal(t, "USDC", second.Pools()[0].Token0.Symbol)
}

// TestBootstrapEmptyUniverse verifies an empty universe is fatal.
func TestBootstrapEmptyUniverse(t *testing.T) {
	c := NewCurator(cfg(), &fakeV3Source{}, nil, newStore(t), nil, nil, nil)
	require.ErrorIs(t, c.Bootstrap(context.Background()), ErrEmptyUniverse)
}

// TestRefreshFailureKeepsSnapshot verifies a failed refresh leaves the previous pools in place.
func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	v3 := &fakeV3Source{pools: universe()}
	v2 := &fakeV2Source{pools: pairs()}
	c := NewCurator(cfg(), v3, v2, newStore(t), nil, nil, nil)
	require.NoError(t, c.Bootstrap(context.Background()))

	v3.err = errors.New("timeout")
	require.Error(t, c.refresh(context.Background()))
	require.Len(t, c.Pools(), 1)

	// v2 failures alone do not fail the refresh
	v3.err = nil
	v2.err = errors.New("bad gateway")
	require.NoError(t, c.refresh(context.Background()))
	require.Len(t, c.V2Pools(), 1)
}
