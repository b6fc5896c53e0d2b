package providers

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"swaprouter/internal/chains"
	"swaprouter/internal/entities"
	"swaprouter/pkg/chain/evm"
	"swaprouter/pkg/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	weth = entities.NewToken(chains.Mainnet, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), 18, "WETH", "Wrapped Ether")
	usdc = entities.NewToken(chains.Mainnet, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6, "USDC", "USD//C")
	dai  = entities.NewToken(chains.Mainnet, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), 18, "DAI", "Dai Stablecoin")
)

// fakeChain answers factory and pool calls from in-memory tables.
type fakeChain struct {
	t         *testing.T
	v3Pools   map[string]common.Address // v3Key -> pool
	liquidity map[common.Address]*big.Int
	blocks    []*uint64
}

func (f *fakeChain) BatchCallContract(_ context.Context, calls []evm.ContractCall, block *uint64) ([]evm.CallResult, error) {
	f.blocks = append(f.blocks, block)
	out := make([]evm.CallResult, len(calls))
	getPool := contracts.V3FactoryABI.Methods["getPool"]
	slot0 := contracts.V3PoolABI.Methods["slot0"]
	liquidity := contracts.V3PoolABI.Methods["liquidity"]

	for i, c := range calls {
		switch {
		case bytes.Equal(c.CallData[:4], getPool.ID):
			args, err := getPool.Inputs.Unpack(c.CallData[4:])
			require.NoError(f.t, err)
			a := entities.Token{ChainID: chains.Mainnet, Address: args[0].(common.Address)}
			b := entities.Token{ChainID: chains.Mainnet, Address: args[1].(common.Address)}
			fee := entities.FeeAmount(args[2].(*big.Int).Uint64())
			addr := f.v3Pools[v3Key(a, b, fee)]
			data, err := getPool.Outputs.Pack(addr)
			require.NoError(f.t, err)
			out[i] = evm.CallResult{Success: true, Data: data}
		case bytes.Equal(c.CallData[:4], slot0.ID):
			data, err := slot0.Outputs.Pack(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(-5), uint16(0), uint16(1), uint16(1), uint8(0), true)
			require.NoError(f.t, err)
			out[i] = evm.CallResult{Success: true, Data: data}
		case bytes.Equal(c.CallData[:4], liquidity.ID):
			liq, ok := f.liquidity[c.Target]
			if !ok {
				out[i] = evm.CallResult{Success: false}
				continue
			}
			data, err := liquidity.Outputs.Pack(liq)
			require.NoError(f.t, err)
			out[i] = evm.CallResult{Success: true, Data: data}
		default:
			out[i] = evm.CallResult{Success: false}
		}
	}
	return out, nil
}

// TestBlockRefResolvesOnce verifies a deferred block is resolved a single time.
func TestBlockRefResolvesOnce(t *testing.T) {
	calls := 0
	ref := DeferredBlock(func(context.Context) (uint64, error) {
		calls++
		return 110, nil
	})
	cfg := &ProviderConfig{BlockNumber: ref}

	for i := 0; i < 3; i++ {
		n, ok, err := cfg.Block(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(110), n)
	}
	require.Equal(t, 1, calls)
}

// TestBlockRefError verifies resolver errors are surfaced to every caller.
func TestBlockRefError(t *testing.T) {
	ref := DeferredBlock(func(context.Context) (uint64, error) { return 0, errors.New("no head") })
	_, err := ref.Resolve(context.Background())
	require.Error(t, err)
	_, err = ref.Resolve(context.Background())
	require.Error(t, err)
}

// TestNilProviderConfig verifies a nil config means latest state.
func TestNilProviderConfig(t *testing.T) {
	var cfg *ProviderConfig
	block, err := cfg.BlockPtr(context.Background())
	require.NoError(t, err)
	require.Nil(t, block)
}

// TestV3AccessorIgnoresTokenOrder verifies lookups work with either token first.
func TestV3AccessorIgnoresTokenOrder(t *testing.T) {
	pool, err := entities.NewV3Pool(common.HexToAddress("0x01"), weth, usdc, entities.FeeLow,
		new(uint256.Int).Lsh(uint256.NewInt(1), 96), uint256.NewInt(10), 0)
	require.NoError(t, err)

	acc := NewV3PoolAccessor([]*entities.V3Pool{pool, pool})
	require.Same(t, pool, acc.GetPool(weth, usdc, entities.FeeLow))
	require.Same(t, pool, acc.GetPool(usdc, weth, entities.FeeLow))
	require.Nil(t, acc.GetPool(usdc, weth, entities.FeeHigh))
	require.Len(t, acc.AllPools(), 1)
}

// TestOnChainV3PoolProvider verifies pools are resolved, loaded and pinned to the configured block.
func TestOnChainV3PoolProvider(t *testing.T) {
	poolA := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	poolB := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	fc := &fakeChain{
		t: t,
		v3Pools: map[string]common.Address{
			v3Key(weth, usdc, entities.FeeLow):   poolA,
			v3Key(weth, dai, entities.FeeMedium): poolB,
		},
		liquidity: map[common.Address]*big.Int{
			poolA: big.NewInt(5000),
		},
	}

	provider, err := NewOnChainV3PoolProvider(chains.Default(), chains.Mainnet, fc)
	require.NoError(t, err)

	keys := []V3PoolKey{
		{TokenA: weth, TokenB: usdc, Fee: entities.FeeLow},
		{TokenA: usdc, TokenB: weth, Fee: entities.FeeLow},
		{TokenA: weth, TokenB: usdc, Fee: entities.FeeHigh},
		{TokenA: weth, TokenB: dai, Fee: entities.FeeMedium},
	}
	acc, err := provider.GetPools(context.Background(), keys, &ProviderConfig{BlockNumber: PinnedBlock(99)})
	require.NoError(t, err)

	pool := acc.GetPool(usdc, weth, entities.FeeLow)
	require.NotNil(t, pool)
	require.Equal(t, poolA, pool.Address())
	require.Equal(t, uint64(5000), pool.Liquidity().Uint64())
	require.Equal(t, int32(-5), pool.TickCurrent())

	// liquidity call failed for poolB
	require.Nil(t, acc.GetPool(weth, dai, entities.FeeMedium))
	require.Nil(t, acc.GetPool(weth, usdc, entities.FeeHigh))

	for _, b := range fc.blocks {
		require.NotNil(t, b)
		require.Equal(t, uint64(99), *b)
	}
}

// TestOnChainProviderRequiresFactory verifies chains without a factory are rejected.
func TestOnChainProviderRequiresFactory(t *testing.T) {
	_, err := NewOnChainV2PoolProvider(chains.Default(), chains.Celo, &fakeChain{t: t})
	require.True(t, errors.Is(err, chains.ErrUnknownChain))
}
