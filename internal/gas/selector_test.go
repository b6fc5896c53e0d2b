package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"swaprouter/internal/chains"
	"swaprouter/internal/entities"
	"swaprouter/internal/providers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	reg  = chains.Default()
	weth = mustNative(chains.Mainnet)
	dai  = entities.NewToken(chains.Mainnet, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), 18, "DAI", "Dai Stablecoin")
	usdc = entities.NewToken(chains.Mainnet, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6, "USDC", "USD//C")
	uni  = entities.NewToken(chains.Mainnet, common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"), 18, "UNI", "Uniswap")
)

func mustNative(chainID uint64) entities.Token {
	t, err := reg.WrappedNative(chainID)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeV3Provider struct {
	pools []*entities.V3Pool
	err   error
}

func (f *fakeV3Provider) GetPools(context.Context, []providers.V3PoolKey, *providers.ProviderConfig) (providers.V3PoolAccessor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return providers.NewV3PoolAccessor(f.pools), nil
}

type fakeV2Provider struct {
	pools []*entities.V2Pool
}

func (f *fakeV2Provider) GetPools(context.Context, []providers.TokenPair, *providers.ProviderConfig) (providers.V2PoolAccessor, error) {
	return providers.NewV2PoolAccessor(f.pools), nil
}

// v3Pool builds a pool whose token0 price is exactly 1 raw unit per raw unit.
func v3Pool(t *testing.T, a, b entities.Token, fee entities.FeeAmount, liquidity uint64) *entities.V3Pool {
	t.Helper()
	sqrt := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	addr := common.BigToAddress(big.NewInt(int64(fee) + int64(liquidity)<<20))
	p, err := entities.NewV3Pool(addr, a, b, fee, sqrt, uint256.NewInt(liquidity), 0)
	require.NoError(t, err)
	return p
}

// TestNativePoolPicksDeepest verifies the deepest tier wins regardless of provider ordering.
func TestNativePoolPicksDeepest(t *testing.T) {
	s := NewPoolSelector(reg, nil)
	low := v3Pool(t, weth, uni, entities.FeeLow, 100)
	medium := v3Pool(t, weth, uni, entities.FeeMedium, 300)
	high := v3Pool(t, weth, uni, entities.FeeHigh, 200)

	orders := [][]*entities.V3Pool{
		{low, medium, high},
		{high, low, medium},
		{medium, high, low},
	}
	for _, pools := range orders {
		got, err := s.HighestLiquidityNativePool(context.Background(), uni, &fakeV3Provider{pools: pools}, nil)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, entities.FeeMedium, got.Fee())
	}
}

// TestNativePoolTieBreak verifies equal liquidity resolves to the lowest fee tier.
func TestNativePoolTieBreak(t *testing.T) {
	s := NewPoolSelector(reg, nil)
	pools := []*entities.V3Pool{
		v3Pool(t, weth, uni, entities.FeeHigh, 500),
		v3Pool(t, weth, uni, entities.FeeLow, 500),
	}
	got, err := s.HighestLiquidityNativePool(context.Background(), uni, &fakeV3Provider{pools: pools}, nil)
	require.NoError(t, err)
	require.Equal(t, entities.FeeLow, got.Fee())
}

// TestNativePoolAbsent verifies a missing pool is not an error.
func TestNativePoolAbsent(t *testing.T) {
	s := NewPoolSelector(reg, nil)
	got, err := s.HighestLiquidityNativePool(context.Background(), uni, &fakeV3Provider{}, nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

// TestNativePoolProviderError verifies transport failures are surfaced.
func TestNativePoolProviderError(t *testing.T) {
	s := NewPoolSelector(reg, nil)
	boom := errors.New("rpc down")
	_, err := s.HighestLiquidityNativePool(context.Background(), uni, &fakeV3Provider{err: boom}, nil)
	require.ErrorIs(t, err, boom)
}

// TestUSDPoolSelection verifies tier order outranks token order on ties.
func TestUSDPoolSelection(t *testing.T) {
	s := NewPoolSelector(reg, nil)
	pools := []*entities.V3Pool{
		v3Pool(t, weth, dai, entities.FeeMedium, 42),
		v3Pool(t, weth, usdc, entities.FeeLow, 42),
	}
	got, err := s.HighestLiquidityUSDPool(context.Background(), chains.Mainnet, &fakeV3Provider{pools: pools}, nil)
	require.NoError(t, err)
	require.True(t, got.Involves(usdc))
	require.Equal(t, entities.FeeLow, got.Fee())

	pools = append(pools, v3Pool(t, weth, dai, entities.FeeLow, 42))
	got, err = s.HighestLiquidityUSDPool(context.Background(), chains.Mainnet, &fakeV3Provider{pools: pools}, nil)
	require.NoError(t, err)
	require.True(t, got.Involves(dai))
}

// TestUSDPoolErrors verifies both USD failure modes.
func TestUSDPoolErrors(t *testing.T) {
	s := NewPoolSelector(reg, nil)

	_, err := s.HighestLiquidityUSDPool(context.Background(), chains.Mainnet, &fakeV3Provider{}, nil)
	require.ErrorIs(t, err, ErrNoUSDPool)

	_, err = s.HighestLiquidityUSDPool(context.Background(), chains.Goerli, &fakeV3Provider{}, nil)
	require.ErrorIs(t, err, ErrNoUSDToken)
}

// TestV2NativePool verifies empty reserves and nil providers yield no pool.
func TestV2NativePool(t *testing.T) {
	s := NewPoolSelector(reg, nil)

	got, err := s.V2NativePool(context.Background(), dai, nil, nil)
	require.NoError(t, err)
	require.Nil(t, got)

	empty, err := entities.NewV2Pool(common.HexToAddress("0x01"), entities.Zero(weth), entities.FromRawAmount(dai, uint256.NewInt(5)))
	require.NoError(t, err)
	got, err = s.V2NativePool(context.Background(), dai, &fakeV2Provider{pools: []*entities.V2Pool{empty}}, nil)
	require.NoError(t, err)
	require.Nil(t, got)

	full, err := entities.NewV2Pool(common.HexToAddress("0x02"), entities.FromRawAmount(weth, uint256.NewInt(1)), entities.FromRawAmount(dai, uint256.NewInt(5)))
	require.NoError(t, err)
	got, err = s.V2NativePool(context.Background(), dai, &fakeV2Provider{pools: []*entities.V2Pool{full}}, nil)
	require.NoError(t, err)
	require.Equal(t, full, got)
}
