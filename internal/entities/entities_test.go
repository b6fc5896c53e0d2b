package entities

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	testWETH = NewToken(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), 18, "WETH", "Wrapped Ether")
	testUSDC = NewToken(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6, "USDC", "USD Coin")
)

func q96(mult uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(mult), 96)
}

// TestSortTokens verifies canonical address ordering.
func TestSortTokens(t *testing.T) {
	t0, t1, err := SortTokens(testWETH, testUSDC)
	require.NoError(t, err)
	require.True(t, t0.Equals(testUSDC))
	require.True(t, t1.Equals(testWETH))

	_, _, err = SortTokens(testWETH, testWETH)
	require.Error(t, err)
}

// TestFractionQuotientTruncates verifies integer division rounds toward zero.
func TestFractionQuotientTruncates(t *testing.T) {
	f := NewFraction(big.NewInt(7), big.NewInt(2))
	require.Equal(t, int64(3), f.Quotient().Int64())

	neg := NewFraction(big.NewInt(-7), big.NewInt(2))
	require.Equal(t, int64(-3), neg.Quotient().Int64())
}

// TestCurrencyAmountArithmetic verifies add and subtract keep exactness and currency checks.
func TestCurrencyAmountArithmetic(t *testing.T) {
	a := FromRawAmount(testUSDC, uint256.NewInt(1_500_000))
	b := FromFractionalAmount(testUSDC, big.NewInt(1), big.NewInt(2))

	sum, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Cmp(NewFraction(big.NewInt(3_000_001), big.NewInt(2))))

	diff, err := a.Subtract(FromRawAmount(testUSDC, uint256.NewInt(2_000_000)))
	require.NoError(t, err)
	require.Equal(t, -1, diff.Sign())

	_, err = a.Add(FromRawAmount(testWETH, uint256.NewInt(1)))
	require.True(t, errors.Is(err, ErrCurrencyMismatch))

	require.Equal(t, "1.5", a.ToExact())
}

// TestV3PoolPrices verifies both directional mid-prices derive from sqrtPriceX96.
func TestV3PoolPrices(t *testing.T) {
	pool, err := NewV3Pool(common.Address{}, testWETH, testUSDC, FeeLow, q96(2), uint256.NewInt(1000), 0)
	require.NoError(t, err)
	require.True(t, pool.Token0().Equals(testUSDC))

	out, err := pool.Token0Price().Quote(FromRawAmount(testUSDC, uint256.NewInt(10)))
	require.NoError(t, err)
	require.Equal(t, int64(40), out.Quotient().Int64())
	require.True(t, out.Currency.Equals(testWETH))

	back, err := pool.Token1Price().Quote(FromRawAmount(testWETH, uint256.NewInt(40)))
	require.NoError(t, err)
	require.Equal(t, int64(10), back.Quotient().Int64())

	_, err = pool.Token0Price().Quote(FromRawAmount(testWETH, uint256.NewInt(1)))
	require.True(t, errors.Is(err, ErrCurrencyMismatch))
}

// TestV2PoolOrdersReserves verifies reserves follow token order regardless of input order.
func TestV2PoolOrdersReserves(t *testing.T) {
	pool, err := NewV2Pool(common.Address{},
		FromRawAmount(testWETH, uint256.NewInt(100)),
		FromRawAmount(testUSDC, uint256.NewInt(300_000)),
	)
	require.NoError(t, err)
	require.True(t, pool.Token0().Equals(testUSDC))
	require.Equal(t, int64(300_000), pool.Reserve0().Quotient().Int64())

	out, err := pool.Token1Price().Quote(FromRawAmount(testWETH, uint256.NewInt(2)))
	require.NoError(t, err)
	require.Equal(t, int64(6000), out.Quotient().Int64())
}

// TestProtocolUnmarshal verifies unknown protocol tags are rejected.
func TestProtocolUnmarshal(t *testing.T) {
	var p Protocol
	require.NoError(t, p.UnmarshalJSON([]byte(`"MIXED"`)))
	require.Equal(t, ProtocolMixed, p)
	require.Error(t, p.UnmarshalJSON([]byte(`"V4"`)))
}
