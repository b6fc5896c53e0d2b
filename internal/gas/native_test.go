package gas

import (
	"math/big"
	"testing"

	"swaprouter/internal/chains"
	"swaprouter/internal/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// TestQuoteThroughNativePool verifies the directional price is picked by native's position.
func TestQuoteThroughNativePool(t *testing.T) {
	// sqrtPrice 2 means 4 raw token1 per raw token0
	sqrt := new(uint256.Int).Lsh(uint256.NewInt(2), 96)
	high := entities.NewToken(chains.Mainnet, common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"), 18, "HIGH", "High")
	amount := entities.FromBigAmount(weth, big.NewInt(100))

	// weth is token0
	p, err := entities.NewV3Pool(common.HexToAddress("0x01"), weth, high, entities.FeeMedium, sqrt, uint256.NewInt(1), 0)
	require.NoError(t, err)
	require.True(t, p.Token0().Equals(weth))
	out, err := QuoteThroughNativePool(weth, amount, p)
	require.NoError(t, err)
	require.Equal(t, high, out.Currency)
	require.Equal(t, big.NewInt(400), out.Quotient())

	// weth is token1
	p, err = entities.NewV3Pool(common.HexToAddress("0x02"), usdc, weth, entities.FeeLow, sqrt, uint256.NewInt(1), 0)
	require.NoError(t, err)
	require.True(t, p.Token1().Equals(weth))
	out, err = QuoteThroughNativePool(weth, amount, p)
	require.NoError(t, err)
	require.Equal(t, usdc, out.Currency)
	require.Equal(t, big.NewInt(25), out.Quotient())
}
