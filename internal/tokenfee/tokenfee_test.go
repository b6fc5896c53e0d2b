package tokenfee

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"swaprouter/internal/chains"
	"swaprouter/internal/persistence"
	"swaprouter/internal/providers"
	"swaprouter/pkg/chain/evm"
	"swaprouter/pkg/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	weth    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	plain   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	broken  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	taxed   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	errBoom = errors.New("execution reverted")
)

type fakeDetector struct {
	t     *testing.T
	mu    sync.Mutex
	opts  []evm.CallOpts
	fees  map[common.Address][2]int64
	calls map[common.Address]int
}

func (f *fakeDetector) CallContract(_ context.Context, to common.Address, data []byte, opts *evm.CallOpts) ([]byte, error) {
	method := contracts.TokenFeeDetectorABI.Methods["validate"]
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(f.t, err)
	token := args[0].(common.Address)
	require.Equal(f.t, weth, args[1].(common.Address))
	require.Equal(f.t, int64(DefaultAmountToBorrow), args[2].(*big.Int).Int64())
	require.Equal(f.t, chains.DefaultFeeDetectorAddress, to)

	f.mu.Lock()
	f.opts = append(f.opts, *opts)
	if f.calls == nil {
		f.calls = map[common.Address]int{}
	}
	f.calls[token]++
	f.mu.Unlock()

	fee, ok := f.fees[token]
	if !ok {
		return nil, errBoom
	}
	return method.Outputs.Pack(validateResult{BuyFeeBps: big.NewInt(fee[0]), SellFeeBps: big.NewInt(fee[1])})
}

func newDetector(t *testing.T) *fakeDetector {
	return &fakeDetector{t: t, fees: map[common.Address][2]int64{
		plain: {0, 0},
		taxed: {100, 200},
	}}
}

// TestFetchFeesIsolatesFailures verifies one reverting token does not affect the others.
func TestFetchFeesIsolatesFailures(t *testing.T) {
	det := newDetector(t)
	f, err := NewOnChainFetcher(chains.Default(), chains.Mainnet, det, DefaultOptions(), nil)
	require.NoError(t, err)

	cfg := &providers.ProviderConfig{BlockNumber: providers.PinnedBlock(18_000_000)}
	fees, err := f.FetchFees(context.Background(), []common.Address{plain, broken, taxed, weth}, cfg)
	require.NoError(t, err)

	require.Len(t, fees, 2)
	require.NotContains(t, fees, broken)
	require.NotContains(t, fees, weth)
	require.True(t, fees[plain].BuyFeeBps.IsZero())
	require.Equal(t, uint64(200), fees[taxed].SellFeeBps.Uint64())

	require.Len(t, det.opts, 3)
	for _, o := range det.opts {
		require.Equal(t, uint64(DefaultGasLimit), o.GasLimit)
		require.Equal(t, uint64(18_000_000), *o.BlockNumber)
	}
}

// TestResultOrDefault verifies missing tokens fall back to zero fees.
func TestResultOrDefault(t *testing.T) {
	fees := map[common.Address]Result{taxed: {BuyFeeBps: uint256.NewInt(1), SellFeeBps: uint256.NewInt(2)}}
	require.Equal(t, uint64(2), ResultOrDefault(fees, taxed).SellFeeBps.Uint64())
	def := ResultOrDefault(fees, broken)
	require.True(t, def.BuyFeeBps.IsZero())
	require.True(t, def.SellFeeBps.IsZero())

	// defaults never share state
	def.BuyFeeBps.SetUint64(500)
	require.True(t, ResultOrDefault(fees, broken).BuyFeeBps.IsZero())
	require.True(t, DefaultTokenFeeResult().BuyFeeBps.IsZero())
}

// TestCachingFetcher verifies hits skip the chain and failures are retried.
func TestCachingFetcher(t *testing.T) {
	store, err := persistence.NewStore(filepath.Join(t.TempDir(), "fees.db"))
	require.NoError(t, err)
	defer store.Close()

	det := newDetector(t)
	onchain, err := NewOnChainFetcher(chains.Default(), chains.Mainnet, det, DefaultOptions(), nil)
	require.NoError(t, err)
	c := NewCachingFetcher(chains.Mainnet, onchain, store, time.Minute, nil)

	tokens := []common.Address{plain, broken, taxed}
	first, err := c.FetchFees(context.Background(), tokens, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := c.FetchFees(context.Background(), tokens, nil)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, uint64(100), second[taxed].BuyFeeBps.Uint64())

	require.Equal(t, 1, det.calls[taxed])
	require.Equal(t, 1, det.calls[plain])
	require.Equal(t, 2, det.calls[broken])

	// expire the cache
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = c.FetchFees(context.Background(), []common.Address{taxed}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, det.calls[taxed])
}
