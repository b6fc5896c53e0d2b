package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	calls     []ethereum.CallMsg
	blocks    []*big.Int
	responses [][]byte
	errs      []error
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	i := len(f.calls)
	f.calls = append(f.calls, msg)
	f.blocks = append(f.blocks, block)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error)        { return 123, nil }
func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(7), nil }
func (f *fakeBackend) ChainID(context.Context) (*big.Int, error)         { return big.NewInt(1), nil }
func (f *fakeBackend) Close()                                            {}

func packAggregate3Result(t *testing.T, results []CallResult) []byte {
	t.Helper()
	type Result struct {
		Success    bool
		ReturnData []byte
	}
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{Success: r.Success, ReturnData: r.Data}
	}
	data, err := Multicall3ABI.Methods["aggregate3"].Outputs.Pack(out)
	require.NoError(t, err)
	return data
}

// TestCallContractOverrides verifies gas limit and block pinning reach the node.
func TestCallContractOverrides(t *testing.T) {
	fb := &fakeBackend{responses: [][]byte{{0x01}}}
	c := newClient(fb, "test", 0)

	block := uint64(42)
	out, err := c.CallContract(context.Background(), common.HexToAddress("0x01"), []byte{0xaa}, &CallOpts{
		GasLimit:    1_000_000,
		BlockNumber: &block,
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, out)
	require.Len(t, fb.calls, 1)
	require.Equal(t, uint64(1_000_000), fb.calls[0].Gas)
	require.Equal(t, int64(42), fb.blocks[0].Int64())
}

// TestBatchCallRetriesTransientErrors verifies the multicall is retried on transient failures.
func TestBatchCallRetriesTransientErrors(t *testing.T) {
	fb := &fakeBackend{
		errs: []error{errors.New("503 service unavailable"), nil},
		responses: [][]byte{nil, packAggregate3Result(t, []CallResult{
			{Success: true, Data: []byte{0x02}},
			{Success: false, Data: []byte{}},
		})},
	}
	c := newClient(fb, "test", 0)

	results, err := c.BatchCallContract(context.Background(), []ContractCall{
		{Target: common.HexToAddress("0x01"), CallData: []byte{0x01}},
		{Target: common.HexToAddress("0x02"), CallData: []byte{0x02}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, fb.calls, 2)
	require.Nil(t, fb.blocks[1])
	require.Len(t, results, 2)
	require.True(t, results[0].Success)
	require.Equal(t, []byte{0x02}, results[0].Data)
	require.False(t, results[1].Success)
}

// TestBatchCallStopsOnPermanentError verifies non-transient errors are not retried.
func TestBatchCallStopsOnPermanentError(t *testing.T) {
	fb := &fakeBackend{errs: []error{errors.New("execution reverted")}}
	c := newClient(fb, "test", 0)

	_, err := c.BatchCallContract(context.Background(), []ContractCall{{Target: common.HexToAddress("0x01")}}, nil)
	require.Error(t, err)
	require.Len(t, fb.calls, 1)
}

// TestIsTransientError verifies transient pattern detection.
func TestIsTransientError(t *testing.T) {
	require.True(t, isTransientError("read tcp: connection reset by peer"))
	require.True(t, isTransientError("429 Too Many Requests"))
	require.False(t, isTransientError("execution reverted"))
}
