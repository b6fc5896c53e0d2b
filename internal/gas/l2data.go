package gas

import (
	"context"
	"fmt"
	"math/big"

	"swaprouter/internal/chains"
	"swaprouter/internal/providers"
	"swaprouter/pkg/chain/evm"
	"swaprouter/pkg/contracts"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
)

var optimismOracleMethods = []string{"l1BaseFee", "scalar", "decimals", "overhead"}

// L2GasDataProvider reads rollup fee parameters from the chain's fee precompiles.
type L2GasDataProvider struct {
	chainID  uint64
	feeModel chains.FeeModel
	caller   providers.BatchCaller
}

// NewL2GasDataProvider reads the fee parameters of chainID's rollup family.
func NewL2GasDataProvider(reg *chains.Registry, chainID uint64, caller providers.BatchCaller) *L2GasDataProvider {
	return &L2GasDataProvider{
		chainID:  chainID,
		feeModel: reg.FeeModel(chainID),
		caller:   caller,
	}
}

// Fetch returns nil for chains without an L1 data fee.
func (p *L2GasDataProvider) Fetch(ctx context.Context, cfg *providers.ProviderConfig) (*L2GasData, error) {
	block, err := cfg.BlockPtr(ctx)
	if err != nil {
		return nil, err
	}

	switch p.feeModel {
	case chains.FeeModelOptimism:
		data, err := p.fetchOptimism(ctx, block)
		if err != nil {
			return nil, fmt.Errorf("fetching optimism gas data: %w", err)
		}
		return &L2GasData{Optimism: data}, nil
	case chains.FeeModelArbitrum:
		data, err := p.fetchArbitrum(ctx, block)
		if err != nil {
			return nil, fmt.Errorf("fetching arbitrum gas data: %w", err)
		}
		return &L2GasData{Arbitrum: data}, nil
	default:
		return nil, nil
	}
}

func (p *L2GasDataProvider) fetchOptimism(ctx context.Context, block *uint64) (*OptimismGasData, error) {
	calls := make([]evm.ContractCall, len(optimismOracleMethods))
	for i, method := range optimismOracleMethods {
		callData, err := contracts.GasPriceOracleABI.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("packing %s: %w", method, err)
		}
		calls[i] = evm.ContractCall{Target: contracts.GasPriceOracleAddress, CallData: callData}
	}

	results, err := p.caller.BatchCallContract(ctx, calls, block)
	if err != nil {
		return nil, err
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("expected %d results, got %d", len(calls), len(results))
	}

	values := make([]*uint256.Int, len(optimismOracleMethods))
	for i, method := range optimismOracleMethods {
		if !results[i].Success {
			return nil, fmt.Errorf("%s call failed", method)
		}
		var v *big.Int
		if err := contracts.GasPriceOracleABI.UnpackIntoInterface(&v, method, results[i].Data); err != nil {
			return nil, fmt.Errorf("unpacking %s: %w", method, err)
		}
		values[i] = uint256.MustFromBig(v)
	}

	data := &OptimismGasData{
		L1BaseFee: values[0],
		Scalar:    values[1],
		Decimals:  values[2],
		Overhead:  values[3],
	}
	log.Debug().
		Str("l1_base_fee", data.L1BaseFee.Dec()).
		Str("scalar", data.Scalar.Dec()).
		Str("decimals", data.Decimals.Dec()).
		Str("overhead", data.Overhead.Dec()).
		Msg("Fetched optimism gas data")
	return data, nil
}

func (p *L2GasDataProvider) fetchArbitrum(ctx context.Context, block *uint64) (*ArbitrumGasData, error) {
	callData, err := contracts.ArbGasInfoABI.Pack("getPricesInWei")
	if err != nil {
		return nil, fmt.Errorf("packing getPricesInWei: %w", err)
	}

	results, err := p.caller.BatchCallContract(ctx, []evm.ContractCall{{Target: contracts.ArbGasInfoAddress, CallData: callData}}, block)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 || !results[0].Success {
		return nil, fmt.Errorf("getPricesInWei call failed")
	}

	prices, err := contracts.ArbGasInfoABI.Unpack("getPricesInWei", results[0].Data)
	if err != nil {
		return nil, fmt.Errorf("unpacking getPricesInWei: %w", err)
	}
	if len(prices) < 2 {
		return nil, fmt.Errorf("getPricesInWei returned %d values", len(prices))
	}
	perL2Tx, ok1 := prices[0].(*big.Int)
	perL1Calldata, ok2 := prices[1].(*big.Int)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("unexpected getPricesInWei types")
	}

	data := &ArbitrumGasData{
		PerL2TxFee:       uint256.MustFromBig(perL2Tx),
		PerL1CalldataFee: uint256.MustFromBig(perL1Calldata),
	}
	log.Debug().
		Str("per_l2_tx", data.PerL2TxFee.Dec()).
		Str("per_l1_calldata", data.PerL1CalldataFee.Dec()).
		Msg("Fetched arbitrum gas data")
	return data, nil
}
