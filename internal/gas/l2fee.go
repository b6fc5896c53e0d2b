package gas

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	zeroByteGas    = 4
	nonZeroByteGas = 16
	// 68 bytes of signature fields, all priced as non-zero.
	signatureGas = 68 * 16
	// 10^77 is the largest power of ten below 2^256.
	maxDecimals = 77
)

// ArbitrumGasData are the ArbGasInfo prices needed for the L1 calldata fee.
type ArbitrumGasData struct {
	PerL2TxFee       *uint256.Int
	PerL1CalldataFee *uint256.Int
}

// OptimismGasData are the GasPriceOracle values needed for the L1 data fee.
type OptimismGasData struct {
	L1BaseFee *uint256.Int
	Scalar    *uint256.Int
	Decimals  *uint256.Int
	Overhead  *uint256.Int
}

// L2GasData holds the parameters for whichever rollup family the chain belongs to.
type L2GasData struct {
	Arbitrum *ArbitrumGasData
	Optimism *OptimismGasData
}

// L2ToL1GasUsed prices calldata the way L1 intrinsic gas does, then adds overhead and the
// signature allowance. The first two characters of calldata are skipped as its prefix
// whatever they are. A trailing odd nibble is priced as one more byte.
func L2ToL1GasUsed(calldata string, overhead *uint256.Int) (*uint256.Int, error) {
	data, err := decodeCalldata(calldata)
	if err != nil {
		return nil, err
	}

	var units uint64
	for _, b := range data {
		if b == 0 {
			units += zeroByteGas
		} else {
			units += nonZeroByteGas
		}
	}

	total := uint256.NewInt(units)
	if overhead != nil {
		if _, overflow := total.AddOverflow(total, overhead); overflow {
			return nil, fmt.Errorf("l1 gas overhead %s overflows", overhead)
		}
	}
	if _, overflow := total.AddOverflow(total, uint256.NewInt(signatureGas)); overflow {
		return nil, fmt.Errorf("l1 gas overflows")
	}
	return total, nil
}

func decodeCalldata(calldata string) ([]byte, error) {
	if len(calldata) < 2 {
		return nil, fmt.Errorf("calldata %q has no prefix", calldata)
	}
	digits := calldata[2:]
	if len(digits)%2 == 1 {
		last := len(digits) - 1
		digits = digits[:last] + "0" + digits[last:]
	}
	data, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("decoding calldata: %w", err)
	}
	return data, nil
}

// ArbitrumL1Fee returns the L1 gas units and the fee in wei: gasUsed * perL1CalldataFee + perL2TxFee.
func ArbitrumL1Fee(calldata string, data ArbitrumGasData) (gasUsed, fee *uint256.Int, err error) {
	if data.PerL1CalldataFee == nil || data.PerL2TxFee == nil {
		return nil, nil, fmt.Errorf("incomplete arbitrum gas data")
	}
	gasUsed, err = L2ToL1GasUsed(calldata, nil)
	if err != nil {
		return nil, nil, err
	}

	fee = new(uint256.Int)
	if _, overflow := fee.MulOverflow(gasUsed, data.PerL1CalldataFee); overflow {
		return nil, nil, fmt.Errorf("arbitrum l1 fee overflows")
	}
	if _, overflow := fee.AddOverflow(fee, data.PerL2TxFee); overflow {
		return nil, nil, fmt.Errorf("arbitrum l1 fee overflows")
	}
	return gasUsed, fee, nil
}

// OptimismL1Fee returns the L1 gas units and the fee in wei:
// floor(gasUsed * l1BaseFee * scalar / 10^decimals), matching the oracle's integer math.
func OptimismL1Fee(calldata string, data OptimismGasData) (gasUsed, fee *uint256.Int, err error) {
	if data.L1BaseFee == nil || data.Scalar == nil || data.Decimals == nil {
		return nil, nil, fmt.Errorf("incomplete optimism gas data")
	}
	if !data.Decimals.IsUint64() || data.Decimals.Uint64() > maxDecimals {
		return nil, nil, fmt.Errorf("optimism scalar decimals %s out of range", data.Decimals)
	}

	gasUsed, err = L2ToL1GasUsed(calldata, data.Overhead)
	if err != nil {
		return nil, nil, err
	}
	fee, err = optimismFeeForGas(gasUsed, data)
	if err != nil {
		return nil, nil, err
	}
	return gasUsed, fee, nil
}

func optimismFeeForGas(gasUsed *uint256.Int, data OptimismGasData) (*uint256.Int, error) {
	fee := new(uint256.Int)
	if _, overflow := fee.MulOverflow(gasUsed, data.L1BaseFee); overflow {
		return nil, fmt.Errorf("optimism l1 fee overflows")
	}
	if _, overflow := fee.MulOverflow(fee, data.Scalar); overflow {
		return nil, fmt.Errorf("optimism l1 fee overflows")
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), data.Decimals)
	return fee.Div(fee, scale), nil
}
