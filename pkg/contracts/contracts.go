package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Rollup fee precompiles
var (
	GasPriceOracleAddress = common.HexToAddress("0x420000000000000000000000000000000000000F")
	ArbGasInfoAddress     = common.HexToAddress("0x000000000000000000000000000000000000006C")
)

// ERC20 ABI - only the metadata getters
const ERC20ABIJSON = `[
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "name",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Uniswap V3 factory ABI
const V3FactoryABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"}
		],
		"name": "getPool",
		"outputs": [{"internalType": "address", "name": "pool", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Uniswap V3 pool ABI - price and liquidity state
const V3PoolABIJSON = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
			{"internalType": "int24", "name": "tick", "type": "int24"},
			{"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
			{"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
			{"internalType": "bool", "name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "liquidity",
		"outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Uniswap V2 factory ABI
const V2FactoryABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "", "type": "address"},
			{"internalType": "address", "name": "", "type": "address"}
		],
		"name": "getPair",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Uniswap V2 pair ABI
const V2PairABIJSON = `[
	{
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
			{"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Fee-on-transfer detector lens
const TokenFeeDetectorABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "token", "type": "address"},
			{"internalType": "address", "name": "baseToken", "type": "address"},
			{"internalType": "uint256", "name": "amountToBorrow", "type": "uint256"}
		],
		"name": "validate",
		"outputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "buyFeeBps", "type": "uint256"},
					{"internalType": "uint256", "name": "sellFeeBps", "type": "uint256"}
				],
				"internalType": "struct TokenFees",
				"name": "",
				"type": "tuple"
			}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// OP stack GasPriceOracle predeploy
const GasPriceOracleABIJSON = `[
	{"inputs": [], "name": "l1BaseFee", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "scalar", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "overhead", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// Arbitrum ArbGasInfo precompile
const ArbGasInfoABIJSON = `[
	{
		"inputs": [],
		"name": "getPricesInWei",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"},
			{"internalType": "uint256", "name": "", "type": "uint256"},
			{"internalType": "uint256", "name": "", "type": "uint256"},
			{"internalType": "uint256", "name": "", "type": "uint256"},
			{"internalType": "uint256", "name": "", "type": "uint256"},
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	ERC20ABI            abi.ABI
	V3FactoryABI        abi.ABI
	V3PoolABI           abi.ABI
	V2FactoryABI        abi.ABI
	V2PairABI           abi.ABI
	TokenFeeDetectorABI abi.ABI
	GasPriceOracleABI   abi.ABI
	ArbGasInfoABI       abi.ABI
)

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse " + name + " ABI: " + err.Error())
	}
	return parsed
}

func init() {
	ERC20ABI = mustParse("ERC20", ERC20ABIJSON)
	V3FactoryABI = mustParse("V3 Factory", V3FactoryABIJSON)
	V3PoolABI = mustParse("V3 Pool", V3PoolABIJSON)
	V2FactoryABI = mustParse("V2 Factory", V2FactoryABIJSON)
	V2PairABI = mustParse("V2 Pair", V2PairABIJSON)
	TokenFeeDetectorABI = mustParse("TokenFeeDetector", TokenFeeDetectorABIJSON)
	GasPriceOracleABI = mustParse("GasPriceOracle", GasPriceOracleABIJSON)
	ArbGasInfoABI = mustParse("ArbGasInfo", ArbGasInfoABIJSON)
}
