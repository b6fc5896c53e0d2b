package chains

import (
	"swaprouter/internal/entities"

	"github.com/ethereum/go-ethereum/common"
)

var (
	uniswapV3Factory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	opStackWETH      = common.HexToAddress("0x4200000000000000000000000000000000000006")
)

func token(chainID uint64, addr string, decimals uint8, symbol, name string) entities.Token {
	return entities.NewToken(chainID, common.HexToAddress(addr), decimals, symbol, name)
}

// Default builds the registry for every supported chain.
// USD gas tokens are listed highest decimals first; keep that order when adding entries.
func Default() *Registry {
	return &Registry{chains: map[uint64]chainInfo{
		Mainnet: {
			name:          "mainnet",
			wrappedNative: token(Mainnet, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18, "WETH", "Wrapped Ether"),
			usdGasTokens: []entities.Token{
				token(Mainnet, "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18, "DAI", "Dai Stablecoin"),
				token(Mainnet, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6, "USDC", "USD//C"),
				token(Mainnet, "0xdAC17F958D2ee523a2206206994597C13D831ec7", 6, "USDT", "Tether USD"),
			},
			v3SubgraphURL: "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v3",
			v2SubgraphURL: "https://api.thegraph.com/subgraphs/name/ianlapham/uniswap-v2-dev",
			v3Factory:     uniswapV3Factory,
			v2Factory:     common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		},
		Goerli: {
			name:          "goerli",
			wrappedNative: token(Goerli, "0xB4FBF271143F4FBf7B91A5ded31805e42b2208d6", 18, "WETH", "Wrapped Ether"),
			v3SubgraphURL: "https://api.thegraph.com/subgraphs/name/ianlapham/uniswap-v3-gorli",
			v3Factory:     uniswapV3Factory,
		},
		Optimism: {
			name:          "optimism",
			wrappedNative: token(Optimism, opStackWETH.Hex(), 18, "WETH", "Wrapped Ether"),
			usdGasTokens: []entities.Token{
				token(Optimism, "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", 18, "DAI", "Dai Stablecoin"),
				token(Optimism, "0x7F5c764cBc14f9669B88837ca1490cCa17c31607", 6, "USDC", "USD//C"),
				token(Optimism, "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58", 6, "USDT", "Tether USD"),
			},
			feeModel:      FeeModelOptimism,
			v3SubgraphURL: "https://api.thegraph.com/subgraphs/name/ianlapham/optimism-post-regenesis",
			v3Factory:     uniswapV3Factory,
			v2Factory:     common.HexToAddress("0x0c3c1c532F1e39EdF36BE9Fe0bE1410313E074Bf"),
		},
		OptimismGoerli: {
			name:          "optimism-goerli",
			wrappedNative: token(OptimismGoerli, opStackWETH.Hex(), 18, "WETH", "Wrapped Ether"),
			feeModel:      FeeModelOptimism,
		},
		ArbitrumOne: {
			name:          "arbitrum",
			wrappedNative: token(ArbitrumOne, "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", 18, "WETH", "Wrapped Ether"),
			usdGasTokens: []entities.Token{
				token(ArbitrumOne, "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", 18, "DAI", "Dai Stablecoin"),
				token(ArbitrumOne, "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8", 6, "USDC", "USD//C"),
				token(ArbitrumOne, "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", 6, "USDT", "Tether USD"),
			},
			feeModel:      FeeModelArbitrum,
			v3SubgraphURL: "https://api.thegraph.com/subgraphs/name/ianlapham/arbitrum-minimal",
			v3Factory:     uniswapV3Factory,
			v2Factory:     common.HexToAddress("0xf1D7CC64Fb4452F05c498126312eBE29f30Fbcf9"),
		},
		ArbitrumGoerli: {
			name:          "arbitrum-goerli",
			wrappedNative: token(ArbitrumGoerli, "0xe39Ab88f8A4777030A534146A9Ca3B52bd5D43A3", 18, "WETH", "Wrapped Ether"),
			feeModel:      FeeModelArbitrum,
		},
		Polygon: {
			name:          "polygon",
			wrappedNative: token(Polygon, "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", 18, "WMATIC", "Wrapped MATIC"),
			usdGasTokens: []entities.Token{
				token(Polygon, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", 6, "USDC", "USD//C"),
			},
			v3SubgraphURL: "https://api.thegraph.com/subgraphs/name/ianlapham/uniswap-v3-polygon",
			v3Factory:     uniswapV3Factory,
			v2Factory:     common.HexToAddress("0x9e5A52f57b3038F1B8EeE45F28b3C1967e22799C"),
		},
		BNB: {
			name:          "bnb",
			wrappedNative: token(BNB, "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", 18, "WBNB", "Wrapped BNB"),
			usdGasTokens: []entities.Token{
				token(BNB, "0x55d398326f99059fF775485246999027B3197955", 18, "USDT", "Tether USD"),
				token(BNB, "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", 18, "USDC", "USD Coin"),
				token(BNB, "0x1AF3F329e8BE154074D8769D1FFa4eE058B1DBc3", 18, "DAI", "Dai Token"),
			},
			v3SubgraphURL: "https://api.thegraph.com/subgraphs/name/ilyamk/uniswap-v3---bnb-chain",
			v3Factory:     common.HexToAddress("0xdB1d10011AD0Ff90774D0C6Bb92e5C5c8b4461F7"),
		},
		Avalanche: {
			name:          "avalanche",
			wrappedNative: token(Avalanche, "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", 18, "WAVAX", "Wrapped AVAX"),
			usdGasTokens: []entities.Token{
				token(Avalanche, "0xd586E7F844cEa2F87f50152665BCbc2C279D8d70", 18, "DAI.e", "Dai.e Token"),
				token(Avalanche, "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", 6, "USDC", "USDC Token"),
			},
			v3SubgraphURL: "https://api.thegraph.com/subgraphs/name/lynnshaoyu/uniswap-v3-avax",
			v3Factory:     common.HexToAddress("0x740b1c1de25031C31FF4fC9A62f554A55cdC1baD"),
		},
		Base: {
			name:          "base",
			wrappedNative: token(Base, opStackWETH.Hex(), 18, "WETH", "Wrapped Ether"),
			usdGasTokens: []entities.Token{
				token(Base, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", 6, "USDC", "USD Coin"),
			},
			feeModel:      FeeModelOptimism,
			v3SubgraphURL: "https://api.studio.thegraph.com/query/48211/uniswap-v3-base/version/latest",
			v3Factory:     common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
			v2Factory:     common.HexToAddress("0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"),
		},
		BaseGoerli: {
			name:          "base-goerli",
			wrappedNative: token(BaseGoerli, opStackWETH.Hex(), 18, "WETH", "Wrapped Ether"),
			feeModel:      FeeModelOptimism,
		},
		Celo: {
			name:          "celo",
			wrappedNative: token(Celo, "0x471EcE3750Da237f93B8E339c536989b8978a438", 18, "CELO", "Celo native asset"),
			usdGasTokens: []entities.Token{
				token(Celo, "0x765DE816845861e75A25fCA122bb6898B8B1282a", 18, "CUSD", "Celo Dollar"),
			},
			v3SubgraphURL: "https://api.thegraph.com/subgraphs/name/jesse-sawa/uniswap-celo",
			v3Factory:     common.HexToAddress("0xAfE208a311B21f13EF87E33A90049fC17A7acDEc"),
		},
	}}
}
