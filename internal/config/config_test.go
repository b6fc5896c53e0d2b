package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"swaprouter/internal/chains"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoadDefaults verifies a missing file falls back to defaults plus env.
func TestLoadDefaults(t *testing.T) {
	t.Setenv("RPC_URL", "http://localhost:8545")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.Chain.RPCURL)
	require.Equal(t, chains.Mainnet, cfg.Chain.ChainID)
	require.Equal(t, 2, cfg.Subgraph.Retries)
	require.Equal(t, 30*time.Second, cfg.Subgraph.Timeout)
	require.True(t, cfg.Subgraph.Rollback)
	require.Equal(t, uint64(1_000_000), cfg.TokenFee.GasLimit)
	require.Equal(t, int64(100_000), cfg.TokenFee.AmountToBorrow)
	require.Equal(t, 10*time.Minute, cfg.TokenFee.CacheTTL)
}

// TestLoadFileAndOverrides verifies YAML values, env expansion and env overrides.
func TestLoadFileAndOverrides(t *testing.T) {
	t.Setenv("NODE_HOST", "node.internal")
	t.Setenv("CHAIN_ID", "10")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SUBGRAPH_URL", "https://indexer.example/v3")

	path := writeConfig(t, `
chain:
  rpc_url: http://${NODE_HOST}:8545
  ws_url: ws://${NODE_HOST}:8546
subgraph:
  retries: 4
  timeout: 5s
  rollback: false
gas:
  gas_token: "0x4200000000000000000000000000000000000042"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://node.internal:8545", cfg.Chain.RPCURL)
	require.Equal(t, "ws://node.internal:8546", cfg.Chain.WSURL)
	require.Equal(t, chains.Optimism, cfg.Chain.ChainID)
	require.Equal(t, 4, cfg.Subgraph.Retries)
	require.Equal(t, 5*time.Second, cfg.Subgraph.Timeout)
	require.False(t, cfg.Subgraph.Rollback)
	require.Equal(t, "https://indexer.example/v3", cfg.Subgraph.V3URL)
	require.Equal(t, "debug", cfg.Logging.Level)

	reg := cfg.Registry(chains.Default())
	require.Equal(t, "https://indexer.example/v3", reg.V3SubgraphURL(chains.Optimism))
	require.NotEqual(t, "https://indexer.example/v3", chains.Default().V3SubgraphURL(chains.Optimism))
}

// TestLoadValidation verifies invalid settings are rejected.
func TestLoadValidation(t *testing.T) {
	_, err := Load(writeConfig(t, "chain:\n  chain_id: 1\n"))
	require.ErrorContains(t, err, "rpc_url")

	t.Setenv("RPC_URL", "http://localhost:8545")

	_, err = Load(writeConfig(t, "gas:\n  gas_token: not-an-address\n"))
	require.ErrorContains(t, err, "gas.gas_token")

	_, err = Load(writeConfig(t, "token_fee:\n  detector_address: \"0x12\"\n"))
	require.ErrorContains(t, err, "detector_address")

	_, err = Load(writeConfig(t, "subgraph:\n  timeout: 0s\n"))
	require.ErrorContains(t, err, "subgraph.timeout")
}

// TestRegistryDetectorOverride verifies the configured detector replaces the default.
func TestRegistryDetectorOverride(t *testing.T) {
	t.Setenv("RPC_URL", "http://localhost:8545")
	addr := "0x1111111111111111111111111111111111111111"

	cfg, err := Load(writeConfig(t, "token_fee:\n  detector_address: \""+addr+"\"\n"))
	require.NoError(t, err)
	reg := cfg.Registry(chains.Default())
	require.Equal(t, common.HexToAddress(addr), reg.FeeDetectorAddress(chains.Mainnet))
}
