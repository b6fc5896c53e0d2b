package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"swaprouter/internal/chains"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Chain       ChainConfig       `yaml:"chain"`
	Subgraph    SubgraphConfig    `yaml:"subgraph"`
	TokenFee    TokenFeeConfig    `yaml:"token_fee"`
	Gas         GasConfig         `yaml:"gas"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ChainConfig holds blockchain connection settings.
type ChainConfig struct {
	RPCURL            string  `yaml:"rpc_url"`
	WSURL             string  `yaml:"ws_url"`
	ChainID           uint64  `yaml:"chain_id"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// SubgraphConfig holds pool universe settings.
type SubgraphConfig struct {
	V3URL           string        `yaml:"v3_url"`
	V2URL           string        `yaml:"v2_url"`
	Retries         int           `yaml:"retries"`
	Timeout         time.Duration `yaml:"timeout"`
	Rollback        bool          `yaml:"rollback"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// TokenFeeConfig holds fee-on-transfer detection settings.
type TokenFeeConfig struct {
	DetectorAddress string        `yaml:"detector_address"`
	GasLimit        uint64        `yaml:"gas_limit"`
	AmountToBorrow  int64         `yaml:"amount_to_borrow"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// GasConfig holds gas pricing settings.
type GasConfig struct {
	// GasToken is an optional token to also price gas in.
	GasToken string `yaml:"gas_token"`
	// DefaultGasPriceWei is used when the node cannot suggest a price.
	DefaultGasPriceWei uint64 `yaml:"default_gas_price_wei"`
	// ReferenceGasUsed is the gas of the reference swap priced on every head.
	ReferenceGasUsed uint64 `yaml:"reference_gas_used"`
}

// PersistenceConfig holds database settings.
type PersistenceConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	cfg.setDefaults()

	// Read YAML file if it exists
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if len(data) > 0 {
		// Expand environment variables in YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options.
func (c *Config) setDefaults() {
	c.Chain = ChainConfig{
		ChainID:           chains.Mainnet,
		RequestsPerSecond: 25,
	}
	c.Subgraph = SubgraphConfig{
		Retries:         2,
		Timeout:         30 * time.Second,
		Rollback:        true,
		RefreshInterval: 15 * time.Minute,
	}
	c.TokenFee = TokenFeeConfig{
		GasLimit:       1_000_000,
		AmountToBorrow: 100_000,
		CacheTTL:       10 * time.Minute,
	}
	c.Gas = GasConfig{
		DefaultGasPriceWei: 30_000_000_000,
		ReferenceGasUsed:   150_000,
	}
	c.Persistence = PersistenceConfig{
		SQLitePath: "./data/router.db",
	}
	c.Metrics = MetricsConfig{
		Enabled: true,
		Port:    8080,
		Path:    "/metrics",
	}
	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
	}
}

// applyEnvOverrides applies environment variable overrides to configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RPC_URL"); v != "" {
		c.Chain.RPCURL = v
	}
	if v := os.Getenv("WS_URL"); v != "" {
		c.Chain.WSURL = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		var id uint64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil && id > 0 {
			c.Chain.ChainID = id
		}
	}

	if v := os.Getenv("SUBGRAPH_URL"); v != "" {
		c.Subgraph.V3URL = v
	}

	if v := os.Getenv("GAS_TOKEN"); v != "" {
		c.Gas.GasToken = v
	}

	if v := os.Getenv("METRICS_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Metrics.Port = port
		}
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Persistence.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// validate checks that all required configuration values are present and valid.
func (c *Config) validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required (set RPC_URL env var)")
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain.chain_id is required")
	}
	if c.Chain.RequestsPerSecond <= 0 {
		return fmt.Errorf("chain.requests_per_second must be positive")
	}
	if c.Subgraph.Retries < 0 {
		return fmt.Errorf("subgraph.retries must not be negative")
	}
	if c.Subgraph.Timeout <= 0 {
		return fmt.Errorf("subgraph.timeout must be positive")
	}
	if c.Subgraph.RefreshInterval <= 0 {
		return fmt.Errorf("subgraph.refresh_interval must be positive")
	}
	if c.TokenFee.DetectorAddress != "" && !common.IsHexAddress(c.TokenFee.DetectorAddress) {
		return fmt.Errorf("token_fee.detector_address is not an address: %q", c.TokenFee.DetectorAddress)
	}
	if c.TokenFee.GasLimit == 0 {
		return fmt.Errorf("token_fee.gas_limit must be positive")
	}
	if c.TokenFee.AmountToBorrow <= 0 {
		return fmt.Errorf("token_fee.amount_to_borrow must be positive")
	}
	if c.Gas.GasToken != "" && !common.IsHexAddress(c.Gas.GasToken) {
		return fmt.Errorf("gas.gas_token is not an address: %q", c.Gas.GasToken)
	}
	if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be a valid port number")
	}
	return nil
}

// Registry returns the chain tables with any configured overrides applied.
func (c *Config) Registry(base *chains.Registry) *chains.Registry {
	reg := base
	if c.Subgraph.V3URL != "" {
		reg = reg.WithV3SubgraphURL(c.Chain.ChainID, c.Subgraph.V3URL)
	}
	if c.Subgraph.V2URL != "" {
		reg = reg.WithV2SubgraphURL(c.Chain.ChainID, c.Subgraph.V2URL)
	}
	if c.TokenFee.DetectorAddress != "" {
		reg = reg.WithFeeDetector(c.Chain.ChainID, common.HexToAddress(c.TokenFee.DetectorAddress))
	}
	return reg
}
