package main

import (
	"context"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swaprouter/internal/chains"
	"swaprouter/internal/config"
	"swaprouter/internal/curator"
	"swaprouter/internal/entities"
	"swaprouter/internal/gas"
	"swaprouter/internal/ingestion"
	"swaprouter/internal/metrics"
	"swaprouter/internal/persistence"
	"swaprouter/internal/providers"
	"swaprouter/internal/routing"
	"swaprouter/internal/subgraph"
	"swaprouter/internal/tokenfee"
	"swaprouter/pkg/chain/evm"
	"swaprouter/pkg/client"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const reconcileInterval = 12 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		// .env file is optional
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Logging)
	log.Info().Uint64("chain_id", cfg.Chain.ChainID).Msg("Starting swap router gas service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("Application error")
	}

	log.Info().Msg("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	chainID := cfg.Chain.ChainID
	reg := cfg.Registry(chains.Default())

	m := metrics.New()
	if cfg.Metrics.Enabled {
		if err := m.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			m.Shutdown(shutdownCtx)
		}()
		log.Info().Int("port", cfg.Metrics.Port).Msg("Metrics server started")
	}

	store, err := persistence.NewStore(cfg.Persistence.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info().Str("path", cfg.Persistence.SQLitePath).Msg("SQLite initialized")

	rpcClient, err := evm.NewClient(cfg.Chain.RPCURL, cfg.Chain.RequestsPerSecond)
	if err != nil {
		return err
	}
	defer rpcClient.Close()
	log.Info().Msg("RPC client connected")

	heads := ingestion.NewService(cfg.Chain.WSURL, rpcClient, m)
	reconciler := ingestion.NewReconciler(rpcClient, heads, reconcileInterval)

	tokens := providers.NewOnChainTokenProvider(chainID, rpcClient)
	if err := seedTokens(ctx, store, tokens, chainID); err != nil {
		log.Warn().Err(err).Msg("Failed to seed tokens from store")
	}

	httpClient := client.NewHTTPClientWithTimeout(cfg.Subgraph.Timeout)
	subgraphOpts := subgraph.Options{
		Retries:  cfg.Subgraph.Retries,
		Timeout:  cfg.Subgraph.Timeout,
		Rollback: cfg.Subgraph.Rollback,
	}
	v3Subgraph, err := subgraph.NewV3Fetcher(reg, chainID, httpClient, subgraphOpts, m)
	if err != nil {
		return err
	}
	var v2Subgraph curator.V2Source
	if f, err := subgraph.NewV2Fetcher(reg, chainID, httpClient, subgraphOpts, m); err != nil {
		log.Info().Err(err).Msg("V2 pool universe disabled")
	} else {
		v2Subgraph = f
	}

	curatorSvc := curator.NewCurator(
		curator.Config{
			ChainID:         chainID,
			RefreshInterval: cfg.Subgraph.RefreshInterval,
		},
		v3Subgraph,
		v2Subgraph,
		store,
		heads,
		tokens,
		m,
	)

	v3Pools, err := providers.NewOnChainV3PoolProvider(reg, chainID, rpcClient)
	if err != nil {
		return err
	}
	var v2Pools providers.V2PoolProvider
	if p, err := providers.NewOnChainV2PoolProvider(reg, chainID, rpcClient); err != nil {
		log.Info().Err(err).Msg("V2 pricing disabled")
	} else {
		v2Pools = p
	}

	probe, err := tokenfee.NewOnChainFetcher(reg, chainID, rpcClient, tokenfee.Options{
		GasLimit:       cfg.TokenFee.GasLimit,
		AmountToBorrow: big.NewInt(cfg.TokenFee.AmountToBorrow),
	}, m)
	if err != nil {
		return err
	}
	fees := tokenfee.NewCachingFetcher(chainID, probe, store, cfg.TokenFee.CacheTTL, m)

	var gasToken *entities.Token
	if cfg.Gas.GasToken != "" {
		found, err := tokens.GetTokens(ctx, []common.Address{common.HexToAddress(cfg.Gas.GasToken)}, nil)
		if err != nil {
			return err
		}
		for _, t := range found {
			gasToken = &t
		}
	}

	selector := gas.NewPoolSelector(reg, m)
	rep := &reporter{
		chainID:    chainID,
		chains:     reg,
		pricer:     rpcClient,
		estimator:  gas.NewEstimator(reg, selector, m),
		selector:   selector,
		l2Data:     gas.NewL2GasDataProvider(reg, chainID, rpcClient),
		routes:     routing.NewRouteCache(store),
		v2:         v2Pools,
		v3:         v3Pools,
		gasToken:   gasToken,
		defaultGas: uint256.NewInt(cfg.Gas.DefaultGasPriceWei),
		refGasUsed: uint256.NewInt(cfg.Gas.ReferenceGasUsed),
		metrics:    m,
	}

	log.Info().Msg("Starting bootstrap...")
	bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 10*time.Minute)
	if err := curatorSvc.Bootstrap(bootstrapCtx); err != nil {
		bootstrapCancel()
		return err
	}
	probeTokenFees(bootstrapCtx, curatorSvc, fees, heads)
	bootstrapCancel()

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Chain.WSURL != "" {
		g.Go(func() error {
			log.Info().Msg("Starting head tracker...")
			return heads.Run(gCtx)
		})
	} else {
		log.Warn().Msg("No WebSocket URL, following heads over RPC only")
	}

	g.Go(func() error {
		return reconciler.Run(gCtx)
	})

	g.Go(func() error {
		log.Info().Msg("Starting curator...")
		return curatorSvc.Run(gCtx)
	})

	g.Go(func() error {
		return rep.run(gCtx, heads.Heads())
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	return nil
}

// seedTokens loads stored token metadata so known tokens are never fetched again.
func seedTokens(ctx context.Context, store *persistence.Store, tokens *providers.OnChainTokenProvider, chainID uint64) error {
	records, err := store.GetAllTokens(ctx, chainID)
	if err != nil {
		return err
	}
	seed := make([]entities.Token, 0, len(records))
	for _, r := range records {
		seed = append(seed, entities.NewToken(r.ChainID, common.HexToAddress(r.Address), uint8(r.Decimals), r.Symbol, r.Name))
	}
	tokens.Seed(seed...)
	log.Info().Int("tokens", len(seed)).Msg("Seeded token metadata from store")
	return nil
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}
