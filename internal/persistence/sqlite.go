package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Store provides SQLite-based persistence for the pool universe and router caches.
type Store struct {
	db *sql.DB
}

// TokenRecord represents token metadata stored in the database.
type TokenRecord struct {
	ChainID   uint64
	Address   string
	Symbol    string
	Name      string
	Decimals  int
	CreatedAt time.Time
}

// PoolRecord represents one pool of the subgraph snapshot.
type PoolRecord struct {
	ChainID  uint64
	Protocol string
	ID       string
	Token0   string
	Token1   string
	Symbol0  string
	Symbol1  string
	FeeTier  uint32
	// Liquidity is a decimal integer string for V3 and empty for V2.
	Liquidity string
	// ReserveUSD is a decimal string for V2 and empty for V3.
	ReserveUSD string
	UpdatedAt  time.Time
}

// TokenFeeRecord is a cached fee probe. Fees are decimal integer strings in basis points.
type TokenFeeRecord struct {
	ChainID    uint64
	Token      string
	BuyFeeBps  string
	SellFeeBps string
	UpdatedAt  time.Time
}

// RouteKey identifies the latest cached route for a pair and trade direction.
type RouteKey struct {
	ChainID   uint64
	TokenIn   string
	TokenOut  string
	TradeType int
}

// CachedRouteRecord is a serialized route with the block it was computed at.
type CachedRouteRecord struct {
	RouteKey
	BlockNumber uint64
	Payload     []byte
	UpdatedAt   time.Time
}

// NewStore creates a new SQLite store and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

// migrate runs database schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			chain_id INTEGER NOT NULL,
			address TEXT NOT NULL,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			decimals INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (chain_id, address)
		)`,
		`CREATE TABLE IF NOT EXISTS subgraph_pools (
			chain_id INTEGER NOT NULL,
			protocol TEXT NOT NULL,
			id TEXT NOT NULL,
			token0 TEXT NOT NULL,
			token1 TEXT NOT NULL,
			symbol0 TEXT NOT NULL DEFAULT '',
			symbol1 TEXT NOT NULL DEFAULT '',
			fee_tier INTEGER NOT NULL DEFAULT 0,
			liquidity TEXT NOT NULL DEFAULT '',
			reserve_usd TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (chain_id, protocol, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subgraph_pools_tokens ON subgraph_pools(chain_id, token0, token1)`,
		`CREATE TABLE IF NOT EXISTS token_fees (
			chain_id INTEGER NOT NULL,
			token TEXT NOT NULL,
			buy_fee_bps TEXT NOT NULL,
			sell_fee_bps TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (chain_id, token)
		)`,
		`CREATE TABLE IF NOT EXISTS cached_routes (
			chain_id INTEGER NOT NULL,
			token_in TEXT NOT NULL,
			token_out TEXT NOT NULL,
			trade_type INTEGER NOT NULL,
			block_number INTEGER NOT NULL,
			payload BLOB NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (chain_id, token_in, token_out, trade_type)
		)`,
		`CREATE TABLE IF NOT EXISTS system_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	log.Info().Msg("Database migrations completed")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BulkUpsertTokens inserts or updates multiple token records efficiently.
func (s *Store) BulkUpsertTokens(ctx context.Context, tokens []TokenRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tokens (chain_id, address, symbol, name, decimals, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, address) DO UPDATE SET symbol = excluded.symbol, name = excluded.name, decimals = excluded.decimals`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, token := range tokens {
		if _, err := stmt.ExecContext(ctx, token.ChainID, strings.ToLower(token.Address), token.Symbol, token.Name, token.Decimals, now); err != nil {
			return fmt.Errorf("inserting token %s: %w", token.Address, err)
		}
	}

	return tx.Commit()
}

// GetAllTokens retrieves every token known for a chain.
func (s *Store) GetAllTokens(ctx context.Context, chainID uint64) ([]TokenRecord, error) {
	query := `SELECT chain_id, address, symbol, name, decimals, created_at FROM tokens WHERE chain_id = ?`

	rows, err := s.db.QueryContext(ctx, query, chainID)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	var tokens []TokenRecord
	for rows.Next() {
		var t TokenRecord
		if err := rows.Scan(&t.ChainID, &t.Address, &t.Symbol, &t.Name, &t.Decimals, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}

// ReplacePools swaps the stored snapshot for one chain and protocol. Only the latest snapshot is kept.
func (s *Store) ReplacePools(ctx context.Context, chainID uint64, protocol string, pools []PoolRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM subgraph_pools WHERE chain_id = ? AND protocol = ?", chainID, protocol); err != nil {
		return fmt.Errorf("clearing pools: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO subgraph_pools
		(chain_id, protocol, id, token0, token1, symbol0, symbol1, fee_tier, liquidity, reserve_usd, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, protocol, id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range pools {
		if _, err := stmt.ExecContext(ctx, chainID, protocol, p.ID, p.Token0, p.Token1,
			p.Symbol0, p.Symbol1, p.FeeTier, p.Liquidity, p.ReserveUSD, now); err != nil {
			return fmt.Errorf("inserting pool %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// GetPools retrieves the stored snapshot for one chain and protocol.
func (s *Store) GetPools(ctx context.Context, chainID uint64, protocol string) ([]PoolRecord, error) {
	query := `SELECT chain_id, protocol, id, token0, token1, symbol0, symbol1, fee_tier, liquidity, reserve_usd, updated_at
		FROM subgraph_pools
		WHERE chain_id = ? AND protocol = ?
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, chainID, protocol)
	if err != nil {
		return nil, fmt.Errorf("querying pools: %w", err)
	}
	defer rows.Close()

	var pools []PoolRecord
	for rows.Next() {
		var p PoolRecord
		if err := rows.Scan(&p.ChainID, &p.Protocol, &p.ID, &p.Token0, &p.Token1, &p.Symbol0, &p.Symbol1,
			&p.FeeTier, &p.Liquidity, &p.ReserveUSD, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		pools = append(pools, p)
	}

	return pools, rows.Err()
}

// GetPoolCount returns the number of stored pools for a chain across protocols.
func (s *Store) GetPoolCount(ctx context.Context, chainID uint64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subgraph_pools WHERE chain_id = ?", chainID).Scan(&count)
	return count, err
}

// UpsertTokenFees stores fee probe results.
func (s *Store) UpsertTokenFees(ctx context.Context, fees []TokenFeeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO token_fees (chain_id, token, buy_fee_bps, sell_fee_bps, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, token) DO UPDATE SET
			buy_fee_bps = excluded.buy_fee_bps,
			sell_fee_bps = excluded.sell_fee_bps,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range fees {
		updated := f.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, f.ChainID, strings.ToLower(f.Token), f.BuyFeeBps, f.SellFeeBps, updated.UTC()); err != nil {
			return fmt.Errorf("inserting token fee %s: %w", f.Token, err)
		}
	}

	return tx.Commit()
}

// GetTokenFees returns the cached fees updated at or after since, keyed by lower-case address.
func (s *Store) GetTokenFees(ctx context.Context, chainID uint64, tokens []string, since time.Time) (map[string]TokenFeeRecord, error) {
	out := make(map[string]TokenFeeRecord, len(tokens))
	if len(tokens) == 0 {
		return out, nil
	}

	args := make([]interface{}, 0, len(tokens)+2)
	args = append(args, chainID, since.UTC())
	placeholders := make([]string, len(tokens))
	for i, t := range tokens {
		placeholders[i] = "?"
		args = append(args, strings.ToLower(t))
	}

	query := `SELECT chain_id, token, buy_fee_bps, sell_fee_bps, updated_at
		FROM token_fees
		WHERE chain_id = ? AND updated_at >= ? AND token IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying token fees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f TokenFeeRecord
		if err := rows.Scan(&f.ChainID, &f.Token, &f.BuyFeeBps, &f.SellFeeBps, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out[f.Token] = f
	}

	return out, rows.Err()
}

// PutCachedRoute replaces the cached route for the record's key.
func (s *Store) PutCachedRoute(ctx context.Context, r CachedRouteRecord) error {
	query := `INSERT INTO cached_routes (chain_id, token_in, token_out, trade_type, block_number, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, token_in, token_out, trade_type) DO UPDATE SET
			block_number = excluded.block_number,
			payload = excluded.payload,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, r.ChainID, strings.ToLower(r.TokenIn), strings.ToLower(r.TokenOut),
		r.TradeType, r.BlockNumber, r.Payload, time.Now().UTC())
	return err
}

// GetCachedRoute retrieves the cached route for key, or nil when there is none.
func (s *Store) GetCachedRoute(ctx context.Context, key RouteKey) (*CachedRouteRecord, error) {
	query := `SELECT chain_id, token_in, token_out, trade_type, block_number, payload, updated_at
		FROM cached_routes
		WHERE chain_id = ? AND token_in = ? AND token_out = ? AND trade_type = ?`

	var r CachedRouteRecord
	err := s.db.QueryRowContext(ctx, query, key.ChainID, strings.ToLower(key.TokenIn), strings.ToLower(key.TokenOut), key.TradeType).Scan(
		&r.ChainID, &r.TokenIn, &r.TokenOut, &r.TradeType, &r.BlockNumber, &r.Payload, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetSystemState stores a key-value pair in system state.
func (s *Store) SetSystemState(ctx context.Context, key, value string) error {
	query := `INSERT INTO system_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, key, value, time.Now())
	return err
}

// GetSystemState retrieves a value from system state.
func (s *Store) GetSystemState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM system_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
