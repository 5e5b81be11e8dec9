package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"goinvault/internal/observability/metrics"
)

// Store wraps a pgx connection pool and exposes typed helpers for the
// miner-state collaborator and the claim audit log.
type Store struct {
	pool *pgxpool.Pool
}

// MinerState is the per-address record the game loop reads and writes:
// the pending token accumulator, lifetime claimed total, opaque mining
// state, and last activity timestamp. Addresses are lowercased keys.
type MinerState struct {
	Address      string    `json:"address"`
	Tokens       string    `json:"tokens"`
	TotalClaimed string    `json:"total_claimed"`
	MiningState  []byte    `json:"mining_state"`
	LastActivity time.Time `json:"last_activity"`
}

// ClaimRecord is one settled claim read back from claim_log.
type ClaimRecord struct {
	Claimant  string    `json:"claimant"`
	Amount    string    `json:"amount"`
	Nonce     int64     `json:"nonce"`
	TxHash    string    `json:"tx_hash"`
	Mode      string    `json:"mode"`
	SettledAt time.Time `json:"settled_at"`
}

// ClaimLog holds data for claim_log insertions.
type ClaimLog struct {
	Claimant   string
	Amount     string
	AmountBase string
	Nonce      int64
	TxHash     string
	Mode       string
	SettledAt  time.Time
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases underlying connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema guarantees required tables exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	defer metrics.ObserveDBOperation("ensure_schema", time.Since(start))
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// RunInTx executes fn within a transaction boundary.
func (s *Store) RunInTx(ctx context.Context, fn func(pgx.Tx) error) error {
	start := time.Now()
	defer metrics.ObserveDBOperation("run_in_tx", time.Since(start))
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetMinerState loads the per-address record, or nil if none exists.
func (s *Store) GetMinerState(ctx context.Context, address string) (*MinerState, error) {
	start := time.Now()
	defer metrics.ObserveDBOperation("get_miner_state", time.Since(start))
	var state MinerState
	err := s.pool.QueryRow(ctx, `
        SELECT address, tokens::text, total_claimed::text, mining_state, last_activity
        FROM miner_state
        WHERE address = $1
    `, normalizeAddress(address)).Scan(
		&state.Address, &state.Tokens, &state.TotalClaimed, &state.MiningState, &state.LastActivity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// PendingTokens returns the unclaimed accumulator for an address, "0"
// when the miner is unknown.
func (s *Store) PendingTokens(ctx context.Context, address string) (string, error) {
	start := time.Now()
	defer metrics.ObserveDBOperation("pending_tokens", time.Since(start))
	var tokens string
	err := s.pool.QueryRow(ctx, `
        SELECT tokens::text FROM miner_state WHERE address = $1
    `, normalizeAddress(address)).Scan(&tokens)
	if errors.Is(err, pgx.ErrNoRows) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return tokens, nil
}

// AddPendingTokens accrues mined tokens onto the address's pending
// balance, creating the miner row on first sight.
func (s *Store) AddPendingTokens(ctx context.Context, address, amount string) error {
	start := time.Now()
	defer metrics.ObserveDBOperation("add_pending_tokens", time.Since(start))
	_, err := s.pool.Exec(ctx, `
        INSERT INTO miner_state (address, tokens, last_activity)
        VALUES ($1, $2::numeric, NOW())
        ON CONFLICT (address) DO UPDATE
        SET tokens = miner_state.tokens + EXCLUDED.tokens,
            last_activity = NOW()
    `, normalizeAddress(address), amount)
	return err
}

// ResetPendingTokens zeroes the accumulator. Callers invoke this only
// after a settlement outcome with success=true has been observed.
func (s *Store) ResetPendingTokens(ctx context.Context, address string) error {
	start := time.Now()
	defer metrics.ObserveDBOperation("reset_pending_tokens", time.Since(start))
	_, err := s.pool.Exec(ctx, `
        UPDATE miner_state
        SET tokens = 0, last_activity = NOW()
        WHERE address = $1
    `, normalizeAddress(address))
	return err
}

// SaveMiningState stores the opaque game-loop state blob and refreshes
// last_activity.
func (s *Store) SaveMiningState(ctx context.Context, address string, state []byte) error {
	start := time.Now()
	defer metrics.ObserveDBOperation("save_mining_state", time.Since(start))
	if len(state) == 0 {
		state = []byte("{}")
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO miner_state (address, mining_state, last_activity)
        VALUES ($1, $2, NOW())
        ON CONFLICT (address) DO UPDATE
        SET mining_state = EXCLUDED.mining_state,
            last_activity = NOW()
    `, normalizeAddress(address), state)
	return err
}

// InsertClaimLog stores one settled claim for auditing. The unique
// (claimant, nonce) index makes redelivered events harmless.
func (s *Store) InsertClaimLog(ctx context.Context, logEntry ClaimLog) error {
	start := time.Now()
	defer metrics.ObserveDBOperation("insert_claim_log", time.Since(start))
	settledAt := logEntry.SettledAt
	if settledAt.IsZero() {
		settledAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO claim_log (claimant, amount, amount_base, nonce, tx_hash, mode, settled_at)
        VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6, $7)
        ON CONFLICT (claimant, nonce) DO NOTHING
    `, normalizeAddress(logEntry.Claimant), logEntry.Amount, logEntry.AmountBase,
		logEntry.Nonce, logEntry.TxHash, logEntry.Mode, settledAt)
	return err
}

// AddTotalClaimed rolls a settled amount into the miner's lifetime
// claimed total.
func (s *Store) AddTotalClaimed(ctx context.Context, address, amount string) error {
	start := time.Now()
	defer metrics.ObserveDBOperation("add_total_claimed", time.Since(start))
	_, err := s.pool.Exec(ctx, `
        INSERT INTO miner_state (address, total_claimed, last_activity)
        VALUES ($1, $2::numeric, NOW())
        ON CONFLICT (address) DO UPDATE
        SET total_claimed = miner_state.total_claimed + EXCLUDED.total_claimed,
            last_activity = NOW()
    `, normalizeAddress(address), amount)
	return err
}

// ListRecentClaims fetches the newest settled claims, most recent
// first.
func (s *Store) ListRecentClaims(ctx context.Context, limit int) ([]ClaimRecord, error) {
	start := time.Now()
	defer metrics.ObserveDBOperation("list_recent_claims", time.Since(start))
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
        SELECT claimant, amount::text, nonce, tx_hash, mode, settled_at
        FROM claim_log
        ORDER BY settled_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ClaimRecord
	for rows.Next() {
		var rec ClaimRecord
		if err := rows.Scan(&rec.Claimant, &rec.Amount, &rec.Nonce, &rec.TxHash, &rec.Mode, &rec.SettledAt); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
