package db

// schemaSQL is applied on startup by both services; every statement is
// idempotent.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS miner_state (
    address       TEXT PRIMARY KEY,
    tokens        NUMERIC(38, 18) NOT NULL DEFAULT 0,
    total_claimed NUMERIC(38, 18) NOT NULL DEFAULT 0,
    mining_state  JSONB NOT NULL DEFAULT '{}'::jsonb,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS claim_log (
    id          BIGSERIAL PRIMARY KEY,
    claimant    TEXT NOT NULL,
    amount      NUMERIC(38, 18) NOT NULL,
    amount_base NUMERIC(78, 0) NOT NULL,
    nonce       BIGINT NOT NULL,
    tx_hash     TEXT NOT NULL,
    mode        TEXT NOT NULL,
    settled_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS claim_log_claimant_nonce
    ON claim_log (claimant, nonce);

CREATE INDEX IF NOT EXISTS claim_log_settled_at
    ON claim_log (settled_at DESC);
`
