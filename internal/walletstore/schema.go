package walletstore

// schema creates the wallet-tier tables of spec §3/§6. See
// internal/addrstore/schema.go for the migration convention this follows.
const schema = `
CREATE TABLE IF NOT EXISTS wallet (
	id         TEXT PRIMARY KEY,
	xpubkey    TEXT NOT NULL UNIQUE,
	status     TEXT NOT NULL,
	max_gap    INT  NOT NULL,
	created_at BIGINT NOT NULL,
	ready_at   BIGINT
);

CREATE TABLE IF NOT EXISTS wallet_balance (
	wallet_id    TEXT   NOT NULL,
	token_id     TEXT   NOT NULL,
	unlocked     BIGINT NOT NULL DEFAULT 0,
	locked       BIGINT NOT NULL DEFAULT 0,
	transactions INT    NOT NULL DEFAULT 0,
	PRIMARY KEY (wallet_id, token_id)
);

CREATE TABLE IF NOT EXISTS wallet_tx_history (
	wallet_id TEXT   NOT NULL,
	tx_id     TEXT   NOT NULL,
	token_id  TEXT   NOT NULL,
	balance   BIGINT NOT NULL,
	timestamp BIGINT NOT NULL,
	PRIMARY KEY (wallet_id, tx_id, token_id, timestamp)
);
CREATE INDEX IF NOT EXISTS wallet_tx_history_ts_idx ON wallet_tx_history (wallet_id, timestamp DESC);
`
