package addrstore

// schema creates the address-tier tables of spec §3/§6, plus the
// projected_tx idempotency ledger decided in DESIGN.md (spec §9 open
// question). Run with CREATE TABLE IF NOT EXISTS so that repeated daemon
// startups are idempotent, mirroring the teacher's own
// persist.BoltDatabase.checkMetadata pattern of tolerating an
// already-initialized store.
const schema = `
CREATE TABLE IF NOT EXISTS projected_tx (
	tx_id  TEXT PRIMARY KEY,
	height BIGINT
);

CREATE TABLE IF NOT EXISTS utxo (
	tx_id      TEXT   NOT NULL,
	index      INT    NOT NULL,
	token_id   TEXT   NOT NULL,
	address    TEXT   NOT NULL,
	value      BIGINT NOT NULL,
	timelock   BIGINT,
	heightlock BIGINT,
	PRIMARY KEY (tx_id, index)
);
CREATE INDEX IF NOT EXISTS utxo_heightlock_idx ON utxo (heightlock);

CREATE TABLE IF NOT EXISTS address (
	address      TEXT PRIMARY KEY,
	wallet_id    TEXT,
	index        INT,
	transactions INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS address_wallet_id_idx ON address (wallet_id);

CREATE TABLE IF NOT EXISTS address_balance (
	address      TEXT   NOT NULL,
	token_id     TEXT   NOT NULL,
	unlocked     BIGINT NOT NULL DEFAULT 0,
	locked       BIGINT NOT NULL DEFAULT 0,
	transactions INT    NOT NULL DEFAULT 0,
	PRIMARY KEY (address, token_id)
);

CREATE TABLE IF NOT EXISTS address_tx_history (
	address   TEXT   NOT NULL,
	tx_id     TEXT   NOT NULL,
	token_id  TEXT   NOT NULL,
	balance   BIGINT NOT NULL,
	timestamp BIGINT NOT NULL,
	PRIMARY KEY (address, tx_id, token_id)
);
CREATE INDEX IF NOT EXISTS address_tx_history_ts_idx ON address_tx_history (address, timestamp DESC);
`
