// Package addrstore is the Postgres-backed implementation of
// modules.AddressStore: the utxo, address, address_balance and
// address_tx_history tables of spec §3, written with the
// clamp-on-insert/raw-add-on-update upsert convention spec §4.3/§9
// describes. Grounded on persist/boltdb.go's thin wrapper-over-the-driver
// shape and modules/explorer/update.go's one-transaction-per-event idiom,
// adapted from bbolt buckets to database/sql + github.com/lib/pq.
package addrstore

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/andreabadesso/hathor-wallet-service/internal/sqlutil"
	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// Store implements modules.AddressStore against a Querier, which may be the
// shared pool (for read endpoints) or a single *sql.Tx owned by
// internal/projector (for the atomic write path, spec §5).
type Store struct {
	q sqlutil.Querier
}

// New wraps q. Callers that want a fresh schema should call Migrate once at
// startup against the pool; New itself performs no DDL, so it is cheap to
// construct per-transaction.
func New(q sqlutil.Querier) *Store {
	return &Store{q: q}
}

// Migrate creates the address-tier tables if they do not already exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return sqlutil.Translate(err)
}

// MarkProjected attempts to record txID in the projected_tx idempotency
// ledger (spec §9 "Open question: idempotence of project"). ok is false,
// with a nil error, when txID was already recorded -- the caller treats
// that as a successful no-op rather than reprocessing the event.
func (s *Store) MarkProjected(ctx context.Context, txID string, height *modules.Height) (bool, error) {
	var h sql.NullInt64
	if height != nil {
		h = sql.NullInt64{Int64: int64(*height), Valid: true}
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO projected_tx (tx_id, height) VALUES ($1, $2)
		ON CONFLICT (tx_id) DO NOTHING
	`, txID, h)
	if err != nil {
		return false, sqlutil.Translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, sqlutil.Translate(err)
	}
	return n == 1, nil
}

// InsertUTXOs implements modules.AddressStore.
func (s *Store) InsertUTXOs(ctx context.Context, utxos []modules.UTXO) error {
	if len(utxos) == 0 {
		return nil
	}
	txIDs := make([]string, len(utxos))
	indexes := make([]int64, len(utxos))
	tokenIDs := make([]string, len(utxos))
	addresses := make([]string, len(utxos))
	values := make([]int64, len(utxos))
	timelocks := make([]sql.NullInt64, len(utxos))
	heightlocks := make([]sql.NullInt64, len(utxos))
	for i, u := range utxos {
		txIDs[i] = u.TxID
		indexes[i] = int64(u.Index)
		tokenIDs[i] = u.TokenID
		addresses[i] = u.Address
		values[i] = int64(u.Value)
		if u.TimeLock != nil {
			timelocks[i] = sql.NullInt64{Int64: int64(*u.TimeLock), Valid: true}
		}
		if u.HeightLock != nil {
			heightlocks[i] = sql.NullInt64{Int64: int64(*u.HeightLock), Valid: true}
		}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO utxo (tx_id, index, token_id, address, value, timelock, heightlock)
		SELECT * FROM unnest($1::text[], $2::bigint[], $3::text[], $4::text[], $5::bigint[], $6::bigint[], $7::bigint[])
	`, pq.Array(txIDs), pq.Array(indexes), pq.Array(tokenIDs), pq.Array(addresses), pq.Array(values),
		pq.Array(timelocks), pq.Array(heightlocks))
	return sqlutil.Translate(err)
}

// DeleteUTXO implements modules.AddressStore.
func (s *Store) DeleteUTXO(ctx context.Context, txID string, index uint32) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM utxo WHERE tx_id = $1 AND index = $2`, txID, index)
	if err != nil {
		return false, sqlutil.Translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, sqlutil.Translate(err)
	}
	return n > 0, nil
}

// ApplyDeltas implements modules.AddressStore's applyDeltas (spec §4.3).
func (s *Store) ApplyDeltas(ctx context.Context, txID string, timestamp modules.Timestamp, deltas modules.DeltaMap) error {
	if len(deltas) == 0 {
		return nil
	}

	addresses := make([]string, 0, len(deltas))
	for addr := range deltas {
		addresses = append(addresses, addr)
	}
	if err := s.bumpAddressTransactions(ctx, addresses); err != nil {
		return err
	}

	var cellAddr, cellToken, histAddr, histToken, histTx []string
	var cellUnlocked, cellLocked, histBalance, histTS []int64
	for addr, byToken := range deltas {
		for token, delta := range byToken {
			cellAddr = append(cellAddr, addr)
			cellToken = append(cellToken, token)
			cellUnlocked = append(cellUnlocked, delta.Unlocked)
			cellLocked = append(cellLocked, delta.Locked)

			histAddr = append(histAddr, addr)
			histToken = append(histToken, token)
			histTx = append(histTx, txID)
			histBalance = append(histBalance, delta.Unlocked+delta.Locked)
			histTS = append(histTS, int64(timestamp))
		}
	}

	if err := s.upsertAddressBalance(ctx, cellAddr, cellToken, cellUnlocked, cellLocked); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO address_tx_history (address, tx_id, token_id, balance, timestamp)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::bigint[], $5::bigint[])
	`, pq.Array(histAddr), pq.Array(histTx), pq.Array(histToken), pq.Array(histBalance), pq.Array(histTS))
	return sqlutil.Translate(err)
}

func (s *Store) bumpAddressTransactions(ctx context.Context, addresses []string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO address (address, transactions)
		SELECT a, 1 FROM unnest($1::text[]) AS a
		ON CONFLICT (address) DO UPDATE SET transactions = address.transactions + 1
	`, pq.Array(addresses))
	return sqlutil.Translate(err)
}

// upsertAddressBalance runs the clamp-on-insert / raw-add-on-update upsert
// of spec §4.3/§9 as two batched statements: an UPDATE that raw-adds the
// signed delta into rows that already exist, followed by an INSERT of the
// clamped delta for rows that still don't. Splitting it this way (rather
// than a single ON CONFLICT ... DO UPDATE SET x = EXCLUDED.x) is what lets
// the update path add the true signed delta -- EXCLUDED would only ever
// expose the clamped candidate value, which is wrong whenever an unlock
// release legitimately moves a negative delta into an existing locked cell.
func (s *Store) upsertAddressBalance(ctx context.Context, addresses, tokens []string, unlocked, locked []int64) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE address_balance ab
		SET unlocked = ab.unlocked + d.dunlocked,
		    locked = ab.locked + d.dlocked,
		    transactions = ab.transactions + 1
		FROM unnest($1::text[], $2::text[], $3::bigint[], $4::bigint[]) AS d(address, token_id, dunlocked, dlocked)
		WHERE ab.address = d.address AND ab.token_id = d.token_id
	`, pq.Array(addresses), pq.Array(tokens), pq.Array(unlocked), pq.Array(locked))
	if err != nil {
		return sqlutil.Translate(err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO address_balance (address, token_id, unlocked, locked, transactions)
		SELECT d.address, d.token_id, GREATEST(d.dunlocked, 0), GREATEST(d.dlocked, 0), 1
		FROM unnest($1::text[], $2::text[], $3::bigint[], $4::bigint[]) AS d(address, token_id, dunlocked, dlocked)
		WHERE NOT EXISTS (
			SELECT 1 FROM address_balance ab WHERE ab.address = d.address AND ab.token_id = d.token_id
		)
	`, pq.Array(addresses), pq.Array(tokens), pq.Array(unlocked), pq.Array(locked))
	return sqlutil.Translate(err)
}

// ApplyUnlock implements modules.AddressStore.ApplyUnlock (spec §4.3).
func (s *Store) ApplyUnlock(ctx context.Context, unlocks modules.UnlockMap) error {
	if len(unlocks) == 0 {
		return nil
	}
	var addresses, tokens []string
	var amounts []int64
	for addr, byToken := range unlocks {
		for token, amount := range byToken {
			if amount == 0 {
				continue
			}
			addresses = append(addresses, addr)
			tokens = append(tokens, token)
			amounts = append(amounts, amount)
		}
	}
	if len(addresses) == 0 {
		return nil
	}
	_, err := s.q.ExecContext(ctx, `
		UPDATE address_balance ab
		SET unlocked = ab.unlocked + d.amount,
		    locked = ab.locked - d.amount
		FROM unnest($1::text[], $2::text[], $3::bigint[]) AS d(address, token_id, amount)
		WHERE ab.address = d.address AND ab.token_id = d.token_id
	`, pq.Array(addresses), pq.Array(tokens), pq.Array(amounts))
	return sqlutil.Translate(err)
}

// FindUTXOsMaturingAt implements modules.AddressStore (spec §4.3).
func (s *Store) FindUTXOsMaturingAt(ctx context.Context, height modules.Height, now modules.Timestamp) ([]modules.UTXO, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT tx_id, index, token_id, address, value, timelock, heightlock
		FROM utxo
		WHERE heightlock = $1 AND (timelock IS NULL OR timelock <= $2)
	`, int64(height), int64(now))
	if err != nil {
		return nil, sqlutil.Translate(err)
	}
	defer rows.Close()

	var out []modules.UTXO
	for rows.Next() {
		var u modules.UTXO
		var index int64
		var value int64
		var timelock, heightlock sql.NullInt64
		if err := rows.Scan(&u.TxID, &index, &u.TokenID, &u.Address, &value, &timelock, &heightlock); err != nil {
			return nil, sqlutil.Translate(err)
		}
		u.Index = uint32(index)
		u.Value = uint64(value)
		if timelock.Valid {
			t := modules.Timestamp(timelock.Int64)
			u.TimeLock = &t
		}
		if heightlock.Valid {
			h := modules.Height(heightlock.Int64)
			u.HeightLock = &h
		}
		out = append(out, u)
	}
	return out, sqlutil.Translate(rows.Err())
}

// LookupWalletsByAddresses implements modules.AddressStore (spec §4.1 step 5).
func (s *Store) LookupWalletsByAddresses(ctx context.Context, addresses []string) (map[string]modules.WalletClaim, error) {
	out := make(map[string]modules.WalletClaim)
	if len(addresses) == 0 {
		return out, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT address, wallet_id FROM address
		WHERE address = ANY($1::text[]) AND wallet_id IS NOT NULL
	`, pq.Array(addresses))
	if err != nil {
		return nil, sqlutil.Translate(err)
	}
	defer rows.Close()
	for rows.Next() {
		var addr, walletID string
		if err := rows.Scan(&addr, &walletID); err != nil {
			return nil, sqlutil.Translate(err)
		}
		out[addr] = modules.WalletClaim{WalletID: walletID}
	}
	return out, sqlutil.Translate(rows.Err())
}

// ScanAddresses implements modules.AddressStore (spec §4.4 step 1).
func (s *Store) ScanAddresses(ctx context.Context, addresses []string) (map[string]modules.ScannedAddress, error) {
	out := make(map[string]modules.ScannedAddress)
	if len(addresses) == 0 {
		return out, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT address, COALESCE(index, 0), transactions FROM address
		WHERE address = ANY($1::text[])
	`, pq.Array(addresses))
	if err != nil {
		return nil, sqlutil.Translate(err)
	}
	defer rows.Close()
	for rows.Next() {
		var addr string
		var index int64
		var txs int64
		if err := rows.Scan(&addr, &index, &txs); err != nil {
			return nil, sqlutil.Translate(err)
		}
		out[addr] = modules.ScannedAddress{Index: uint32(index), Transactions: uint32(txs)}
	}
	return out, sqlutil.Translate(rows.Err())
}

// ClaimAddresses implements modules.AddressStore (spec §4.4 step 2).
func (s *Store) ClaimAddresses(ctx context.Context, walletID string, claims []modules.AddressClaim) error {
	if len(claims) == 0 {
		return nil
	}
	addresses := make([]string, len(claims))
	indexes := make([]int64, len(claims))
	for i, c := range claims {
		addresses[i] = c.Address
		indexes[i] = int64(c.Index)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO address (address, wallet_id, index, transactions)
		SELECT d.address, $2, d.index, 0
		FROM unnest($1::text[], $3::bigint[]) AS d(address, index)
		ON CONFLICT (address) DO UPDATE SET wallet_id = $2, index = EXCLUDED.index
	`, pq.Array(addresses), walletID, pq.Array(indexes))
	return sqlutil.Translate(err)
}

// GetAddresses implements modules.AddressStore (spec §4.5 Reads).
func (s *Store) GetAddresses(ctx context.Context, walletID string) ([]modules.AddressInfo, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT address, COALESCE(index, 0), transactions FROM address
		WHERE wallet_id = $1
		ORDER BY index ASC
	`, walletID)
	if err != nil {
		return nil, sqlutil.Translate(err)
	}
	defer rows.Close()
	var out []modules.AddressInfo
	for rows.Next() {
		var info modules.AddressInfo
		var index, txs int64
		if err := rows.Scan(&info.Address, &index, &txs); err != nil {
			return nil, sqlutil.Translate(err)
		}
		info.Index = uint32(index)
		info.Transactions = uint32(txs)
		out = append(out, info)
	}
	return out, sqlutil.Translate(rows.Err())
}

// GetAddressBalances implements modules.AddressStore (SPEC_FULL §3 diagnostic read).
func (s *Store) GetAddressBalances(ctx context.Context, address, tokenID string) ([]modules.TokenSummary, error) {
	query := `SELECT token_id, transactions, unlocked, locked FROM address_balance WHERE address = $1`
	args := []interface{}{address}
	if tokenID != "" {
		query += ` AND token_id = $2`
		args = append(args, tokenID)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlutil.Translate(err)
	}
	defer rows.Close()
	var out []modules.TokenSummary
	for rows.Next() {
		var ts modules.TokenSummary
		var txs int64
		if err := rows.Scan(&ts.TokenID, &txs, &ts.Balance.Unlocked, &ts.Balance.Locked); err != nil {
			return nil, sqlutil.Translate(err)
		}
		ts.Transactions = uint32(txs)
		out = append(out, ts)
	}
	return out, sqlutil.Translate(rows.Err())
}
