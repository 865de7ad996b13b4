// Package walletstore is the Postgres-backed implementation of
// modules.WalletStore: the wallet, wallet_balance and wallet_tx_history
// tables of spec §3, mirroring internal/addrstore's upsert conventions one
// tier up (per-wallet instead of per-address aggregates).
package walletstore

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/lib/pq"

	"github.com/andreabadesso/hathor-wallet-service/internal/sqlutil"
	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// Store implements modules.WalletStore against a Querier.
type Store struct {
	q sqlutil.Querier
}

// New wraps q, following internal/addrstore.New's convention.
func New(q sqlutil.Querier) *Store {
	return &Store{q: q}
}

// Migrate creates the wallet-tier tables if they do not already exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return sqlutil.Translate(err)
}

// CreateWallet implements modules.WalletStore (spec §4.4 register).
func (s *Store) CreateWallet(ctx context.Context, id, xpubkey string, maxGap uint16, createdAt modules.Timestamp) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO wallet (id, xpubkey, status, max_gap, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, xpubkey, modules.WalletStatusCreating, int64(maxGap), int64(createdAt))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return modules.ErrWalletAlreadyCreated
		}
		return sqlutil.Translate(err)
	}
	return nil
}

// MarkReady implements modules.WalletStore (spec §4.4 materialize, final step).
func (s *Store) MarkReady(ctx context.Context, walletID string, readyAt modules.Timestamp) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE wallet SET status = $2, ready_at = $3 WHERE id = $1
	`, walletID, modules.WalletStatusReady, int64(readyAt))
	return sqlutil.Translate(err)
}

// MarkError implements modules.WalletStore.
func (s *Store) MarkError(ctx context.Context, walletID string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE wallet SET status = $2 WHERE id = $1`, walletID, modules.WalletStatusError)
	return sqlutil.Translate(err)
}

// GetWallet implements modules.WalletStore.
func (s *Store) GetWallet(ctx context.Context, walletID string) (*modules.Wallet, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, xpubkey, status, max_gap, created_at, ready_at FROM wallet WHERE id = $1
	`, walletID)
	var w modules.Wallet
	var status string
	var maxGap int64
	var createdAt int64
	var readyAt sql.NullInt64
	if err := row.Scan(&w.ID, &w.XPubKey, &status, &maxGap, &createdAt, &readyAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, modules.ErrWalletNotFound
		}
		return nil, sqlutil.Translate(err)
	}
	w.Status = modules.WalletStatus(status)
	w.MaxGap = uint16(maxGap)
	w.CreatedAt = modules.Timestamp(createdAt)
	if readyAt.Valid {
		t := modules.Timestamp(readyAt.Int64)
		w.ReadyAt = &t
	}
	return &w, nil
}

// ApplyDeltas implements modules.WalletStore (spec §4.1 step 5). It mirrors
// internal/addrstore.Store.ApplyDeltas's two-statement upsert, aggregated
// at the wallet_id grain instead of address.
func (s *Store) ApplyDeltas(ctx context.Context, txID string, timestamp modules.Timestamp, deltas modules.DeltaMap) error {
	if len(deltas) == 0 {
		return nil
	}
	var cellWallet, cellToken, histWallet, histToken, histTx []string
	var cellUnlocked, cellLocked, histBalance, histTS []int64
	for walletID, byToken := range deltas {
		for token, delta := range byToken {
			cellWallet = append(cellWallet, walletID)
			cellToken = append(cellToken, token)
			cellUnlocked = append(cellUnlocked, delta.Unlocked)
			cellLocked = append(cellLocked, delta.Locked)

			histWallet = append(histWallet, walletID)
			histToken = append(histToken, token)
			histTx = append(histTx, txID)
			histBalance = append(histBalance, delta.Unlocked+delta.Locked)
			histTS = append(histTS, int64(timestamp))
		}
	}

	if err := s.upsertWalletBalance(ctx, cellWallet, cellToken, cellUnlocked, cellLocked); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO wallet_tx_history (wallet_id, tx_id, token_id, balance, timestamp)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::bigint[], $5::bigint[])
	`, pq.Array(histWallet), pq.Array(histTx), pq.Array(histToken), pq.Array(histBalance), pq.Array(histTS))
	return sqlutil.Translate(err)
}

// upsertWalletBalance applies the same clamp-on-insert/raw-add-on-update
// split as internal/addrstore.Store.upsertAddressBalance; see that
// function's comment for why a single ON CONFLICT ... EXCLUDED statement
// cannot express it.
func (s *Store) upsertWalletBalance(ctx context.Context, wallets, tokens []string, unlocked, locked []int64) error {
	if len(wallets) == 0 {
		return nil
	}
	_, err := s.q.ExecContext(ctx, `
		UPDATE wallet_balance wb
		SET unlocked = wb.unlocked + d.dunlocked,
		    locked = wb.locked + d.dlocked,
		    transactions = wb.transactions + 1
		FROM unnest($1::text[], $2::text[], $3::bigint[], $4::bigint[]) AS d(wallet_id, token_id, dunlocked, dlocked)
		WHERE wb.wallet_id = d.wallet_id AND wb.token_id = d.token_id
	`, pq.Array(wallets), pq.Array(tokens), pq.Array(unlocked), pq.Array(locked))
	if err != nil {
		return sqlutil.Translate(err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO wallet_balance (wallet_id, token_id, unlocked, locked, transactions)
		SELECT d.wallet_id, d.token_id, GREATEST(d.dunlocked, 0), GREATEST(d.dlocked, 0), 1
		FROM unnest($1::text[], $2::text[], $3::bigint[], $4::bigint[]) AS d(wallet_id, token_id, dunlocked, dlocked)
		WHERE NOT EXISTS (
			SELECT 1 FROM wallet_balance wb WHERE wb.wallet_id = d.wallet_id AND wb.token_id = d.token_id
		)
	`, pq.Array(wallets), pq.Array(tokens), pq.Array(unlocked), pq.Array(locked))
	return sqlutil.Translate(err)
}

// ApplyUnlock implements modules.WalletStore.
func (s *Store) ApplyUnlock(ctx context.Context, unlocks modules.UnlockMap) error {
	if len(unlocks) == 0 {
		return nil
	}
	var wallets, tokens []string
	var amounts []int64
	for walletID, byToken := range unlocks {
		for token, amount := range byToken {
			if amount == 0 {
				continue
			}
			wallets = append(wallets, walletID)
			tokens = append(tokens, token)
			amounts = append(amounts, amount)
		}
	}
	if len(wallets) == 0 {
		return nil
	}
	_, err := s.q.ExecContext(ctx, `
		UPDATE wallet_balance wb
		SET unlocked = wb.unlocked + d.amount,
		    locked = wb.locked - d.amount
		FROM unnest($1::text[], $2::text[], $3::bigint[]) AS d(wallet_id, token_id, amount)
		WHERE wb.wallet_id = d.wallet_id AND wb.token_id = d.token_id
	`, pq.Array(wallets), pq.Array(tokens), pq.Array(amounts))
	return sqlutil.Translate(err)
}

// SeedFromAddresses implements modules.WalletStore (spec §4.4 steps 3-4):
// it folds each already-claimed address's current balances and history into
// the wallet aggregate, and fails closed with ErrInconsistentChain if the
// wallet already carries conflicting totals (an address double-claimed by
// two materialize runs would otherwise silently double-count).
func (s *Store) SeedFromAddresses(ctx context.Context, walletID string, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}

	var exists int
	if err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM wallet_balance WHERE wallet_id = $1`, walletID).Scan(&exists); err != nil {
		return sqlutil.Translate(err)
	}
	if exists > 0 {
		return modules.ErrInconsistentChain
	}

	type balanceAgg struct{ unlocked, locked int64 }
	balances := make(map[string]balanceAgg)
	balRows, err := s.q.QueryContext(ctx, `
		SELECT token_id, sum(unlocked), sum(locked)
		FROM address_balance
		WHERE address = ANY($1::text[])
		GROUP BY token_id
	`, pq.Array(addresses))
	if err != nil {
		return sqlutil.Translate(err)
	}
	for balRows.Next() {
		var token string
		var agg balanceAgg
		if err := balRows.Scan(&token, &agg.unlocked, &agg.locked); err != nil {
			balRows.Close()
			return sqlutil.Translate(err)
		}
		balances[token] = agg
	}
	if err := balRows.Err(); err != nil {
		balRows.Close()
		return sqlutil.Translate(err)
	}
	balRows.Close()

	type historyAgg struct {
		balance int64
		txCount int64
	}
	history := make(map[string]historyAgg)
	histRows, err := s.q.QueryContext(ctx, `
		SELECT token_id, sum(balance), count(DISTINCT tx_id)
		FROM address_tx_history
		WHERE address = ANY($1::text[])
		GROUP BY token_id
	`, pq.Array(addresses))
	if err != nil {
		return sqlutil.Translate(err)
	}
	for histRows.Next() {
		var token string
		var agg historyAgg
		if err := histRows.Scan(&token, &agg.balance, &agg.txCount); err != nil {
			histRows.Close()
			return sqlutil.Translate(err)
		}
		history[token] = agg
	}
	if err := histRows.Err(); err != nil {
		histRows.Close()
		return sqlutil.Translate(err)
	}
	histRows.Close()

	// Spec §4.4 step 4: assert A.unlocked+A.locked == B.balance per token
	// before trusting either aggregate enough to seed wallet_balance.
	for token, bal := range balances {
		hist, ok := history[token]
		if !ok || bal.unlocked+bal.locked != hist.balance {
			return modules.ErrInconsistentChain
		}
	}
	for token := range history {
		if _, ok := balances[token]; !ok {
			return modules.ErrInconsistentChain
		}
	}

	for token, bal := range balances {
		hist := history[token]
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO wallet_balance (wallet_id, token_id, unlocked, locked, transactions)
			VALUES ($1, $2, $3, $4, $5)
		`, walletID, token, bal.unlocked, bal.locked, hist.txCount); err != nil {
			return sqlutil.Translate(err)
		}
	}

	// Spec §4.4 step 3: collapse per-address contributions from the same
	// tx into a single per-wallet history row.
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO wallet_tx_history (wallet_id, tx_id, token_id, balance, timestamp)
		SELECT $1, ah.tx_id, ah.token_id, sum(ah.balance), ah.timestamp
		FROM address_tx_history ah
		WHERE ah.address = ANY($2::text[])
		GROUP BY ah.tx_id, ah.token_id, ah.timestamp
		ON CONFLICT (wallet_id, tx_id, token_id, timestamp) DO NOTHING
	`, walletID, pq.Array(addresses))
	return sqlutil.Translate(err)
}

// GetWalletBalances implements modules.WalletStore (spec §4.5 Reads).
func (s *Store) GetWalletBalances(ctx context.Context, walletID, tokenID string) ([]modules.TokenSummary, error) {
	query := `SELECT token_id, transactions, unlocked, locked FROM wallet_balance WHERE wallet_id = $1`
	args := []interface{}{walletID}
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

// GetWalletTxHistory implements modules.WalletStore (spec §4.5 Reads).
func (s *Store) GetWalletTxHistory(ctx context.Context, walletID, tokenID string, skip, count int) ([]modules.HistoryEntry, error) {
	query := `
		SELECT tx_id, timestamp, balance FROM wallet_tx_history
		WHERE wallet_id = $1`
	args := []interface{}{walletID}
	if tokenID != "" {
		query += ` AND token_id = $2`
		args = append(args, tokenID)
	}
	query += `
		ORDER BY timestamp DESC
		OFFSET $` + strconv.Itoa(len(args)+1) + ` LIMIT $` + strconv.Itoa(len(args)+2)
	args = append(args, skip, count)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlutil.Translate(err)
	}
	defer rows.Close()
	var out []modules.HistoryEntry
	for rows.Next() {
		var h modules.HistoryEntry
		var ts int64
		if err := rows.Scan(&h.TxID, &ts, &h.Balance); err != nil {
			return nil, sqlutil.Translate(err)
		}
		h.Timestamp = modules.Timestamp(ts)
		out = append(out, h)
	}
	return out, sqlutil.Translate(rows.Err())
}
