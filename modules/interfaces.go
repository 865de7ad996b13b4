package modules

import "context"

type (
	// AddressStore owns the utxo, address, address_balance and
	// address_tx_history tables (spec §3 "Ownership", §4.3).
	AddressStore interface {
		// InsertUTXOs inserts one row per produced output (§4.1 step 3).
		InsertUTXOs(ctx context.Context, utxos []UTXO) error

		// DeleteUTXO removes the UTXO a spent input consumed (§4.1 step 2).
		// found is false, with a nil error, when no such UTXO exists -- the
		// caller turns that into ErrInconsistentChain.
		DeleteUTXO(ctx context.Context, txID string, index uint32) (found bool, err error)

		// ApplyDeltas persists §4.3's applyDeltas: bumps address.transactions,
		// upserts address_balance (clamp-on-insert, raw-add-on-update), and
		// appends one address_tx_history row per touched (address, tokenID).
		ApplyDeltas(ctx context.Context, txID string, timestamp Timestamp, deltas DeltaMap) error

		// ApplyUnlock moves value from locked to unlocked without touching
		// transaction counters or history (§4.2, §4.3 applyUnlock).
		ApplyUnlock(ctx context.Context, unlocks UnlockMap) error

		// FindUTXOsMaturingAt returns UTXOs whose heightlock equals height
		// and whose timelock (if any) has already passed (§4.3).
		FindUTXOsMaturingAt(ctx context.Context, height Height, now Timestamp) ([]UTXO, error)

		// LookupWalletsByAddresses returns the wallet claiming each address
		// that has one, for building the wallet-tier delta map (§4.1 step 5).
		LookupWalletsByAddresses(ctx context.Context, addresses []string) (map[string]WalletClaim, error)

		// ScanAddresses reports which of the given addresses already exist
		// in the address table, and their transaction counts (§4.4 step 1).
		ScanAddresses(ctx context.Context, addresses []string) (map[string]ScannedAddress, error)

		// ClaimAddresses attaches walletID/index to existing address rows
		// and inserts new ones with transactions=0 (§4.4 step 2).
		ClaimAddresses(ctx context.Context, walletID string, claims []AddressClaim) error

		// GetAddresses returns a wallet's claimed addresses ordered by index
		// ascending (§4.5 Reads).
		GetAddresses(ctx context.Context, walletID string) ([]AddressInfo, error)

		// GetAddressBalances is the single-address diagnostic read described
		// in SPEC_FULL §3.
		GetAddressBalances(ctx context.Context, address, tokenID string) ([]TokenSummary, error)
	}

	// WalletStore owns the wallet, wallet_balance and wallet_tx_history
	// tables (spec §3 "Ownership", §4.5).
	WalletStore interface {
		// CreateWallet inserts a status=creating row. It returns
		// ErrWalletAlreadyCreated if xpubkey already has a creating or ready
		// wallet (§5 "Materialization concurrency").
		CreateWallet(ctx context.Context, id, xpubkey string, maxGap uint16, createdAt Timestamp) error

		// MarkReady transitions a wallet to ready and stamps readyAt
		// (§4.4 step 5).
		MarkReady(ctx context.Context, walletID string, readyAt Timestamp) error

		// MarkError transitions a wallet to the error status, used when
		// materialization fails a consistency assertion (§4.4 step 4).
		MarkError(ctx context.Context, walletID string) error

		// GetWallet looks up a wallet by id.
		GetWallet(ctx context.Context, walletID string) (*Wallet, error)

		// ApplyDeltas is WalletStore's analogue of AddressStore.ApplyDeltas
		// (§4.5).
		ApplyDeltas(ctx context.Context, txID string, timestamp Timestamp, deltas DeltaMap) error

		// ApplyUnlock is WalletStore's analogue of AddressStore.ApplyUnlock.
		ApplyUnlock(ctx context.Context, unlocks UnlockMap) error

		// SeedFromAddresses performs §4.4 steps 3-4: it groups
		// address_tx_history into wallet_tx_history and aggregates
		// address_balance/address_tx_history into wallet_balance, asserting
		// the two aggregates agree per token. Returns ErrInconsistentChain
		// on mismatch.
		SeedFromAddresses(ctx context.Context, walletID string, addresses []string) error

		// GetWalletBalances returns one TokenSummary per token held by the
		// wallet, or just tokenID's if non-empty (§6 GET balances).
		GetWalletBalances(ctx context.Context, walletID, tokenID string) ([]TokenSummary, error)

		// GetWalletTxHistory returns history rows ordered by timestamp
		// descending, paginated by skip/count (§6 GET tx history).
		GetWalletTxHistory(ctx context.Context, walletID, tokenID string, skip, count int) ([]HistoryEntry, error)
	}

	// AddressDeriver is the externally supplied key-derivation function of
	// spec §1: derive(xpub, start, count) -> [(address, index)].
	AddressDeriver interface {
		Derive(ctx context.Context, xpubkey string, start, count uint32) ([]DerivedAddress, error)
	}

	// LockManager decides whether an output's value lands in unlocked or
	// locked, and computes the balance delta of releasing matured UTXOs
	// (§4.2).
	LockManager interface {
		// Classify reports whether output should count as locked.
		Classify(output TxOutput, now Timestamp, isBlock bool) (locked bool)

		// Release computes the unlock delta for a batch of matured UTXOs.
		Release(utxos []UTXO) UnlockMap
	}
)
