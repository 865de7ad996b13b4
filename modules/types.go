// Package modules defines the data types and interfaces shared between the
// indexer's components: the inbound transaction event, the wallet and
// address read models, and the store/projector/materializer interfaces that
// internal/* implements. Keeping these in one leaf package, rather than in
// whichever package happens to define them first, is what lets
// internal/projector depend on internal/addrstore's interface without
// depending on its Postgres implementation.
package modules

// DefaultTokenID is the native token, used whenever an event or query omits
// an explicit token id.
const DefaultTokenID = "00"

type (
	// Height is a block height, counted from the genesis block.
	Height uint32

	// Timestamp is a unix-second wall-clock time.
	Timestamp uint32

	// WalletStatus is the lifecycle state of a Wallet row.
	WalletStatus string
)

// WalletStatus values, see Wallet.Status.
const (
	WalletStatusCreating WalletStatus = "creating"
	WalletStatusReady    WalletStatus = "ready"
	WalletStatusError    WalletStatus = "error"
)

type (
	// Balance is the locked/unlocked split of a token held by an address or
	// a wallet, per spec §3.
	Balance struct {
		Unlocked int64 `json:"unlocked"`
		Locked   int64 `json:"locked"`
	}

	// TokenSummary is one row of a GET balances response: the balance and
	// transaction count of a single token for an address or a wallet.
	TokenSummary struct {
		TokenID      string  `json:"tokenId"`
		Transactions uint32  `json:"transactions"`
		Balance      Balance `json:"balance"`
	}

	// AddressInfo is one row of a GET addresses response.
	AddressInfo struct {
		Address      string `json:"address"`
		Index        uint32 `json:"index"`
		Transactions uint32 `json:"transactions"`
	}

	// HistoryEntry is one row of a GET tx history response.
	HistoryEntry struct {
		TxID      string    `json:"txId"`
		Timestamp Timestamp `json:"timestamp"`
		Balance   int64     `json:"balance"`
	}

	// Wallet is the materialized identity of an xpubkey, see spec §3.
	Wallet struct {
		ID        string       `json:"walletId"`
		XPubKey   string       `json:"xpubkey"`
		Status    WalletStatus `json:"status"`
		MaxGap    uint16       `json:"maxGap"`
		CreatedAt Timestamp    `json:"createdAt"`
		ReadyAt   *Timestamp   `json:"readyAt,omitempty"`
	}
)
