package modules

// UTXO mirrors the `utxo` table row of spec §3: present iff its producing
// tx has been projected and no later tx has spent it (I5).
type UTXO struct {
	TxID       string
	Index      uint32
	TokenID    string
	Address    string
	Value      uint64
	TimeLock   *Timestamp
	HeightLock *Height
}

// DeltaMap is address -> tokenID -> balance delta, the shape TxProjector
// builds (§4.1 step 1) and hands to AddressStore.ApplyDeltas; folded by
// wallet id, the same shape goes to WalletStore.ApplyDeltas.
type DeltaMap map[string]map[string]Balance

// Add folds delta into the (address, tokenID) cell, creating it if absent.
func (m DeltaMap) Add(address, tokenID string, delta Balance) {
	byToken, ok := m[address]
	if !ok {
		byToken = make(map[string]Balance)
		m[address] = byToken
	}
	cell := byToken[tokenID]
	cell.Unlocked += delta.Unlocked
	cell.Locked += delta.Locked
	byToken[tokenID] = cell
}

// UnlockMap is address -> tokenID -> amount moved from locked to unlocked,
// the shape LockManager.Release produces for AddressStore.ApplyUnlock /
// WalletStore.ApplyUnlock (§4.2, §4.3, §4.5).
type UnlockMap map[string]map[string]int64

// Add folds amount into the (address, tokenID) cell.
func (m UnlockMap) Add(address, tokenID string, amount int64) {
	byToken, ok := m[address]
	if !ok {
		byToken = make(map[string]int64)
		m[address] = byToken
	}
	byToken[tokenID] += amount
}

// AddressClaim is one (address, index) pair being attached to a wallet
// during materialization (§4.4 step 2).
type AddressClaim struct {
	Address string
	Index   uint32
}

// ScannedAddress is what AddressStore.ScanAddresses reports for an address
// already present in the `address` table.
type ScannedAddress struct {
	Index        uint32
	Transactions uint32
}

// WalletClaim is what AddressStore.LookupWalletsByAddresses reports for an
// address already claimed by a wallet.
type WalletClaim struct {
	WalletID string
}

// DerivedAddress is one (address, index) pair produced by the externally
// supplied key-derivation function, per spec §1.
type DerivedAddress struct {
	Address string
	Index   uint32
}
