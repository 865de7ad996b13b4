// Package teststore provides in-memory fakes for modules.AddressStore,
// modules.WalletStore and modules.AddressDeriver, so internal/projector and
// internal/materializer can be exercised without a real Postgres instance.
// There is no teacher equivalent of this exact shape -- it is ordinary test
// scaffolding -- but it follows the same map-of-maps representation the
// modules package itself uses for DeltaMap/UnlockMap, and WalletStore holds
// a reference to the AddressStore it seeds from just as a real WalletStore
// and AddressStore would share one underlying database (spec §4.4).
package teststore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andreabadesso/hathor-wallet-service/modules"
)

type utxoKey struct {
	txID  string
	index uint32
}

type historyRow struct {
	tokenID string
	entry   modules.HistoryEntry
}

// AddressStore is an in-memory modules.AddressStore, plus the
// projected_tx ledger methods internal/projector needs.
type AddressStore struct {
	mu sync.Mutex

	utxos     map[utxoKey]modules.UTXO
	addresses map[string]*addressRow
	balances  map[string]map[string]modules.Balance
	history   map[string][]historyRow
	projected map[string]bool
}

type addressRow struct {
	walletID     string
	hasWallet    bool
	index        uint32
	transactions uint32
}

// NewAddressStore returns an empty AddressStore.
func NewAddressStore() *AddressStore {
	return &AddressStore{
		utxos:     make(map[utxoKey]modules.UTXO),
		addresses: make(map[string]*addressRow),
		balances:  make(map[string]map[string]modules.Balance),
		history:   make(map[string][]historyRow),
		projected: make(map[string]bool),
	}
}

func (s *AddressStore) MarkProjected(ctx context.Context, txID string, height *modules.Height) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projected[txID] {
		return false, nil
	}
	s.projected[txID] = true
	return true, nil
}

func (s *AddressStore) InsertUTXOs(ctx context.Context, utxos []modules.UTXO) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range utxos {
		s.utxos[utxoKey{u.TxID, u.Index}] = u
	}
	return nil
}

func (s *AddressStore) DeleteUTXO(ctx context.Context, txID string, index uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := utxoKey{txID, index}
	if _, ok := s.utxos[key]; !ok {
		return false, nil
	}
	delete(s.utxos, key)
	return true, nil
}

func (s *AddressStore) ApplyDeltas(ctx context.Context, txID string, timestamp modules.Timestamp, deltas modules.DeltaMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, byToken := range deltas {
		row, ok := s.addresses[addr]
		if !ok {
			row = &addressRow{}
			s.addresses[addr] = row
		}
		row.transactions++

		byTok, ok := s.balances[addr]
		if !ok {
			byTok = make(map[string]modules.Balance)
			s.balances[addr] = byTok
		}
		for token, delta := range byToken {
			cell := byTok[token]
			if _, existed := byTok[token]; !existed {
				cell.Unlocked = max0(delta.Unlocked)
				cell.Locked = max0(delta.Locked)
			} else {
				cell.Unlocked += delta.Unlocked
				cell.Locked += delta.Locked
			}
			byTok[token] = cell

			s.history[addr] = append(s.history[addr], historyRow{
				tokenID: token,
				entry: modules.HistoryEntry{
					TxID:      txID,
					Timestamp: timestamp,
					Balance:   delta.Unlocked + delta.Locked,
				},
			})
		}
	}
	return nil
}

func max0(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func (s *AddressStore) ApplyUnlock(ctx context.Context, unlocks modules.UnlockMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, byToken := range unlocks {
		byTok, ok := s.balances[addr]
		if !ok {
			continue
		}
		for token, amount := range byToken {
			cell := byTok[token]
			cell.Unlocked += amount
			cell.Locked -= amount
			byTok[token] = cell
		}
	}
	return nil
}

func (s *AddressStore) FindUTXOsMaturingAt(ctx context.Context, height modules.Height, now modules.Timestamp) ([]modules.UTXO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []modules.UTXO
	for _, u := range s.utxos {
		if u.HeightLock == nil || *u.HeightLock != height {
			continue
		}
		if u.TimeLock != nil && *u.TimeLock > now {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *AddressStore) LookupWalletsByAddresses(ctx context.Context, addresses []string) (map[string]modules.WalletClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]modules.WalletClaim)
	for _, addr := range addresses {
		row, ok := s.addresses[addr]
		if ok && row.hasWallet {
			out[addr] = modules.WalletClaim{WalletID: row.walletID}
		}
	}
	return out, nil
}

func (s *AddressStore) ScanAddresses(ctx context.Context, addresses []string) (map[string]modules.ScannedAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]modules.ScannedAddress)
	for _, addr := range addresses {
		row, ok := s.addresses[addr]
		if !ok {
			continue
		}
		out[addr] = modules.ScannedAddress{Index: row.index, Transactions: row.transactions}
	}
	return out, nil
}

func (s *AddressStore) ClaimAddresses(ctx context.Context, walletID string, claims []modules.AddressClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range claims {
		row, ok := s.addresses[c.Address]
		if !ok {
			row = &addressRow{}
			s.addresses[c.Address] = row
		}
		row.walletID = walletID
		row.hasWallet = true
		row.index = c.Index
	}
	return nil
}

func (s *AddressStore) GetAddresses(ctx context.Context, walletID string) ([]modules.AddressInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []modules.AddressInfo
	for addr, row := range s.addresses {
		if !row.hasWallet || row.walletID != walletID {
			continue
		}
		out = append(out, modules.AddressInfo{Address: addr, Index: row.index, Transactions: row.transactions})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *AddressStore) GetAddressBalances(ctx context.Context, address, tokenID string) ([]modules.TokenSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []modules.TokenSummary
	for token, bal := range s.balances[address] {
		if tokenID != "" && token != tokenID {
			continue
		}
		row := s.addresses[address]
		out = append(out, modules.TokenSummary{TokenID: token, Transactions: row.transactions, Balance: bal})
	}
	return out, nil
}

// Balance is a test helper exposing the raw (address, token) cell.
func (s *AddressStore) Balance(address, token string) modules.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[address][token]
}

// Balances is a test helper exposing every token cell held by an address,
// standing in for a grouped `SELECT ... GROUP BY token_id` over
// address_balance (spec §4.4 step 4, query A).
func (s *AddressStore) Balances(address string) map[string]modules.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]modules.Balance, len(s.balances[address]))
	for token, bal := range s.balances[address] {
		out[token] = bal
	}
	return out
}

// History is a test helper exposing an address's raw history rows for a
// single token.
func (s *AddressStore) History(address, tokenID string) []modules.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []modules.HistoryEntry
	for _, row := range s.history[address] {
		if row.tokenID == tokenID {
			out = append(out, row.entry)
		}
	}
	return out
}

// AllHistory is a test helper exposing every (token, entry) pair recorded
// for an address, standing in for `SELECT * FROM address_tx_history WHERE
// address = ...` (spec §4.4 steps 3-4).
func (s *AddressStore) AllHistory(address string) map[string][]modules.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]modules.HistoryEntry)
	for _, row := range s.history[address] {
		out[row.tokenID] = append(out[row.tokenID], row.entry)
	}
	return out
}

// UTXOCount is a test helper.
func (s *AddressStore) UTXOCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.utxos)
}

// WalletStore is an in-memory modules.WalletStore. It holds a reference to
// the AddressStore it materializes from, the same way a real WalletStore
// and AddressStore share one underlying database when SeedFromAddresses
// aggregates address_balance/address_tx_history into the wallet tier.
type WalletStore struct {
	mu sync.Mutex

	addrs *AddressStore

	wallets  map[string]*modules.Wallet
	byXPub   map[string]string
	balances map[string]map[string]modules.Balance
	txIDs    map[string]map[string]map[string]bool // walletID -> token -> txID -> seen
	history  map[string]map[string][]modules.HistoryEntry
}

// NewWalletStore returns an empty WalletStore seeded from addrs.
func NewWalletStore(addrs *AddressStore) *WalletStore {
	return &WalletStore{
		addrs:    addrs,
		wallets:  make(map[string]*modules.Wallet),
		byXPub:   make(map[string]string),
		balances: make(map[string]map[string]modules.Balance),
		txIDs:    make(map[string]map[string]map[string]bool),
		history:  make(map[string]map[string][]modules.HistoryEntry),
	}
}

func (s *WalletStore) CreateWallet(ctx context.Context, id, xpubkey string, maxGap uint16, createdAt modules.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byXPub[xpubkey]; ok {
		return modules.ErrWalletAlreadyCreated
	}
	s.wallets[id] = &modules.Wallet{
		ID: id, XPubKey: xpubkey, Status: modules.WalletStatusCreating, MaxGap: maxGap, CreatedAt: createdAt,
	}
	s.byXPub[xpubkey] = id
	return nil
}

func (s *WalletStore) MarkReady(ctx context.Context, walletID string, readyAt modules.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return modules.ErrWalletNotFound
	}
	w.Status = modules.WalletStatusReady
	w.ReadyAt = &readyAt
	return nil
}

func (s *WalletStore) MarkError(ctx context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return modules.ErrWalletNotFound
	}
	w.Status = modules.WalletStatusError
	return nil
}

func (s *WalletStore) GetWallet(ctx context.Context, walletID string) (*modules.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, modules.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *WalletStore) ApplyDeltas(ctx context.Context, txID string, timestamp modules.Timestamp, deltas modules.DeltaMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for walletID, byToken := range deltas {
		byTok, ok := s.balances[walletID]
		if !ok {
			byTok = make(map[string]modules.Balance)
			s.balances[walletID] = byTok
		}
		seenByToken, ok := s.txIDs[walletID]
		if !ok {
			seenByToken = make(map[string]map[string]bool)
			s.txIDs[walletID] = seenByToken
		}
		histByToken, ok := s.history[walletID]
		if !ok {
			histByToken = make(map[string][]modules.HistoryEntry)
			s.history[walletID] = histByToken
		}
		for token, delta := range byToken {
			cell := byTok[token]
			if _, existed := byTok[token]; !existed {
				cell.Unlocked = max0(delta.Unlocked)
				cell.Locked = max0(delta.Locked)
			} else {
				cell.Unlocked += delta.Unlocked
				cell.Locked += delta.Locked
			}
			byTok[token] = cell

			seen, ok := seenByToken[token]
			if !ok {
				seen = make(map[string]bool)
				seenByToken[token] = seen
			}
			seen[txID] = true

			histByToken[token] = append(histByToken[token], modules.HistoryEntry{
				TxID:      txID,
				Timestamp: timestamp,
				Balance:   delta.Unlocked + delta.Locked,
			})
		}
	}
	return nil
}

func (s *WalletStore) ApplyUnlock(ctx context.Context, unlocks modules.UnlockMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for walletID, byToken := range unlocks {
		byTok, ok := s.balances[walletID]
		if !ok {
			continue
		}
		for token, amount := range byToken {
			cell := byTok[token]
			cell.Unlocked += amount
			cell.Locked -= amount
			byTok[token] = cell
		}
	}
	return nil
}

// SeedFromAddresses implements spec §4.4 steps 3-4 against the in-memory
// AddressStore it was constructed with, mirroring
// internal/walletstore.Store.SeedFromAddresses's two aggregate queries and
// consistency assertion.
func (s *WalletStore) SeedFromAddresses(ctx context.Context, walletID string, addresses []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[walletID]; ok {
		return modules.ErrInconsistentChain
	}

	type balAgg struct{ unlocked, locked int64 }
	balances := make(map[string]balAgg)
	type histAgg struct {
		balance int64
		txIDs   map[string]bool
	}
	history := make(map[string]*histAgg)

	for _, addr := range addresses {
		for token, bal := range s.addrs.Balances(addr) {
			agg := balances[token]
			agg.unlocked += bal.Unlocked
			agg.locked += bal.Locked
			balances[token] = agg
		}
		for token, entries := range s.addrs.AllHistory(addr) {
			agg, ok := history[token]
			if !ok {
				agg = &histAgg{txIDs: make(map[string]bool)}
				history[token] = agg
			}
			for _, e := range entries {
				agg.balance += e.Balance
				agg.txIDs[e.TxID] = true
			}
		}
	}

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

	walletBalances := make(map[string]modules.Balance, len(balances))
	walletTxIDs := make(map[string]map[string]bool, len(balances))
	walletHistory := make(map[string][]modules.HistoryEntry, len(balances))
	for token, bal := range balances {
		walletBalances[token] = modules.Balance{Unlocked: bal.unlocked, Locked: bal.locked}
		walletTxIDs[token] = history[token].txIDs

		// Group each address's per-(txID, timestamp) rows into one
		// wallet-level row, mirroring the real store's
		// "GROUP BY tx_id, token_id, timestamp" seed query.
		type rowKey struct {
			txID      string
			timestamp modules.Timestamp
		}
		grouped := make(map[rowKey]int64)
		for _, addr := range addresses {
			for _, e := range s.addrs.History(addr, token) {
				grouped[rowKey{e.TxID, e.Timestamp}] += e.Balance
			}
		}
		for key, sum := range grouped {
			walletHistory[token] = append(walletHistory[token], modules.HistoryEntry{
				TxID: key.txID, Timestamp: key.timestamp, Balance: sum,
			})
		}
	}

	s.balances[walletID] = walletBalances
	s.txIDs[walletID] = walletTxIDs
	s.history[walletID] = walletHistory
	return nil
}

func (s *WalletStore) GetWalletBalances(ctx context.Context, walletID, tokenID string) ([]modules.TokenSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []modules.TokenSummary
	for token, bal := range s.balances[walletID] {
		if tokenID != "" && token != tokenID {
			continue
		}
		txs := uint32(len(s.txIDs[walletID][token]))
		out = append(out, modules.TokenSummary{TokenID: token, Transactions: txs, Balance: bal})
	}
	return out, nil
}

func (s *WalletStore) GetWalletTxHistory(ctx context.Context, walletID, tokenID string, skip, count int) ([]modules.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]modules.HistoryEntry(nil), s.history[walletID][tokenID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp > entries[j].Timestamp })
	if skip > len(entries) {
		return nil, nil
	}
	entries = entries[skip:]
	if count > 0 && count < len(entries) {
		entries = entries[:count]
	}
	return entries, nil
}

// Deriver is a deterministic modules.AddressDeriver: address N of xpubkey
// X is always "X-addr-N".
type Deriver struct{}

// NewDeriver returns a deterministic AddressDeriver.
func NewDeriver() Deriver { return Deriver{} }

func (Deriver) Derive(ctx context.Context, xpubkey string, start, count uint32) ([]modules.DerivedAddress, error) {
	out := make([]modules.DerivedAddress, count)
	for i := uint32(0); i < count; i++ {
		idx := start + i
		out[i] = modules.DerivedAddress{Address: fmt.Sprintf("%s-addr-%d", xpubkey, idx), Index: idx}
	}
	return out, nil
}
