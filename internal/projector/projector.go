// Package projector implements the transaction projector of spec §4.1: the
// write entry point that turns one transaction or block event into the
// address-level and wallet-level storage mutations described by §4.1-§4.3
// and §4.5. It is grounded on modules/explorer/update.go's
// ProcessConsensusChange shape -- one serialized entry point, one storage
// transaction per change, storage errors logged and bubbled rather than
// panicked.
package projector

import (
	"context"
	"database/sql"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/andreabadesso/hathor-wallet-service/internal/addrstore"
	"github.com/andreabadesso/hathor-wallet-service/internal/sqlutil"
	"github.com/andreabadesso/hathor-wallet-service/internal/walletstore"
	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// AddressStore is modules.AddressStore plus the projected_tx ledger
// operations that only the projector needs (spec §9). *addrstore.Store
// satisfies this once constructed against a *sql.Tx.
type AddressStore interface {
	modules.AddressStore
	MarkProjected(ctx context.Context, txID string, height *modules.Height) (ok bool, err error)
}

// UnitOfWork opens one event's storage transaction and returns the
// AddressStore/WalletStore pair bound to it, plus commit/rollback
// functions. Production wiring binds both stores to a single *sql.Tx
// (NewSQLUnitOfWork); tests bind them to in-memory fakes with no-op
// commit/rollback, so under the fakes any write made before a failing step
// of Project (the projected_tx mark, earlier input deletions) is kept.
type UnitOfWork func(ctx context.Context) (addrs AddressStore, wallets modules.WalletStore, commit, rollback func() error, err error)

// NewSQLUnitOfWork returns the production UnitOfWork: one *sql.Tx per
// event, matching §5's "each event acquires one connection for its whole
// transaction lifetime". cache is shared across every event's AddressStore,
// so step 5's LookupWalletsByAddresses (spec §4.1) actually gets to serve a
// hot address's wallet claim from memory instead of round-tripping to
// Postgres on every single transaction -- the same *addrstore.ClaimCache
// handed to the API/materializer's CachedStore, so a materialize run's
// ClaimAddresses correctly invalidates whatever the projector has cached.
func NewSQLUnitOfWork(db *sql.DB, cache *addrstore.ClaimCache) UnitOfWork {
	return func(ctx context.Context) (AddressStore, modules.WalletStore, func() error, func() error, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, nil, nil, nil, sqlutil.Translate(err)
		}
		return addrstore.NewCached(tx, cache), walletstore.New(tx), tx.Commit, tx.Rollback, nil
	}
}

// Projector implements TxProjector (spec §4.1).
type Projector struct {
	begin       UnitOfWork
	lockManager modules.LockManager
	blockReward modules.Height // BLOCK_REWARD_LOCK, spec §6
	log         *logrus.Entry

	mu sync.Mutex // serializes project() calls, per §5
}

// New builds a Projector. blockRewardLock is the BLOCK_REWARD_LOCK
// configuration constant of spec §6.
func New(begin UnitOfWork, lockManager modules.LockManager, blockRewardLock modules.Height, log *logrus.Entry) *Projector {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Projector{begin: begin, lockManager: lockManager, blockReward: blockRewardLock, log: log}
}

// Project implements TxProjector's project(event) (spec §4.1). It is safe
// to call from multiple goroutines: calls are serialized internally, so
// transport-level concurrency never needs its own lock.
func (p *Projector) Project(ctx context.Context, event modules.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := p.log.WithField("tx_id", event.TxID)

	addrs, wallets, commit, rollback, err := p.begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = rollback()
		}
	}()

	isBlock := event.IsBlock()

	fresh, err := addrs.MarkProjected(ctx, event.TxID, event.Height)
	if err != nil {
		log.WithError(err).Error("failed to record projected_tx ledger entry")
		return err
	}
	if !fresh {
		log.Debug("duplicate event, already projected")
		if err := commit(); err != nil {
			return err
		}
		committed = true
		return nil
	}

	addrDeltas, touched := buildAddressDeltas(event, p.lockManager, isBlock)

	// Step 2: remove spent inputs.
	for _, in := range event.Inputs {
		found, err := addrs.DeleteUTXO(ctx, in.TxID, in.Index)
		if err != nil {
			log.WithError(err).Error("failed to delete spent utxo")
			return err
		}
		if !found {
			log.WithField("input_tx_id", in.TxID).Error("input references a utxo that does not exist")
			return modules.ErrInconsistentChain
		}
	}

	// Step 3: insert produced outputs, with heightlock computed for the
	// whole transaction when it is a block.
	var heightlock *modules.Height
	if isBlock && event.Height != nil {
		h := *event.Height + p.blockReward
		heightlock = &h
	}
	utxos := make([]modules.UTXO, len(event.Outputs))
	for i, out := range event.Outputs {
		u := modules.UTXO{
			TxID:       event.TxID,
			Index:      uint32(i),
			TokenID:    out.TokenID,
			Address:    out.Decoded.Address,
			Value:      out.Value,
			HeightLock: heightlock,
		}
		if out.Decoded.TimeLock != nil {
			tl := *out.Decoded.TimeLock
			u.TimeLock = &tl
		}
		utxos[i] = u
	}
	if err := addrs.InsertUTXOs(ctx, utxos); err != nil {
		log.WithError(err).Error("failed to insert produced utxos")
		return err
	}

	// Step 4: persist address-side deltas.
	if err := addrs.ApplyDeltas(ctx, event.TxID, event.Timestamp, addrDeltas); err != nil {
		log.WithError(err).Error("failed to apply address deltas")
		return err
	}

	// Step 5: fold claimed addresses' deltas up to their wallets.
	claims, err := addrs.LookupWalletsByAddresses(ctx, touched)
	if err != nil {
		log.WithError(err).Error("failed to look up wallet claims")
		return err
	}
	walletDeltas := foldToWallets(addrDeltas, claims)
	if err := wallets.ApplyDeltas(ctx, event.TxID, event.Timestamp, walletDeltas); err != nil {
		log.WithError(err).Error("failed to apply wallet deltas")
		return err
	}

	// Step 6: release heightlocks matured by this block.
	if isBlock && event.Height != nil {
		matured, err := addrs.FindUTXOsMaturingAt(ctx, *event.Height, event.Timestamp)
		if err != nil {
			log.WithError(err).Error("failed to find maturing utxos")
			return err
		}
		if len(matured) > 0 {
			release := p.lockManager.Release(matured)
			if err := addrs.ApplyUnlock(ctx, release); err != nil {
				log.WithError(err).Error("failed to apply address unlock")
				return err
			}
			releaseAddrs := make([]string, 0, len(release))
			for addr := range release {
				releaseAddrs = append(releaseAddrs, addr)
			}
			releaseClaims, err := addrs.LookupWalletsByAddresses(ctx, releaseAddrs)
			if err != nil {
				log.WithError(err).Error("failed to look up wallet claims for released utxos")
				return err
			}
			walletRelease := foldUnlockToWallets(release, releaseClaims)
			if err := wallets.ApplyUnlock(ctx, walletRelease); err != nil {
				log.WithError(err).Error("failed to apply wallet unlock")
				return err
			}
		}
	}

	if err := commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// buildAddressDeltas implements spec §4.1 step 1: every input contributes
// -value to unlocked (spending a locked UTXO is impossible by construction,
// §4.2), and every output's value lands entirely in unlocked or locked per
// LockManager.Classify. It also returns the de-duplicated list of touched
// addresses, for the wallet-claim lookup of step 5.
func buildAddressDeltas(event modules.TransactionEvent, lm modules.LockManager, isBlock bool) (modules.DeltaMap, []string) {
	deltas := make(modules.DeltaMap)
	seen := make(map[string]bool)

	for _, in := range event.Inputs {
		deltas.Add(in.Address, in.TokenID, modules.Balance{Unlocked: -int64(in.Value)})
		seen[in.Address] = true
	}
	for _, out := range event.Outputs {
		locked := lm.Classify(out, event.Timestamp, isBlock)
		delta := modules.Balance{}
		if locked {
			delta.Locked = int64(out.Value)
		} else {
			delta.Unlocked = int64(out.Value)
		}
		deltas.Add(out.Decoded.Address, out.TokenID, delta)
		seen[out.Decoded.Address] = true
	}

	touched := make([]string, 0, len(seen))
	for addr := range seen {
		touched = append(touched, addr)
	}
	return deltas, touched
}

// foldToWallets implements spec §4.1 step 5: sum contributions of addresses
// that already belong to a wallet into a walletId -> tokenId delta map.
func foldToWallets(addrDeltas modules.DeltaMap, claims map[string]modules.WalletClaim) modules.DeltaMap {
	out := make(modules.DeltaMap)
	for addr, byToken := range addrDeltas {
		claim, ok := claims[addr]
		if !ok {
			continue
		}
		for token, delta := range byToken {
			out.Add(claim.WalletID, token, delta)
		}
	}
	return out
}

// foldUnlockToWallets is foldToWallets's analogue for the heightlock
// release step (spec §4.2).
func foldUnlockToWallets(addrUnlock modules.UnlockMap, claims map[string]modules.WalletClaim) modules.UnlockMap {
	out := make(modules.UnlockMap)
	for addr, byToken := range addrUnlock {
		claim, ok := claims[addr]
		if !ok {
			continue
		}
		for token, amount := range byToken {
			out.Add(claim.WalletID, token, amount)
		}
	}
	return out
}
