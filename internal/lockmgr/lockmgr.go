// Package lockmgr decides whether a newly produced output is spendable yet,
// and computes the balance delta of releasing a matured heightlock. It has
// no storage dependency: it is pure arithmetic over timelock/heightlock
// values, in the spirit of the teacher's own small, dependency-free
// helpers (persist/boltdb.go's metadata checks; explorerdb's
// ReferencePoint.Reached/Overreached height-vs-timestamp comparisons).
package lockmgr

import "github.com/andreabadesso/hathor-wallet-service/modules"

// Manager implements modules.LockManager.
type Manager struct{}

// New returns a stateless LockManager.
func New() Manager {
	return Manager{}
}

// Classify implements modules.LockManager. Per spec §4.2:
//   - a block-flagged event's outputs are always locked, regardless of
//     timelock, because they additionally require heightlock maturation;
//   - a regular transaction's output is locked iff it carries a timelock
//     that has not yet passed. Equal-timestamp releases immediately.
func (Manager) Classify(output modules.TxOutput, now modules.Timestamp, isBlock bool) bool {
	if isBlock {
		return true
	}
	tl := output.Decoded.TimeLock
	return tl != nil && *tl > now
}

// Release implements modules.LockManager. Every UTXO handed to Release is
// assumed to have already matured (the caller, TxProjector, selects them via
// AddressStore.FindUTXOsMaturingAt); Release only computes the resulting
// delta, it does not re-check maturity.
func (Manager) Release(utxos []modules.UTXO) modules.UnlockMap {
	out := make(modules.UnlockMap)
	for _, u := range utxos {
		out.Add(u.Address, u.TokenID, int64(u.Value))
	}
	return out
}

// Matured reports whether a UTXO's locks have both been satisfied at the
// given chain height and wall-clock time, per the invariant stated in
// spec §4.2: locked iff (heightlock set and height < heightlock) OR
// (timelock set and now < timelock).
func Matured(u modules.UTXO, height modules.Height, now modules.Timestamp) bool {
	if u.HeightLock != nil && height < *u.HeightLock {
		return false
	}
	if u.TimeLock != nil && now < *u.TimeLock {
		return false
	}
	return true
}
