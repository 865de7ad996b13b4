// Package materializer implements WalletMaterializer (spec §4.4): the
// gap-limit address scan, wallet-identity claim, and per-address-to-
// per-wallet aggregation that turns a registered xpubkey into a ready
// wallet. Grounded on modules/wallet/seed.go's derive-until-gap-limit
// control flow, adapted from a local keystore scan to a storage-backed one.
package materializer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// Materializer implements WalletMaterializer.
type Materializer struct {
	addrs   modules.AddressStore
	wallets modules.WalletStore
	deriver modules.AddressDeriver
	log     *logrus.Entry
}

// New builds a Materializer over the given stores and key-derivation
// function (spec §1's externally supplied derive(xpub, start, count)).
func New(addrs modules.AddressStore, wallets modules.WalletStore, deriver modules.AddressDeriver, log *logrus.Entry) *Materializer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Materializer{addrs: addrs, wallets: wallets, deriver: deriver, log: log}
}

func nowTimestamp() modules.Timestamp {
	return modules.Timestamp(time.Now().Unix())
}

// Register implements WalletMaterializer.register (spec §4.4): it
// synchronously inserts a status=creating wallet row, then runs
// materialization inline. A materialization failure marks the wallet
// errored and returns the error; the wallet id is still returned so the
// caller can inspect its status. Used directly by tests, which want to
// observe materialization failures as a returned error rather than a
// background log line.
func (m *Materializer) Register(ctx context.Context, xpubkey string, maxGap uint16) (string, error) {
	id, err := m.createWallet(ctx, xpubkey, maxGap)
	if err != nil {
		return "", err
	}
	if err := m.Materialize(ctx, id, xpubkey, maxGap); err != nil {
		m.log.WithError(err).WithField("wallet_id", id).Error("materialization failed")
		if markErr := m.wallets.MarkError(ctx, id); markErr != nil {
			m.log.WithError(markErr).WithField("wallet_id", id).Error("failed to mark wallet errored")
		}
		return id, err
	}
	return id, nil
}

// RegisterAsync implements the API layer's "202-equivalent, async
// materialization" contract (spec.md §6 POST wallet): it inserts the
// status=creating row synchronously, so the caller gets a wallet id back
// immediately, then runs materialize in its own goroutine. Callers poll
// GET wallet for the creating -> ready/error transition.
func (m *Materializer) RegisterAsync(ctx context.Context, xpubkey string, maxGap uint16) (string, error) {
	id, err := m.createWallet(ctx, xpubkey, maxGap)
	if err != nil {
		return "", err
	}
	go func() {
		bgCtx := context.Background()
		if err := m.Materialize(bgCtx, id, xpubkey, maxGap); err != nil {
			m.log.WithError(err).WithField("wallet_id", id).Error("materialization failed")
			if markErr := m.wallets.MarkError(bgCtx, id); markErr != nil {
				m.log.WithError(markErr).WithField("wallet_id", id).Error("failed to mark wallet errored")
			}
		}
	}()
	return id, nil
}

func (m *Materializer) createWallet(ctx context.Context, xpubkey string, maxGap uint16) (string, error) {
	if err := validateXPubKey(xpubkey); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := m.wallets.CreateWallet(ctx, id, xpubkey, maxGap, nowTimestamp()); err != nil {
		return "", err
	}
	return id, nil
}

// Materialize implements WalletMaterializer.materialize (spec §4.4 steps
// 1-5): gap-limit scan, claim, seed, and transition to ready.
func (m *Materializer) Materialize(ctx context.Context, walletID, xpubkey string, maxGap uint16) error {
	window, err := m.scanWindow(ctx, xpubkey, maxGap)
	if err != nil {
		return err
	}

	claims := make([]modules.AddressClaim, len(window))
	addresses := make([]string, len(window))
	for i, d := range window {
		claims[i] = modules.AddressClaim{Address: d.Address, Index: d.Index}
		addresses[i] = d.Address
	}

	if err := m.addrs.ClaimAddresses(ctx, walletID, claims); err != nil {
		return err
	}
	if err := m.wallets.SeedFromAddresses(ctx, walletID, addresses); err != nil {
		return err
	}
	return m.wallets.MarkReady(ctx, walletID, nowTimestamp())
}

// scanWindow implements spec §4.4 step 1: derive maxGap addresses at a
// time, checking each batch against what is already known, until
// highestUsed + maxGap <= highestChecked. It returns exactly the
// "subscribed window" -- the contiguous prefix of derived addresses with
// index <= highestUsed + maxGap (spec §9's gap-limit window edge case).
func (m *Materializer) scanWindow(ctx context.Context, xpubkey string, maxGap uint16) ([]modules.DerivedAddress, error) {
	if maxGap == 0 {
		return nil, modules.NewInvalidParameterError("maxGap")
	}

	highestChecked := -1
	highestUsed := -1
	var derived []modules.DerivedAddress

	for {
		start := uint32(highestChecked + 1)
		batch, err := m.deriver.Derive(ctx, xpubkey, start, uint32(maxGap))
		if err != nil {
			return nil, err
		}

		addresses := make([]string, len(batch))
		for i, d := range batch {
			addresses[i] = d.Address
		}
		existing, err := m.addrs.ScanAddresses(ctx, addresses)
		if err != nil {
			return nil, err
		}
		for _, d := range batch {
			if info, ok := existing[d.Address]; ok && info.Transactions > 0 {
				if int(d.Index) > highestUsed {
					highestUsed = int(d.Index)
				}
			}
		}

		derived = append(derived, batch...)
		highestChecked += int(maxGap)

		if highestUsed+int(maxGap) <= highestChecked {
			break
		}
	}

	windowSize := highestUsed + int(maxGap) + 1
	if windowSize > len(derived) {
		windowSize = len(derived)
	}
	return derived[:windowSize], nil
}
