package projector

import (
	"context"
	"testing"

	"github.com/andreabadesso/hathor-wallet-service/internal/lockmgr"
	"github.com/andreabadesso/hathor-wallet-service/internal/teststore"
	"github.com/andreabadesso/hathor-wallet-service/modules"
)

const blockRewardLock = modules.Height(1)
const blockReward = uint64(6400)

func newTestProjector(addrs *teststore.AddressStore, wallets *teststore.WalletStore) *Projector {
	begin := func(ctx context.Context) (AddressStore, modules.WalletStore, func() error, func() error, error) {
		noop := func() error { return nil }
		return addrs, wallets, noop, noop, nil
	}
	return New(begin, lockmgr.New(), blockRewardLock, nil)
}

func newTestStores() (*teststore.AddressStore, *teststore.WalletStore) {
	addrs := teststore.NewAddressStore()
	return addrs, teststore.NewWalletStore(addrs)
}

func blockEvent(txID string, height modules.Height, address string, value uint64) modules.TransactionEvent {
	return modules.TransactionEvent{
		Version:   0,
		TxID:      txID,
		Timestamp: modules.Timestamp(height),
		Height:    &height,
		Outputs: []modules.TxOutput{
			{Value: value, TokenID: modules.DefaultTokenID, Decoded: modules.Decoded{Address: address}},
		},
	}
}

// TestScenarioS1ThroughS4 walks spec §8's literal S1-S4 end-to-end scenario.
func TestScenarioS1ThroughS4(t *testing.T) {
	addrs, wallets := newTestStores()
	p := newTestProjector(addrs, wallets)
	ctx := context.Background()

	// S1: block at height 1 to address1.
	if err := p.Project(ctx, blockEvent("txId1", 1, "address1", blockReward)); err != nil {
		t.Fatalf("S1: %v", err)
	}
	if got := addrs.Balance("address1", "00"); got.Unlocked != 0 || got.Locked != int64(blockReward) {
		t.Fatalf("S1: got %+v, want unlocked=0 locked=%d", got, blockReward)
	}
	if addrs.UTXOCount() != 1 {
		t.Fatalf("S1: expected 1 utxo, got %d", addrs.UTXOCount())
	}

	// S2: second block at height 2 to address1 -- releases height-1 output.
	if err := p.Project(ctx, blockEvent("txId2", 2, "address1", blockReward)); err != nil {
		t.Fatalf("S2: %v", err)
	}
	if got := addrs.Balance("address1", "00"); got.Unlocked != int64(blockReward) || got.Locked != int64(blockReward) {
		t.Fatalf("S2: got %+v, want unlocked=%d locked=%d", got, blockReward, blockReward)
	}

	// S3: third block at height 3 to address2 -- releases height-2 output.
	if err := p.Project(ctx, blockEvent("txId3", 3, "address2", blockReward)); err != nil {
		t.Fatalf("S3: %v", err)
	}
	if got := addrs.Balance("address1", "00"); got.Unlocked != int64(2*blockReward) || got.Locked != 0 {
		t.Fatalf("S3: address1 got %+v, want unlocked=%d locked=0", got, 2*blockReward)
	}
	if got := addrs.Balance("address2", "00"); got.Unlocked != 0 || got.Locked != int64(blockReward) {
		t.Fatalf("S3: address2 got %+v, want unlocked=0 locked=%d", got, blockReward)
	}

	// S4: spend txId1 to address3 (5) and address4 (6395).
	spend := modules.TransactionEvent{
		Version:   1,
		TxID:      "txId4",
		Timestamp: 4,
		Inputs: []modules.TxInput{
			{TxID: "txId1", Index: 0, Value: blockReward, TokenID: "00", Address: "address1"},
		},
		Outputs: []modules.TxOutput{
			{Value: 5, TokenID: "00", Decoded: modules.Decoded{Address: "address3"}},
			{Value: 6395, TokenID: "00", Decoded: modules.Decoded{Address: "address4"}},
		},
	}
	if err := p.Project(ctx, spend); err != nil {
		t.Fatalf("S4: %v", err)
	}
	if addrs.UTXOCount() != 4 {
		t.Fatalf("S4: expected 4 utxos, got %d", addrs.UTXOCount())
	}
	if got := addrs.Balance("address1", "00"); got.Unlocked != int64(blockReward) {
		t.Fatalf("S4: address1 got %+v, want unlocked=%d", got, blockReward)
	}
	if got := addrs.Balance("address3", "00"); got.Unlocked != 5 {
		t.Fatalf("S4: address3 got %+v, want unlocked=5", got)
	}
	if got := addrs.Balance("address4", "00"); got.Unlocked != 6395 {
		t.Fatalf("S4: address4 got %+v, want unlocked=6395", got)
	}

	hist := addrs.History("address1", "00")
	if len(hist) == 0 || hist[len(hist)-1].Balance != -int64(blockReward) {
		t.Fatalf("S4: expected address1's last history row to be -%d, got %+v", blockReward, hist)
	}
}

// TestP1NonNegativity checks unlocked/locked never go negative across a
// short block-then-spend sequence.
func TestP1NonNegativity(t *testing.T) {
	addrs, wallets := newTestStores()
	p := newTestProjector(addrs, wallets)
	ctx := context.Background()

	events := []modules.TransactionEvent{
		blockEvent("b1", 1, "a1", 6400),
		blockEvent("b2", 2, "a1", 6400),
		{
			Version: 1, TxID: "spend1", Timestamp: 3,
			Inputs:  []modules.TxInput{{TxID: "b1", Index: 0, Value: 6400, TokenID: "00", Address: "a1"}},
			Outputs: []modules.TxOutput{{Value: 6400, TokenID: "00", Decoded: modules.Decoded{Address: "a2"}}},
		},
	}
	for i, e := range events {
		if err := p.Project(ctx, e); err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		for _, addr := range []string{"a1", "a2"} {
			bal := addrs.Balance(addr, "00")
			if bal.Unlocked < 0 || bal.Locked < 0 {
				t.Fatalf("after event %d, %s has negative balance %+v", i, addr, bal)
			}
		}
	}
}

// TestP2HistorySumsToBalance checks address_tx_history sums to unlocked+locked.
func TestP2HistorySumsToBalance(t *testing.T) {
	addrs, wallets := newTestStores()
	p := newTestProjector(addrs, wallets)
	ctx := context.Background()

	if err := p.Project(ctx, blockEvent("b1", 1, "a1", 6400)); err != nil {
		t.Fatal(err)
	}
	if err := p.Project(ctx, blockEvent("b2", 2, "a1", 6400)); err != nil {
		t.Fatal(err)
	}

	var sum int64
	for _, h := range addrs.History("a1", "00") {
		sum += h.Balance
	}
	bal := addrs.Balance("a1", "00")
	if sum != bal.Unlocked+bal.Locked {
		t.Fatalf("history sum %d != balance %d", sum, bal.Unlocked+bal.Locked)
	}
}

// TestP4LockMaturation checks a heightlocked utxo stays locked until the
// block at its heightlock height is projected.
func TestP4LockMaturation(t *testing.T) {
	addrs, wallets := newTestStores()
	p := newTestProjector(addrs, wallets)
	ctx := context.Background()

	if err := p.Project(ctx, blockEvent("b1", 1, "a1", 6400)); err != nil {
		t.Fatal(err)
	}
	if got := addrs.Balance("a1", "00"); got.Locked != 6400 || got.Unlocked != 0 {
		t.Fatalf("before maturation: got %+v", got)
	}

	// A non-block event at the same height must not release it.
	if err := p.Project(ctx, modules.TransactionEvent{
		Version: 1, TxID: "decoy", Timestamp: 1,
		Outputs: []modules.TxOutput{{Value: 1, TokenID: "00", Decoded: modules.Decoded{Address: "other"}}},
	}); err != nil {
		t.Fatal(err)
	}
	if got := addrs.Balance("a1", "00"); got.Locked != 6400 {
		t.Fatalf("non-block event released a1 early: %+v", got)
	}

	if err := p.Project(ctx, blockEvent("b2", 2, "a2", 1)); err != nil {
		t.Fatal(err)
	}
	if got := addrs.Balance("a1", "00"); got.Unlocked != 6400 || got.Locked != 0 {
		t.Fatalf("after maturation: got %+v, want unlocked=6400 locked=0", got)
	}
}

// TestP6IdempotentSpend checks a second attempt to spend the same utxo
// fails with ErrInconsistentChain and changes no state.
func TestP6IdempotentSpend(t *testing.T) {
	addrs, wallets := newTestStores()
	p := newTestProjector(addrs, wallets)
	ctx := context.Background()

	if err := p.Project(ctx, blockEvent("b1", 1, "a1", 6400)); err != nil {
		t.Fatal(err)
	}
	spend := modules.TransactionEvent{
		Version: 1, TxID: "spend1", Timestamp: 2,
		Inputs:  []modules.TxInput{{TxID: "b1", Index: 0, Value: 6400, TokenID: "00", Address: "a1"}},
		Outputs: []modules.TxOutput{{Value: 6400, TokenID: "00", Decoded: modules.Decoded{Address: "a2"}}},
	}
	if err := p.Project(ctx, spend); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	before := addrs.Balance("a2", "00")

	doubleSpend := spend
	doubleSpend.TxID = "spend2"
	if err := p.Project(ctx, doubleSpend); err != modules.ErrInconsistentChain {
		t.Fatalf("expected ErrInconsistentChain, got %v", err)
	}
	after := addrs.Balance("a2", "00")
	if before != after {
		t.Fatalf("double spend mutated state: before=%+v after=%+v", before, after)
	}
}

// TestDuplicateTxIDIsNoOp verifies the projected_tx ledger drops a
// resubmission of the exact same event (spec §9 idempotence decision).
func TestDuplicateTxIDIsNoOp(t *testing.T) {
	addrs, wallets := newTestStores()
	p := newTestProjector(addrs, wallets)
	ctx := context.Background()

	event := blockEvent("b1", 1, "a1", 6400)
	if err := p.Project(ctx, event); err != nil {
		t.Fatal(err)
	}
	before := addrs.Balance("a1", "00")
	if err := p.Project(ctx, event); err != nil {
		t.Fatalf("duplicate resubmission should be a no-op, got error: %v", err)
	}
	after := addrs.Balance("a1", "00")
	if before != after {
		t.Fatalf("duplicate resubmission mutated state: before=%+v after=%+v", before, after)
	}
}
