package materializer

import (
	"context"
	"testing"

	"github.com/andreabadesso/hathor-wallet-service/internal/teststore"
	"github.com/andreabadesso/hathor-wallet-service/modules"
)

const validXPubKey = "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8"

// newTestMaterializer wires a Materializer over in-memory fakes, mirroring
// how a real one is wired over addrstore/walletstore against one *sql.DB.
func newTestMaterializer() (*Materializer, *teststore.AddressStore, *teststore.WalletStore) {
	addrs := teststore.NewAddressStore()
	wallets := teststore.NewWalletStore(addrs)
	m := New(addrs, wallets, teststore.NewDeriver(), nil)
	return m, addrs, wallets
}

// seedAddressActivity gives an address a balance and history row directly,
// standing in for the address tier already having been projected into
// before a wallet claims it (spec §4.4's precondition: addresses may have
// transactions before any wallet registers them).
func seedAddressActivity(t *testing.T, addrs *teststore.AddressStore, address string, amount int64) {
	t.Helper()
	if err := addrs.ApplyDeltas(context.Background(), "seed-"+address, 1, modules.DeltaMap{
		address: {modules.DefaultTokenID: modules.Balance{Unlocked: amount}},
	}); err != nil {
		t.Fatalf("seeding %s: %v", address, err)
	}
}

// TestRegisterEmptyWallet covers S5: registering an xpubkey with no prior
// on-chain activity on any of its addresses produces a ready, empty wallet.
func TestRegisterEmptyWallet(t *testing.T) {
	m, _, wallets := newTestMaterializer()
	ctx := context.Background()

	walletID, err := m.Register(ctx, validXPubKey, 20)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	w, err := wallets.GetWallet(ctx, walletID)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if w.Status != modules.WalletStatusReady {
		t.Fatalf("expected ready wallet, got status %q", w.Status)
	}
	if w.MaxGap != 20 {
		t.Fatalf("expected MaxGap=20, got %d", w.MaxGap)
	}

	summaries, err := wallets.GetWalletBalances(ctx, walletID, "")
	if err != nil {
		t.Fatalf("GetWalletBalances: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected no balances for an untouched wallet, got %+v", summaries)
	}
}

// TestRegisterAggregatesExistingActivity exercises P3: once addresses
// within the gap-limit window already have balances, materializing a
// wallet over them aggregates those balances up to the wallet tier.
func TestRegisterAggregatesExistingActivity(t *testing.T) {
	m, addrs, wallets := newTestMaterializer()
	ctx := context.Background()

	addr0 := validXPubKey + "-addr-0"
	addr3 := validXPubKey + "-addr-3"
	seedAddressActivity(t, addrs, addr0, 100)
	seedAddressActivity(t, addrs, addr3, 250)

	walletID, err := m.Register(ctx, validXPubKey, 20)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	w, err := wallets.GetWallet(ctx, walletID)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if w.Status != modules.WalletStatusReady {
		t.Fatalf("expected ready wallet, got status %q", w.Status)
	}

	summaries, err := wallets.GetWalletBalances(ctx, walletID, modules.DefaultTokenID)
	if err != nil {
		t.Fatalf("GetWalletBalances: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Balance.Unlocked != 350 {
		t.Fatalf("expected aggregated unlocked=350, got %+v", summaries)
	}

	addresses, err := addrs.GetAddresses(ctx, walletID)
	if err != nil {
		t.Fatalf("GetAddresses: %v", err)
	}
	if len(addresses) == 0 {
		t.Fatal("expected claimed addresses, got none")
	}
}

// TestScanWindowTerminatesAtGapLimit exercises P5: the scan stops once a
// full gap-limit window past the last used address comes back empty, and
// the returned window is exactly the used prefix plus one gap's worth.
func TestScanWindowTerminatesAtGapLimit(t *testing.T) {
	m, addrs, _ := newTestMaterializer()
	ctx := context.Background()

	const maxGap = 5
	usedIndex := uint32(7) // inside the second derived batch
	used := validXPubKey + "-addr-" + "7"
	seedAddressActivity(t, addrs, used, 1)

	window, err := m.scanWindow(ctx, validXPubKey, maxGap)
	if err != nil {
		t.Fatalf("scanWindow: %v", err)
	}

	wantLen := int(usedIndex) + maxGap + 1
	if len(window) != wantLen {
		t.Fatalf("expected window of length %d, got %d", wantLen, len(window))
	}
	if window[len(window)-1].Index != usedIndex+maxGap {
		t.Fatalf("expected window to end at index %d, got %d", usedIndex+maxGap, window[len(window)-1].Index)
	}
}

// TestMaterializeRejectsInvalidXPubKey checks Register validates its input
// before ever touching storage.
func TestMaterializeRejectsInvalidXPubKey(t *testing.T) {
	m, _, wallets := newTestMaterializer()
	ctx := context.Background()

	if _, err := m.Register(ctx, "not-a-real-xpubkey", 20); err == nil {
		t.Fatal("expected an error for a malformed xpubkey")
	}

	// No wallet should have been created.
	if _, err := wallets.GetWallet(ctx, "anything"); err != modules.ErrWalletNotFound {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}
