package walletstore

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/andreabadesso/hathor-wallet-service/internal/addrstore"
	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// openTestDB opens WALLETIDX_PG_TEST_DSN and migrates both the address-tier
// and wallet-tier schemas into it (SeedFromAddresses reads address_balance
// and address_tx_history directly), or skips when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("WALLETIDX_PG_TEST_DSN")
	if dsn == "" {
		t.Skip("WALLETIDX_PG_TEST_DSN not set, skipping Postgres-backed test")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := addrstore.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate addrstore: %v", err)
	}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate walletstore: %v", err)
	}
	return db
}

func truncateAll(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE wallet, wallet_balance, wallet_tx_history,
		projected_tx, utxo, address, address_balance, address_tx_history`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestStoreCreateWalletRejectsDuplicateID(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	if err := s.CreateWallet(ctx, "w1", "xpub1", 20, 1000); err != nil {
		t.Fatal(err)
	}
	err := s.CreateWallet(ctx, "w1", "xpub2", 20, 1000)
	if err != modules.ErrWalletAlreadyCreated {
		t.Fatalf("expected ErrWalletAlreadyCreated, got %v", err)
	}
}

func TestStoreGetWalletRoundTripsAndTransitions(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	if err := s.CreateWallet(ctx, "w1", "xpub1", 20, 1000); err != nil {
		t.Fatal(err)
	}
	w, err := s.GetWallet(ctx, "w1")
	if err != nil {
		t.Fatal(err)
	}
	if w.Status != modules.WalletStatusCreating || w.MaxGap != 20 {
		t.Fatalf("unexpected wallet after create: %+v", w)
	}

	if err := s.MarkReady(ctx, "w1", 2000); err != nil {
		t.Fatal(err)
	}
	w, err = s.GetWallet(ctx, "w1")
	if err != nil {
		t.Fatal(err)
	}
	if w.Status != modules.WalletStatusReady || w.ReadyAt == nil || *w.ReadyAt != 2000 {
		t.Fatalf("unexpected wallet after MarkReady: %+v", w)
	}
}

func TestStoreGetWalletNotFound(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)

	if _, err := s.GetWallet(context.Background(), "missing"); err != modules.ErrWalletNotFound {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestStoreSeedFromAddressesAggregatesAndAsserts(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	addrs := addrstore.New(db)
	wallets := New(db)
	ctx := context.Background()

	d1 := modules.DeltaMap{}
	d1.Add("addr0", "00", modules.Balance{Unlocked: 100})
	if err := addrs.ApplyDeltas(ctx, "tx1", 1000, d1); err != nil {
		t.Fatal(err)
	}
	d2 := modules.DeltaMap{}
	d2.Add("addr1", "00", modules.Balance{Unlocked: 250})
	if err := addrs.ApplyDeltas(ctx, "tx2", 1001, d2); err != nil {
		t.Fatal(err)
	}

	if err := wallets.CreateWallet(ctx, "w1", "xpub1", 20, 999); err != nil {
		t.Fatal(err)
	}
	if err := wallets.SeedFromAddresses(ctx, "w1", []string{"addr0", "addr1"}); err != nil {
		t.Fatal(err)
	}

	balances, err := wallets.GetWalletBalances(ctx, "w1", "00")
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 1 || balances[0].Balance.Unlocked != 350 {
		t.Fatalf("expected aggregated unlocked balance 350, got %+v", balances)
	}

	// Re-seeding the same wallet must fail closed rather than double-count.
	if err := wallets.SeedFromAddresses(ctx, "w1", []string{"addr0", "addr1"}); err != modules.ErrInconsistentChain {
		t.Fatalf("expected ErrInconsistentChain on re-seed, got %v", err)
	}
}

func TestStoreApplyDeltasAndUnlock(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	if err := s.CreateWallet(ctx, "w1", "xpub1", 20, 0); err != nil {
		t.Fatal(err)
	}

	deltas := modules.DeltaMap{}
	deltas.Add("w1", "00", modules.Balance{Locked: 500})
	if err := s.ApplyDeltas(ctx, "tx1", 1000, deltas); err != nil {
		t.Fatal(err)
	}

	unlocks := modules.UnlockMap{}
	unlocks.Add("w1", "00", 500)
	if err := s.ApplyUnlock(ctx, unlocks); err != nil {
		t.Fatal(err)
	}

	balances, err := s.GetWalletBalances(ctx, "w1", "00")
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 1 || balances[0].Balance.Unlocked != 500 || balances[0].Balance.Locked != 0 {
		t.Fatalf("expected full unlock, got %+v", balances)
	}
}

func TestStoreGetWalletTxHistoryOrdersAndPaginates(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	if err := s.CreateWallet(ctx, "w1", "xpub1", 20, 0); err != nil {
		t.Fatal(err)
	}
	txIDs := []string{"tx0", "tx1", "tx2"}
	for i, ts := range []modules.Timestamp{1000, 1001, 1002} {
		d := modules.DeltaMap{}
		d.Add("w1", "00", modules.Balance{Unlocked: int64(10 * (i + 1))})
		if err := s.ApplyDeltas(ctx, txIDs[i], ts, d); err != nil {
			t.Fatal(err)
		}
	}

	history, err := s.GetWalletTxHistory(ctx, "w1", "00", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Timestamp != 1002 || history[1].Timestamp != 1001 {
		t.Fatalf("expected the two most recent entries first, got %+v", history)
	}

	rest, err := s.GetWalletTxHistory(ctx, "w1", "00", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].Timestamp != 1000 {
		t.Fatalf("expected the remaining entry after skip=2, got %+v", rest)
	}
}
