package addrstore

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// openTestDB opens the database named by WALLETIDX_PG_TEST_DSN and migrates
// the address-tier schema into it, or skips the test when the variable is
// unset -- the same gating idiom scan_test.go uses for testing.Short(),
// substituting an environment variable since this suite needs a live
// Postgres instance rather than just more wall-clock time.
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
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// truncateAll clears every address-tier table so each test starts from a
// clean slate without requiring a fresh database per run.
func truncateAll(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE projected_tx, utxo, address, address_balance, address_tx_history`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestStoreMarkProjectedIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	ok, err := s.MarkProjected(ctx, "tx1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected first MarkProjected to report newly recorded")
	}

	ok, err = s.MarkProjected(ctx, "tx1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected second MarkProjected of the same tx_id to be a no-op")
	}
}

func TestStoreApplyDeltasUpsertsAndHistories(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	deltas := modules.DeltaMap{}
	deltas.Add("addr1", "00", modules.Balance{Unlocked: 100})
	if err := s.ApplyDeltas(ctx, "tx1", 1000, deltas); err != nil {
		t.Fatal(err)
	}

	more := modules.DeltaMap{}
	more.Add("addr1", "00", modules.Balance{Unlocked: -40})
	if err := s.ApplyDeltas(ctx, "tx2", 1001, more); err != nil {
		t.Fatal(err)
	}

	balances, err := s.GetAddressBalances(ctx, "addr1", "00")
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 1 || balances[0].Balance.Unlocked != 60 {
		t.Fatalf("expected unlocked balance 60, got %+v", balances)
	}
	if balances[0].Transactions != 2 {
		t.Fatalf("expected 2 transactions, got %d", balances[0].Transactions)
	}
}

func TestStoreApplyUnlockMovesLockedToUnlocked(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	deltas := modules.DeltaMap{}
	deltas.Add("addr1", "00", modules.Balance{Locked: 100})
	if err := s.ApplyDeltas(ctx, "tx1", 1000, deltas); err != nil {
		t.Fatal(err)
	}

	unlocks := modules.UnlockMap{}
	unlocks.Add("addr1", "00", 100)
	if err := s.ApplyUnlock(ctx, unlocks); err != nil {
		t.Fatal(err)
	}

	balances, err := s.GetAddressBalances(ctx, "addr1", "00")
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 1 || balances[0].Balance.Unlocked != 100 || balances[0].Balance.Locked != 0 {
		t.Fatalf("expected unlock to move the full amount, got %+v", balances)
	}
}

func TestStoreFindUTXOsMaturingAt(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	lock := modules.Height(50)
	ts := modules.Timestamp(1000)
	if err := s.InsertUTXOs(ctx, []modules.UTXO{
		{TxID: "tx1", Index: 0, TokenID: "00", Address: "addr1", Value: 10, HeightLock: &lock, TimeLock: &ts},
		{TxID: "tx2", Index: 0, TokenID: "00", Address: "addr2", Value: 20},
	}); err != nil {
		t.Fatal(err)
	}

	matured, err := s.FindUTXOsMaturingAt(ctx, 50, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(matured) != 1 || matured[0].TxID != "tx1" {
		t.Fatalf("expected exactly utxo tx1 to mature, got %+v", matured)
	}

	early, err := s.FindUTXOsMaturingAt(ctx, 50, 999)
	if err != nil {
		t.Fatal(err)
	}
	if len(early) != 0 {
		t.Fatalf("expected no utxos to mature before their timelock, got %+v", early)
	}
}

func TestStoreClaimAndLookupAddresses(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	if err := s.ClaimAddresses(ctx, "wallet1", []modules.AddressClaim{
		{Address: "addr0", Index: 0},
		{Address: "addr1", Index: 1},
	}); err != nil {
		t.Fatal(err)
	}

	claims, err := s.LookupWalletsByAddresses(ctx, []string{"addr0", "addr1", "unknown"})
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 2 || claims["addr0"].WalletID != "wallet1" || claims["addr1"].WalletID != "wallet1" {
		t.Fatalf("expected addr0/addr1 claimed by wallet1, got %+v", claims)
	}

	addresses, err := s.GetAddresses(ctx, "wallet1")
	if err != nil {
		t.Fatal(err)
	}
	if len(addresses) != 2 || addresses[0].Index != 0 || addresses[1].Index != 1 {
		t.Fatalf("expected addresses ordered by index, got %+v", addresses)
	}
}

func TestStoreDeleteUTXO(t *testing.T) {
	db := openTestDB(t)
	truncateAll(t, db)
	s := New(db)
	ctx := context.Background()

	if err := s.InsertUTXOs(ctx, []modules.UTXO{{TxID: "tx1", Index: 0, TokenID: "00", Address: "addr1", Value: 5}}); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteUTXO(ctx, "tx1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("expected DeleteUTXO to report a row was removed")
	}

	deletedAgain, err := s.DeleteUTXO(ctx, "tx1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if deletedAgain {
		t.Fatal("expected a second delete of the same utxo to be a no-op")
	}
}
