// Package persist opens and validates the storage layer's database handle,
// the same role persist.OpenDatabase plays for the teacher's bbolt-backed
// daemons: connect, fail fast with a clear error if the store cannot be
// reached, and get the schema into a known-good state before anything else
// touches it.
package persist

import (
	"context"
	"database/sql"
	"time"

	// registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/andreabadesso/hathor-wallet-service/internal/addrstore"
	"github.com/andreabadesso/hathor-wallet-service/internal/walletstore"
)

// openTimeout bounds how long OpenDatabase waits for the initial
// connection, mirroring the teacher's own 3-second bolt.Open timeout so a
// misconfigured DSN fails fast instead of hanging the daemon at startup.
const openTimeout = 3 * time.Second

// OpenDatabase opens dsn, verifies connectivity, and migrates the
// address-tier and wallet-tier schemas (spec §3). The returned *sql.DB is
// the shared pool TxProjector and the read API both draw connections from.
func OpenDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := addrstore.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := walletstore.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
