// Package sqlutil holds the small pieces internal/addrstore and
// internal/walletstore both need: a Querier abstraction over *sql.DB/*sql.Tx
// so a store can run either against the pool or inside the projector's
// single event-scoped transaction (spec §5 atomicity), and the
// storage-error translation shared by both stores' error handling (spec §7
// StorageUnavailable).
package sqlutil

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, letting a store run
// either directly against the pool (read endpoints) or against one
// caller-managed transaction (the projector's atomic write path).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Translate maps a database/sql or lib/pq error into one of spec §7's error
// kinds. sql.ErrNoRows is left untouched -- callers decide what "not found"
// means in their own domain (e.g. ErrWalletNotFound vs. a plain nil slice).
func Translate(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57", "58": // connection, resource, operator intervention, system errors
			return modules.ErrStorageUnavailable
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return modules.ErrStorageUnavailable
	}
	return err
}
