package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/andreabadesso/hathor-wallet-service/api"
	"github.com/andreabadesso/hathor-wallet-service/internal/addrstore"
	"github.com/andreabadesso/hathor-wallet-service/internal/lockmgr"
	"github.com/andreabadesso/hathor-wallet-service/internal/materializer"
	"github.com/andreabadesso/hathor-wallet-service/internal/projector"
	"github.com/andreabadesso/hathor-wallet-service/internal/walletstore"
	"github.com/andreabadesso/hathor-wallet-service/modules"
	"github.com/andreabadesso/hathor-wallet-service/persist"
)

// addressCacheSize bounds internal/addrstore.CachedStore's LRU of claimed
// addresses (§4.1 step 5 runs on every projected event).
const addressCacheSize = 100_000

// shutdownTimeout bounds how long runDaemon waits for in-flight requests
// to drain once an interrupt arrives.
const shutdownTimeout = 10 * time.Second

// runDaemon wires cfg into a running walletindexerd: open the database,
// build the store/projector/materializer stack, and serve the HTTP API
// until interrupted. Grounded on cmd/rivined/daemon.go's runDaemon shape
// (print progress, bind the server early so a bad listen address fails
// fast, wait on an error channel plus a signal channel), trimmed of
// everything specific to wiring a blockchain node's modules.
func runDaemon(cfg Config) error {
	log := newLogger(cfg.LogLevel)

	log.Info("opening database")
	db, err := persist.OpenDatabase(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	claimCache, err := addrstore.NewClaimCache(addressCacheSize)
	if err != nil {
		return fmt.Errorf("building address claim cache: %w", err)
	}
	cachedAddrs := addrstore.NewCached(db, claimCache)
	wallets := walletstore.New(db)
	deriver := externalDeriver{}

	proj := projector.New(projector.NewSQLUnitOfWork(db, claimCache), lockmgr.New(), cfg.blockRewardLock(), log.WithField("component", "projector"))
	mat := materializer.New(cachedAddrs, wallets, deriver, log.WithField("component", "materializer"))

	handler := api.New(cachedAddrs, wallets, mat, proj, log.WithField("component", "api"))

	log.WithField("addr", cfg.ListenAddr).Info("starting HTTP API")
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}

	servErrs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			servErrs <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	select {
	case err := <-servErrs:
		return fmt.Errorf("serving API: %w", err)
	case <-sigCh:
		log.Info("received interrupt, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newLogger(level string) *logrus.Entry {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logrus.NewEntry(logger)
}

// externalDeriver is a placeholder modules.AddressDeriver: address
// derivation from an xpubkey is, per spec.md §1, an externally supplied
// collaborator, not something this daemon implements. A production
// deployment replaces this with a client for whatever derivation service
// it integrates with.
type externalDeriver struct{}

func (externalDeriver) Derive(ctx context.Context, xpubkey string, start, count uint32) ([]modules.DerivedAddress, error) {
	return nil, fmt.Errorf("externalDeriver: no key-derivation backend configured")
}
