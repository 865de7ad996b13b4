// Package api implements the HTTP read/write surface of SPEC_FULL.md §4.6:
// wallet registration, address/balance/history reads, and the transaction
// event ingestion endpoint. Grounded on the teacher's api/api.go -- one API
// struct wrapping the service's components, one httprouter.Router, the same
// WriteJSON/WriteError/WriteSuccess response helpers and Error envelope
// shape, extended with the success/error/parameter envelope fields spec.md
// §6 requires.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// Materializer is the subset of WalletMaterializer the API drives.
type Materializer interface {
	RegisterAsync(ctx context.Context, xpubkey string, maxGap uint16) (walletID string, err error)
}

// Projector is the subset of TxProjector the ingestion endpoint drives.
type Projector interface {
	Project(ctx context.Context, event modules.TransactionEvent) error
}

// API wraps the wallet/address stores, the materializer and the projector
// behind an http.Handler, mirroring the teacher's API struct wrapping its
// modules.
type API struct {
	addrs        modules.AddressStore
	wallets      modules.WalletStore
	materializer Materializer
	projector    Projector
	log          *logrus.Entry

	router http.Handler
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// New builds the API's router over the given components.
func New(addrs modules.AddressStore, wallets modules.WalletStore, materializer Materializer, projector Projector, log *logrus.Entry) *API {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	a := &API{addrs: addrs, wallets: wallets, materializer: materializer, projector: projector, log: log}

	router := httprouter.New()
	router.NotFound = http.HandlerFunc(UnrecognizedCallHandler)

	router.GET("/wallets/:id", a.getWalletHandler)
	router.POST("/wallets", a.postWalletHandler)
	router.GET("/wallets/:id/addresses", a.getWalletAddressesHandler)
	router.GET("/wallets/:id/balances", a.getWalletBalancesHandler)
	router.GET("/wallets/:id/transactions", a.getWalletTxHistoryHandler)
	router.GET("/addresses/:address", a.getAddressHandler)
	router.POST("/events", a.postEventHandler)

	a.router = router
	return a
}

// Envelope is the response shape every endpoint writes, per spec.md §6:
// "All responses carry a success: bool and, on failure, an error: <enum
// kind> and optionally a parameter: <name>."
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Parameter string      `json:"parameter,omitempty"`
}

// WriteJSON writes a successful envelope wrapping obj.
func WriteJSON(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(Envelope{Success: true, Data: obj}); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// WriteSuccess writes a successful envelope with no payload.
func WriteSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Envelope{Success: true})
}

// WriteError writes a failure envelope, mapping err to spec.md §7's closed
// error-kind set. Input validation errors use HTTP 200 (spec.md §6: "All
// responses carry a success bool" -- the envelope, not the status line, is
// the source of truth for caller-facing handling); storage/chain errors use
// 500/503 so a reverse proxy's own monitoring still sees them.
func WriteError(w http.ResponseWriter, err error) {
	status, kind, param := classifyError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: false, Error: kind, Parameter: param})
}

func classifyError(err error) (status int, kind string, parameter string) {
	var paramErr *modules.ParameterError
	switch {
	case errors.As(err, &paramErr):
		return http.StatusOK, paramErr.Kind.Error(), paramErr.Param
	case errors.Is(err, modules.ErrInvalidBody):
		return http.StatusOK, "invalid body", ""
	case errors.Is(err, modules.ErrWalletNotFound):
		return http.StatusOK, "wallet not found", ""
	case errors.Is(err, modules.ErrWalletNotReady):
		return http.StatusOK, "wallet not ready", ""
	case errors.Is(err, modules.ErrWalletAlreadyCreated):
		return http.StatusOK, "wallet already created", ""
	case errors.Is(err, modules.ErrInconsistentChain):
		return http.StatusInternalServerError, "inconsistent chain", ""
	case errors.Is(err, modules.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable", ""
	default:
		return http.StatusInternalServerError, "internal error", ""
	}
}

// UnrecognizedCallHandler handles requests to unknown routes.
func UnrecognizedCallHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(Envelope{Success: false, Error: "not found"})
}
