package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/andreabadesso/hathor-wallet-service/modules"
)

const defaultHistoryPageSize = 50

// getWalletHandler implements "GET wallet" (spec.md §6).
func (a *API) getWalletHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		WriteError(w, modules.NewMissingParameterError("id"))
		return
	}
	wallet, err := a.wallets.GetWallet(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, struct {
		Status *modules.Wallet `json:"status"`
	}{wallet})
}

// postWalletRequest is the body of "POST wallet" (spec.md §6).
type postWalletRequest struct {
	XPubKey string `json:"xpubkey"`
	MaxGap  uint16 `json:"maxGap,omitempty"`
}

const defaultMaxGap = 20

// postWalletHandler implements "POST wallet" (spec.md §6): registers an
// xpubkey and kicks off materialization asynchronously.
func (a *API) postWalletHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req postWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, modules.ErrInvalidBody)
		return
	}
	maxGap := req.MaxGap
	if maxGap == 0 {
		maxGap = defaultMaxGap
	}
	walletID, err := a.materializer.RegisterAsync(r.Context(), req.XPubKey, maxGap)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, struct {
		WalletID string `json:"walletId"`
	}{walletID})
}

// getWalletAddressesHandler implements "GET addresses" (spec.md §6).
func (a *API) getWalletAddressesHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		WriteError(w, modules.NewMissingParameterError("id"))
		return
	}
	if err := a.requireReadyWallet(r, id); err != nil {
		WriteError(w, err)
		return
	}
	addresses, err := a.addrs.GetAddresses(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, struct {
		Addresses []modules.AddressInfo `json:"addresses"`
	}{addresses})
}

// getWalletBalancesHandler implements "GET balances" (spec.md §6).
func (a *API) getWalletBalancesHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		WriteError(w, modules.NewMissingParameterError("id"))
		return
	}
	if err := a.requireReadyWallet(r, id); err != nil {
		WriteError(w, err)
		return
	}
	tokenID := r.URL.Query().Get("token_id")
	balances, err := a.wallets.GetWalletBalances(r.Context(), id, tokenID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, struct {
		Balances []modules.TokenSummary `json:"balances"`
	}{balances})
}

// getWalletTxHistoryHandler implements "GET tx history" (spec.md §6).
func (a *API) getWalletTxHistoryHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		WriteError(w, modules.NewMissingParameterError("id"))
		return
	}
	if err := a.requireReadyWallet(r, id); err != nil {
		WriteError(w, err)
		return
	}

	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		tokenID = modules.DefaultTokenID
	}

	skip, err := parseIntParam(r, "skip", 0)
	if err != nil {
		WriteError(w, err)
		return
	}
	count, err := parseIntParam(r, "count", defaultHistoryPageSize)
	if err != nil {
		WriteError(w, err)
		return
	}

	history, err := a.wallets.GetWalletTxHistory(r.Context(), id, tokenID, skip, count)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, struct {
		History []modules.HistoryEntry `json:"history"`
		Skip    int                    `json:"skip"`
		Count   int                    `json:"count"`
	}{history, skip, count})
}

// getAddressHandler implements the diagnostic single-address read
// (SPEC_FULL.md §3 supplement).
func (a *API) getAddressHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	address := ps.ByName("address")
	if address == "" {
		WriteError(w, modules.NewMissingParameterError("address"))
		return
	}
	tokenID := r.URL.Query().Get("token_id")
	balances, err := a.addrs.GetAddressBalances(r.Context(), address, tokenID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, struct {
		Balances []modules.TokenSummary `json:"balances"`
	}{balances})
}

// postEventHandler implements the transaction event ingestion endpoint
// (SPEC_FULL.md §4.6): decodes the wire event body and drives
// TxProjector.Project.
func (a *API) postEventHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var wire wireEvent
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		WriteError(w, modules.ErrInvalidBody)
		return
	}
	event := wire.toDomain()
	if err := a.projector.Project(r.Context(), event); err != nil {
		a.log.WithError(err).WithField("tx_id", event.TxID).Error("failed to project event")
		WriteError(w, err)
		return
	}
	WriteSuccess(w)
}

// requireReadyWallet returns ErrWalletNotFound/ErrWalletNotReady before a
// handler touches the address or wallet-balance tables, per spec.md §6's
// "missing param, wallet not found, wallet not ready" failure list.
func (a *API) requireReadyWallet(r *http.Request, walletID string) error {
	wallet, err := a.wallets.GetWallet(r.Context(), walletID)
	if err != nil {
		return err
	}
	if wallet.Status != modules.WalletStatusReady {
		return modules.ErrWalletNotReady
	}
	return nil
}

func parseIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, modules.NewInvalidParameterError(name)
	}
	return v, nil
}
