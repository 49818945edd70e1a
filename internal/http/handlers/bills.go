package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type createBillRequest struct {
	Payee    string `json:"payee"`
	Target   uint64 `json:"target"`
	Deadline int64  `json:"deadline"` // unix seconds, 0 for none
}

func (a *App) BillsCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id, err := a.Ledger.CreateBill(r.Context(), caller, req.Payee, req.Target, req.Deadline)
	if err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *App) BillsGet(w http.ResponseWriter, r *http.Request) {
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	bill, err := a.Ledger.GetBill(r.Context(), id)
	if err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, bill)
}

func (a *App) BillsContributions(w http.ResponseWriter, r *http.Request) {
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	items, err := a.Ledger.Contributions(r.Context(), id)
	if err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

type contributeRequest struct {
	Amount uint64 `json:"amount"`
}

func (a *App) BillsContribute(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	accepted, surplus, err := a.Ledger.Contribute(r.Context(), id, caller, req.Amount)
	if err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"accepted": accepted, "surplus": surplus})
}

func (a *App) BillsWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	if err := a.Ledger.Withdraw(r.Context(), id, caller); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

type refundRequest struct {
	Contributor string `json:"contributor"`
}

func (a *App) BillsRefund(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.caller(w, r); !ok {
		return
	}
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contributor == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "contributor required")
		return
	}
	if err := a.Ledger.Refund(r.Context(), id, req.Contributor); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "refunded"})
}

type seedRequest struct {
	Amount uint64 `json:"amount"`
}

func (a *App) BillsSeedRewards(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Ledger.SeedRewardPool(r.Context(), id, caller, req.Amount); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "seeded"})
}

func (a *App) BillsDistributeRewards(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.caller(w, r); !ok {
		return
	}
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	if err := a.Ledger.DistributeRewards(r.Context(), id); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "distributed"})
}

// Agent-gated variants, the surface the keeper drives.

func (a *App) AgentWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	if err := a.Ledger.WithdrawFor(r.Context(), id, caller); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (a *App) AgentRefund(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contributor == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "contributor required")
		return
	}
	if err := a.Ledger.RefundFor(r.Context(), id, req.Contributor, caller); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "refunded"})
}

func (a *App) AgentDistributeRewards(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := a.billID(w, r)
	if !ok {
		return
	}
	if err := a.Ledger.DistributeRewardsFor(r.Context(), id, caller); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "distributed"})
}

func (a *App) billID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid bill id")
		return 0, false
	}
	return id, true
}
