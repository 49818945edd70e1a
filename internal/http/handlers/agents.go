package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type agentRequest struct {
	Address string `json:"address"`
}

func (a *App) AgentsAdd(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "address required")
		return
	}
	if err := a.Ledger.AddAgent(r.Context(), caller, req.Address); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"agent": req.Address})
}

func (a *App) AgentsRemove(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	addr := chi.URLParam(r, "address")
	if addr == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "address required")
		return
	}
	if err := a.Ledger.RemoveAgent(r.Context(), caller, addr); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"removed": addr})
}

type rescueRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (a *App) Rescue(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req rescueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "recipient required")
		return
	}
	if err := a.Ledger.Rescue(r.Context(), caller, req.To, req.Amount); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "rescued"})
}

type unitSizeRequest struct {
	Unit uint64 `json:"unit"`
}

func (a *App) SetUnitSize(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req unitSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Ledger.SetUnitSize(caller, req.Unit); err != nil {
		a.ledgerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"unit": req.Unit})
}
