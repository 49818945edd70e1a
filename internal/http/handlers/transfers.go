package handlers

import (
	"net/http"

	"billpool/internal/domain"
)

// TransfersReject refuses value sent to the ledger outside contribute.
func (a *App) TransfersReject(w http.ResponseWriter, r *http.Request) {
	a.ledgerError(w, domain.ErrTransferRejected)
}
