package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"billpool/internal/domain"
	"billpool/internal/eventlog"
	"billpool/internal/ledger"
	"billpool/internal/middleware"
)

// App bundles the handler dependencies.
type App struct {
	Ledger *ledger.Service
	Events eventlog.Source
	Log    zerolog.Logger
}

func NewApp(svc *ledger.Service, events eventlog.Source, logger zerolog.Logger) *App {
	return &App{Ledger: svc, Events: events, Log: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, map[string]string{"error": code, "message": msg})
}

// ledgerError maps a ledger failure to its wire code and HTTP status, so
// callers observe the specific named condition rather than a catch-all.
func (a *App) ledgerError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	status := http.StatusConflict
	switch {
	case errors.Is(err, domain.ErrBillNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotPayee),
		errors.Is(err, domain.ErrNotAgent),
		errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrTransferRejected):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidPayee):
		status = http.StatusBadRequest
	}
	if code == "internal" {
		status = http.StatusInternalServerError
	}
	a.error(w, status, code, err.Error())
}

// caller returns the request's caller address, writing a 401 when missing.
func (a *App) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr := middleware.CallerFromContext(r.Context())
	if addr == "" {
		a.error(w, http.StatusUnauthorized, "missing_caller", "X-Caller-Address header required")
		return "", false
	}
	return addr, true
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
