package handlers

import (
	"net/http"
	"strconv"
)

// MaxRangeWindow caps a single events range query. Clients page through
// larger spans in chunks.
const MaxRangeWindow = 1000

func (a *App) EventsHead(w http.ResponseWriter, r *http.Request) {
	head, err := a.Events.Head(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read head")
		return
	}
	a.json(w, http.StatusOK, map[string]uint64{"head": head})
}

func (a *App) EventsRange(w http.ResponseWriter, r *http.Request) {
	from, err1 := strconv.ParseUint(r.URL.Query().Get("from"), 10, 64)
	to, err2 := strconv.ParseUint(r.URL.Query().Get("to"), 10, 64)
	if err1 != nil || err2 != nil || from == 0 || to < from {
		a.error(w, http.StatusBadRequest, "bad_request", "from and to are required, 1 <= from <= to")
		return
	}
	if to-from+1 > MaxRangeWindow {
		a.error(w, http.StatusBadRequest, "range_too_wide", "window exceeds limit")
		return
	}
	events, err := a.Events.Range(r.Context(), from, to)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read events")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": events})
}
