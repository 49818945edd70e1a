package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"billpool/internal/http/handlers"
	"billpool/internal/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer, middleware.RequestID, middleware.Caller)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/bills", func(r chi.Router) {
		r.Post("/", app.BillsCreate)
		r.Get("/{id}", app.BillsGet)
		r.Get("/{id}/contributions", app.BillsContributions)
		r.Post("/{id}/contributions", app.BillsContribute)
		r.Post("/{id}/withdraw", app.BillsWithdraw)
		r.Post("/{id}/refunds", app.BillsRefund)
		r.Post("/{id}/rewards/seed", app.BillsSeedRewards)
		r.Post("/{id}/rewards/distribute", app.BillsDistributeRewards)
	})

	// Privileged entry points for registry members.
	r.Route("/v1/agent/bills", func(r chi.Router) {
		r.Post("/{id}/withdraw", app.AgentWithdraw)
		r.Post("/{id}/refunds", app.AgentRefund)
		r.Post("/{id}/rewards/distribute", app.AgentDistributeRewards)
	})

	r.Route("/v1/agents", func(r chi.Router) {
		r.Post("/", app.AgentsAdd)
		r.Delete("/{address}", app.AgentsRemove)
	})

	r.Route("/v1/events", func(r chi.Router) {
		r.Get("/", app.EventsRange)
		r.Get("/head", app.EventsHead)
	})

	r.Post("/v1/rescue", app.Rescue)
	r.Post("/v1/config/unit-size", app.SetUnitSize)

	// The ledger accepts no value outside contribute.
	r.Post("/v1/transfers", app.TransfersReject)

	return r
}
