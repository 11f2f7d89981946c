package api

import (
	"github.com/dennisdiepolder/monti/callrouter/internal/callqueue"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the REST handlers mounted under /api
type Handlers struct {
	Routing *RoutingHandler
	Roster  *RosterHandler
	Actions *AgentActionsHandler
	History *HistoryHandler
	Admin   *AdminHandler
	Queues  *callqueue.Handler
}

// Register mounts every endpoint on r
func (h Handlers) Register(r chi.Router) {
	r.Post("/route", h.Routing.RouteCall)
	r.Post("/calls/{callId}/abandon", h.Routing.Abandon)
	r.Post("/calls/{callId}/callback", h.Routing.Callback)
	r.Get("/metrics/calls", h.Routing.CallMetrics)

	r.Route("/agents", func(r chi.Router) {
		r.Get("/", h.Roster.List)
		r.Post("/", h.Roster.Register)
		r.Post("/roster", h.Roster.HandleRoster)
		r.Route("/{agentId}", func(r chi.Router) {
			r.Get("/", h.Roster.Get)
			r.Put("/status", h.Actions.UpdateStatus)
			r.Post("/complete", h.Actions.CompleteCall)
			r.Get("/history", h.History.AgentStats)
			r.Get("/calls", h.History.AgentCalls)
		})
	})

	r.Get("/queues", h.Queues.HandleList)
	r.Put("/queues", h.Admin.ConfigureQueues)
	r.Get("/queues/{queueId}", h.Queues.HandleGet)

	r.Get("/rules", h.Admin.GetRules)
	r.Post("/rules/reload", h.Admin.ReloadRules)

	r.Get("/history/calls", h.History.Calls)
	r.Get("/history/decisions", h.History.Decisions)

	r.Post("/admin/reset-daily", h.Admin.ResetDaily)
	r.Delete("/admin/storage", h.Admin.WipeStorage)
}
