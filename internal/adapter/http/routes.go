package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dexploarer/ghostspeak-go/internal/config"
	"github.com/Dexploarer/ghostspeak-go/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, auth config.Auth) {
	r.Get("/healthz", h.Health)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Agent registry. Mutations act on the caller's own record, so the
		// owner never appears in the mutation paths.
		r.Post("/agents", h.RegisterAgent)
		r.Get("/agents", h.ListAgents)
		r.Put("/agents", h.UpdateAgent)
		r.Delete("/agents", h.DeactivateAgent)
		r.Get("/agents/{owner}", h.GetAgent)
		r.Get("/agents/{owner}/events", h.ListAgentEvents)

		// Staking
		r.Post("/staking/stake", h.Stake)
		r.Post("/staking/unstake", h.Unstake)
		r.Get("/staking/config", h.GetStakingConfig)
		r.Get("/staking/{owner}", h.GetStakingAccount)

		// Escrows. Keyed by (buyer, id) so different buyers can reuse IDs.
		r.Post("/escrows", h.CreateEscrow)
		r.Get("/escrows", h.ListEscrows)
		r.Get("/escrows/{buyer}/{id}", h.GetEscrow)
		r.Post("/escrows/{buyer}/{id}/deliver", h.SubmitDelivery)
		r.Post("/escrows/{buyer}/{id}/approve", h.ApproveDelivery)
		r.Post("/escrows/{buyer}/{id}/dispute", h.FileDispute)
		r.Post("/escrows/{buyer}/{id}/refund-expired", h.RefundExpired)

		// Reputation
		r.Get("/reputation/{owner}", h.GetReputation)

		// x402 payment-attestation feed (bearer key). Attestation bodies are
		// untrusted input, so ingestion is restricted to the feed role.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireKey(auth.FeedKey))
			r.Post("/payments", h.RecordPayment)
		})

		// Arbitration (bearer key, separate from admin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireKey(auth.ArbitratorKey))
			r.Post("/arbitration/escrows/{buyer}/{id}", h.Arbitrate)
		})

		// Admin (bearer key)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireKey(auth.AdminKey))
			r.Get("/admin/breaker", h.BreakerState)
			r.Post("/admin/breaker/pause", h.PauseClass)
			r.Post("/admin/breaker/unpause", h.UnpauseClass)
			r.Put("/admin/staking/config", h.UpdateStakingConfig)
			r.Post("/admin/slash", h.Slash)
		})
	})
}
