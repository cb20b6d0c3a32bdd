package gateway

import (
	"github.com/go-chi/chi/v5"
)

// APIRoutes returns the /api/v1 route table. Auth endpoints are public;
// everything else sits behind the JWT middleware and is forwarded to the
// owning service.
func APIRoutes(p *Proxy) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", p.ForwardToParties)
			r.Post("/login", p.ForwardToParties)
			r.Post("/refresh", p.ForwardToParties)
		})

		r.Group(func(r chi.Router) {
			r.Use(p.AuthMiddleware)

			r.Route("/parties", func(r chi.Router) {
				r.Get("/", p.ForwardToParties)
				r.Get("/me", p.ForwardToParties)
				r.Put("/me", p.ForwardToParties)
				r.Get("/{id}", p.ForwardToParties)
				r.Post("/{id}/deactivate", p.ForwardToParties)
				r.Post("/{id}/reactivate", p.ForwardToParties)
			})

			r.Route("/ledger", func(r chi.Router) {
				r.Route("/items", func(r chi.Router) {
					r.Get("/", p.ForwardToLedger)
					r.Post("/", p.ForwardToLedger)
					r.Get("/expiring", p.ForwardToLedger)
					r.Get("/{id}", p.ForwardToLedger)
					r.Patch("/{id}/price", p.ForwardToLedger)
				})

				r.Route("/holdings", func(r chi.Router) {
					r.Get("/", p.ForwardToLedger)
					r.Get("/history", p.ForwardToLedger)
					r.Post("/rebuild", p.ForwardToLedger)
					r.Get("/{itemID}", p.ForwardToLedger)
				})

				r.Route("/transfers", func(r chi.Router) {
					r.Get("/", p.ForwardToLedger)
					r.Post("/", p.ForwardToLedger)
					r.Post("/fifo", p.ForwardToLedger)
					r.Post("/commit-lots", p.ForwardToLedger)
					r.Get("/{id}", p.ForwardToLedger)
					r.Post("/{id}/commit", p.ForwardToLedger)
					r.Post("/{id}/reject", p.ForwardToLedger)
				})

				r.Route("/requests", func(r chi.Router) {
					r.Get("/", p.ForwardToLedger)
					r.Post("/", p.ForwardToLedger)
					r.Get("/{id}", p.ForwardToLedger)
					r.Post("/{id}/decide", p.ForwardToLedger)
				})
			})
		})
	}
}
