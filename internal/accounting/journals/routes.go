package journals

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/sales/{saleId}", h.GenerateSale)
	r.Post("/purchases/{purchaseId}", h.GeneratePurchase)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/confirm", h.Confirm)
	r.Post("/{id}/reverse", h.Reverse)
}
