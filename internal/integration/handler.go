package integration

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/retail-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/retail-ledger/internal/shared"
)

// Handler lets the sales and purchasing workflows notify the ledger after a
// document is committed. Ledger failures are reported in the body, never as an
// error status.
type Handler struct {
	hooks  *Hooks
	logger *slog.Logger
}

func NewHandler(hooks *Hooks, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hooks: hooks, logger: logger}
}

// MountRoutes attaches the document notifications.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales/{id}", h.notify(h.hooks.OnSaleCreated))
	r.Post("/purchases/{id}", h.notify(h.hooks.OnPurchaseCreated))
}

func (h *Handler) notify(hook func(ctx context.Context, id, authorID int64) Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
		if err != nil {
			httpx.RespondError(w, h.logger, err, nil)
			return
		}
		identity := shared.IdentityFromContext(r.Context())
		httpx.OK(w, http.StatusOK, hook(r.Context(), id, identity.UserID))
	}
}
