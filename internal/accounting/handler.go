package accounting

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/regulatory"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/reports"
)

// Services groups the accounting services exposed over HTTP.
type Services struct {
	Accounts   *accounts.Service
	Journals   *journals.Service
	Ledger     *ledger.Service
	Reports    *reports.Service
	Regulatory *regulatory.Service
}

// Handler mounts every accounting sub-router.
type Handler struct {
	logger   *slog.Logger
	services Services
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, services Services) *Handler {
	return &Handler{logger: logger, services: services}
}

// MountRoutes registers the accounting routes under the current router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", accounts.NewHandler(h.logger, h.services.Accounts).MountRoutes)
	r.Route("/journals", journals.NewHandler(h.logger, h.services.Journals).MountRoutes)
	r.Route("/ledger", ledger.NewHandler(h.logger, h.services.Ledger).MountRoutes)
	r.Route("/reports", reports.NewHandler(h.logger, h.services.Reports).MountRoutes)
	r.Route("/regulatory", regulatory.NewHandler(h.logger, h.services.Regulatory).MountRoutes)
}
