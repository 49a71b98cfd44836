package ledger

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/retail-ledger/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balances", h.Balances)
	r.Get("/verify", h.Verify)
	r.Post("/periods/{period}/close", h.Close)
	r.Post("/periods/{period}/reopen", h.Reopen)
}

func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.QueryInt64(r, "branchId")
	if err != nil {
		h.fail(w, err)
		return
	}
	accountID, err := httpx.QueryInt64(r, "accountId")
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.ListBalances(r.Context(), Filter{Period: r.URL.Query().Get("period"), BranchID: branchID, AccountID: accountID})
	if err != nil {
		h.fail(w, err)
		return
	}
	if rows == nil {
		rows = []Balance{}
	}
	httpx.OK(w, http.StatusOK, rows)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.QueryInt64(r, "branchId")
	if err != nil {
		h.fail(w, err)
		return
	}
	drifts, err := h.service.Verify(r.Context(), r.URL.Query().Get("period"), branchID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if drifts == nil {
		drifts = []Drift{}
	}
	httpx.OK(w, http.StatusOK, map[string]any{"consistent": len(drifts) == 0, "drifts": drifts})
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ClosePeriod)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ReopenPeriod)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, int64, int64) error) {
	identity := internalShared.IdentityFromContext(r.Context())
	branchID := identity.BranchID
	if override, err := httpx.QueryInt64(r, "branchId"); err != nil {
		h.fail(w, err)
		return
	} else if override != nil {
		branchID = *override
	}
	period := chi.URLParam(r, "period")
	if err := apply(r.Context(), period, branchID, identity.UserID); err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"period": period, "branchId": branchID})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, err, shared.Classify)
}
