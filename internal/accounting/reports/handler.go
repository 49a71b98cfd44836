package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/retail-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/income-statement", h.IncomeStatement)
	r.Get("/balance-sheet", h.BalanceSheet)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, tb)
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	pl, err := h.service.IncomeStatement(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, pl)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, bs)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, err, shared.Classify)
}

func parseFilter(r *http.Request) (Filter, error) {
	var (
		filter Filter
		err    error
	)
	if filter.DateFrom, err = httpx.QueryDate(r, "dateFrom"); err != nil {
		return Filter{}, err
	}
	if filter.DateTo, err = httpx.QueryDate(r, "dateTo"); err != nil {
		return Filter{}, err
	}
	if filter.BranchID, err = httpx.QueryInt64(r, "branchId"); err != nil {
		return Filter{}, err
	}
	if filter.Level, err = httpx.QueryInt(r, "level"); err != nil {
		return Filter{}, err
	}
	return filter, nil
}
