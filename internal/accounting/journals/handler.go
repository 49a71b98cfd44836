package journals

import (
	"log/slog"
	"net/http"
	"strings"

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.OK(w, http.StatusOK, entries)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "entry id")
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input ManualEntryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	identity := internalShared.IdentityFromContext(r.Context())
	if input.BranchID == 0 {
		input.BranchID = identity.BranchID
	}
	input.AuthorID = identity.UserID
	result, err := h.service.CreateManualEntry(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, result)
}

// GenerateSale is the manual remedy for a sale whose automatic entry failed.
func (h *Handler) GenerateSale(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "saleId"), "sale id")
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.service.GenerateSaleEntry(r.Context(), id, internalShared.IdentityFromContext(r.Context()).UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, entry)
}

func (h *Handler) GeneratePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "purchaseId"), "purchase id")
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.service.GeneratePurchaseEntry(r.Context(), id, internalShared.IdentityFromContext(r.Context()).UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, entry)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "entry id")
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.service.ConfirmEntry(r.Context(), id, internalShared.IdentityFromContext(r.Context()).UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "entry id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var input ReverseInput
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &input); err != nil {
			h.fail(w, err)
			return
		}
	}
	input.EntryID = id
	input.AuthorID = internalShared.IdentityFromContext(r.Context()).UserID
	entry, err := h.service.ReverseEntry(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, entry)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, err, shared.Classify)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	var err error
	if filter.DateFrom, err = httpx.QueryDate(r, "dateFrom"); err != nil {
		return ListFilter{}, err
	}
	if filter.DateTo, err = httpx.QueryDate(r, "dateTo"); err != nil {
		return ListFilter{}, err
	}
	if filter.BranchID, err = httpx.QueryInt64(r, "branchId"); err != nil {
		return ListFilter{}, err
	}
	q := r.URL.Query()
	filter.Status = Status(strings.ToUpper(strings.TrimSpace(q.Get("status"))))
	filter.Operation = Operation(strings.ToUpper(strings.TrimSpace(q.Get("operation"))))
	limit, err := httpx.QueryInt(r, "limit")
	if err != nil {
		return ListFilter{}, err
	}
	if limit != nil {
		filter.Limit = *limit
	}
	offset, err := httpx.QueryInt(r, "offset")
	if err != nil {
		return ListFilter{}, err
	}
	if offset != nil {
		filter.Offset = *offset
	}
	return filter, nil
}
