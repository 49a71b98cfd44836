package regulatory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

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
	r.Get("/journal", h.export(ReportJournal))
	r.Get("/ledger", h.export(ReportLedger))
	r.Get("/sales", h.export(ReportSales))
	r.Get("/purchases", h.export(ReportPurchases))
	r.Get("/declaration", h.Declaration)
}

func (h *Handler) export(report Report) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, branchID, asText, err := parseQuery(r)
		if err != nil {
			h.fail(w, err)
			return
		}
		out, err := h.service.Export(r.Context(), report, period, branchID)
		if err != nil {
			h.fail(w, err)
			return
		}
		if !asText {
			httpx.OK(w, http.StatusOK, out)
			return
		}
		body, err := RenderText(out)
		if err != nil {
			h.fail(w, err)
			return
		}
		httpx.Attachment(w, FileName(period, report), body)
	}
}

func (h *Handler) Declaration(w http.ResponseWriter, r *http.Request) {
	period, branchID, asText, err := parseQuery(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if asText {
		h.fail(w, fmt.Errorf("%w: declaration is only available as json", httpx.ErrValidation))
		return
	}
	decl, err := h.service.Declaration(r.Context(), period, branchID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, decl)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, err, shared.Classify)
}

func parseQuery(r *http.Request) (period string, branchID *int64, asText bool, err error) {
	period = strings.TrimSpace(r.URL.Query().Get("period"))
	if branchID, err = httpx.QueryInt64(r, "branchId"); err != nil {
		return "", nil, false, err
	}
	switch format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); format {
	case "", "json":
	case "txt":
		asText = true
	default:
		return "", nil, false, fmt.Errorf("%w: format must be json or txt", httpx.ErrValidation)
	}
	return period, branchID, asText, nil
}
