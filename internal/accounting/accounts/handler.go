package accounts

import (
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
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/seed", h.Seed)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	nodes, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, nodes)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "account id")
	if err != nil {
		h.fail(w, err)
		return
	}
	acc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input CreateAccountInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	acc, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, acc)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "account id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var input UpdateAccountInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	acc, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc)
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	inserted, err := h.service.SeedBaseChart(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, map[string]int{"inserted": inserted})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, err, shared.Classify)
}

func parseFilter(r *http.Request) (Filter, error) {
	var filter Filter
	level, err := httpx.QueryInt(r, "level")
	if err != nil {
		return Filter{}, err
	}
	filter.Level = level
	if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("category"))); raw != "" {
		category := Category(raw)
		filter.Category = &category
	}
	if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); raw != "" {
		status := Status(raw)
		filter.Status = &status
	}
	return filter, nil
}
