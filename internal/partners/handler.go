package partners

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/stocktrace/internal/platform/httpx"
)

// Handler wires HTTP endpoints for supplier and customer directories.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the partners handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers partner routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers", h.listByRole(RoleSupplier))
	r.Post("/suppliers", h.createWithRole(RoleSupplier))
	r.Get("/customers", h.listByRole(RoleCustomer))
	r.Post("/customers", h.createWithRole(RoleCustomer))
	r.Get("/partners/{partnerID}", h.handleGet)
}

type partnerRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=30"`
}

func (h *Handler) listByRole(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partners, err := h.service.List(r.Context(), role)
		if err != nil {
			h.logger.Error("list partners", slog.String("role", string(role)), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if partners == nil {
			partners = []Partner{}
		}
		httpx.JSON(w, http.StatusOK, partners)
	}
}

func (h *Handler) createWithRole(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req partnerRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "request body must be valid JSON")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
			return
		}
		partner, err := h.service.Create(r.Context(), Partner{
			Role:  role,
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, partner)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	partner, err := h.service.Get(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, partner)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Partner Not Found", err.Error())
	case errors.Is(err, ErrInvalidPartner):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("partner request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
