package ledger

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/stocktrace/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the movement ledger. Authorization is
// handled upstream; by the time a request lands here the caller is allowed
// to perform the operation.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	history   singleflight.Group
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleRecordMovement)
	r.Get("/products/{productID}/history", h.handleHistory)
	r.Get("/products/{productID}/quantity", h.handleQuantity)
}

type recordMovementRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Kind           string `json:"kind" validate:"required,oneof=RECEIPT ISSUE"`
	Quantity       int64  `json:"quantity" validate:"required,gt=0"`
	Note           string `json:"note" validate:"omitempty,max=500"`
	CounterpartyID string `json:"counterparty_id" validate:"omitempty,uuid"`
}

type recordMovementResponse struct {
	MovementID  string `json:"movement_id"`
	NewQuantity int64  `json:"new_quantity"`
}

func (h *Handler) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req recordMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", validationDetail(err))
		return
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.RecordMovement(r.Context(), MovementInput{
		ProductID:      req.ProductID,
		Kind:           kind,
		Quantity:       req.Quantity,
		Note:           req.Note,
		CounterpartyID: req.CounterpartyID,
		ActorID:        r.Header.Get("X-Actor"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("movement committed",
		slog.String("movement_id", result.MovementID),
		slog.String("product_id", req.ProductID),
		slog.String("kind", req.Kind),
		slog.Int64("new_quantity", result.NewQuantity))
	httpx.JSON(w, http.StatusCreated, recordMovementResponse{
		MovementID:  result.MovementID,
		NewQuantity: result.NewQuantity,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	// History reads are idempotent, so concurrent identical requests share
	// a single replay.
	result := h.history.DoChan(productID, func() (any, error) {
		return h.service.GetHistory(r.Context(), productID)
	})
	select {
	case <-r.Context().Done():
		httpx.Problem(w, http.StatusServiceUnavailable, "Request Cancelled", "")
		return
	case res := <-result:
		if res.Err != nil {
			h.logger.Error("load history", slog.Any("error", res.Err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusOK, res.Val)
	}
}

func (h *Handler) handleQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	qty, err := h.service.GetQuantity(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "quantity": qty})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Product Not Found", err.Error())
	case errors.Is(err, ErrCounterpartyNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Counterparty Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Quantity", err.Error())
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "concurrent update, please retry")
	default:
		h.logger.Error("record movement", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return "invalid field: " + first.Field()
	}
	return "invalid request"
}
