package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cargopay/internal/domain"
	"cargopay/internal/middleware"
	"cargopay/internal/settlement"
	"cargopay/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type SettlementHandler struct {
	service   *settlement.Service
	validator *validator.Validator
	logger    Logger
}

func NewSettlementHandler(service *settlement.Service, val *validator.Validator, log Logger) *SettlementHandler {
	return &SettlementHandler{service: service, validator: val, logger: log}
}

type generateSettlementRequest struct {
	CompanyID   uuid.UUID `json:"company_id" validate:"required"`
	Role        string    `json:"role" validate:"required,oneof=HUB CARRIER"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
}

// Generate builds a draft settlement for one company, role, and period.
func (h *SettlementHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "validation failed")
		return
	}

	st, err := h.service.GenerateForCompany(r.Context(), req.CompanyID,
		domain.SettlementRole(req.Role), req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.logger.Error("Settlement generation failed", map[string]interface{}{
			"company_id": req.CompanyID,
			"role":       req.Role,
			"error":      err.Error(),
		})
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusCreated, st)
}

func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid settlement id")
		return
	}

	st, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, st)
}

func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	var companyID *uuid.UUID
	if v := r.URL.Query().Get("company_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid company id")
			return
		}
		companyID = &id
	}

	var status *domain.SettlementStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := domain.SettlementStatus(v)
		status = &s
	}

	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	settlements, err := h.service.List(r.Context(), companyID, status, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"settlements": settlements,
		"limit":       limit,
		"offset":      offset,
	})
}

type hubReviewRequest struct {
	Decision         string          `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	AdjustmentAmount decimal.Decimal `json:"adjustment_amount"`
	Note             string          `json:"note" validate:"max=500"`
}

func (h *SettlementHandler) HubReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid settlement id")
		return
	}

	var req hubReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "validation failed")
		return
	}

	st, err := h.service.HubReview(r.Context(), id, req.Decision == "APPROVED",
		req.AdjustmentAmount, validator.Sanitize(req.Note))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, st)
}

type carrierReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=ACCEPTED REJECTED"`
	Note     string `json:"note" validate:"max=500"`
}

func (h *SettlementHandler) CarrierReview(w http.ResponseWriter, r *http.Request) {
	companyID, ok := middleware.CompanyIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid settlement id")
		return
	}

	var req carrierReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "validation failed")
		return
	}

	st, err := h.service.CarrierReview(r.Context(), id, companyID,
		req.Decision == "ACCEPTED", validator.Sanitize(req.Note))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, st)
}

type transferRequest struct {
	Reference string `json:"reference" validate:"required,max=100"`
	Receipt   string `json:"receipt" validate:"max=255"`
}

func (h *SettlementHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid settlement id")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "validation failed")
		return
	}

	st, err := h.service.Transfer(r.Context(), id, validator.Sanitize(req.Reference), validator.Sanitize(req.Receipt))
	if err != nil {
		h.logger.Error("Settlement transfer failed", map[string]interface{}{
			"settlement_id": id,
			"error":         err.Error(),
		})
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, st)
}
