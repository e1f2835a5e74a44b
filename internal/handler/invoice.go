package handler

import (
	"encoding/json"
	"net/http"

	"cargopay/internal/invoice"
	"cargopay/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type InvoiceHandler struct {
	service   *invoice.Service
	validator *validator.Validator
	logger    Logger
}

func NewInvoiceHandler(service *invoice.Service, val *validator.Validator, log Logger) *InvoiceHandler {
	return &InvoiceHandler{service: service, validator: val, logger: log}
}

// Generate creates the invoice for a package at hand-off.
func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	packageID, err := uuid.Parse(mux.Vars(r)["packageId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid package id")
		return
	}

	inv, err := h.service.Generate(r.Context(), packageID)
	if err != nil {
		h.logger.Error("Invoice generation failed", map[string]interface{}{
			"package_id": packageID,
			"error":      err.Error(),
		})
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid invoice id")
		return
	}

	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	items, err := h.service.Items(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"invoice": inv,
		"items":   items,
	})
}

// List returns a page of invoices billed to one company.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(r.URL.Query().Get("company_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "company_id is required")
		return
	}

	limit, offset := pageParams(r)
	invoices, err := h.service.List(r.Context(), companyID, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"limit":    limit,
		"offset":   offset,
	})
}

type payRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=qpay card bank_transfer cash"`
}

// Pay marks the invoice paid and returns the pickup token to the payer.
func (h *InvoiceHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid invoice id")
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: &errorBody{Code: "VALIDATION", Message: "validation failed"}, Data: errs})
		return
	}

	inv, err := h.service.MarkPaid(r.Context(), id, req.PaymentMethod)
	if err != nil {
		h.logger.Error("Invoice payment failed", map[string]interface{}{
			"invoice_id": id,
			"error":      err.Error(),
		})
		respondServiceError(w, err)
		return
	}

	// The token travels only in this response; it is never serialized on the
	// invoice itself.
	respondData(w, http.StatusOK, map[string]interface{}{
		"invoice":      inv,
		"pickup_token": inv.PickupToken,
	})
}

type pickupRequest struct {
	PickupToken string `json:"pickup_token" validate:"required,len=8"`
}

func (h *InvoiceHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid invoice id")
		return
	}

	var req pickupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "pickup token is required")
		return
	}

	delivered, err := h.service.ConfirmPickup(r.Context(), id, req.PickupToken)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"delivered_packages": delivered,
	})
}
