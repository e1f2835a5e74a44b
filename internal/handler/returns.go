package handler

import (
	"encoding/json"
	"net/http"

	"cargopay/internal/domain"
	"cargopay/internal/invoice"
	"cargopay/internal/middleware"
	"cargopay/internal/refund"
	pkgerrors "cargopay/pkg/errors"
	"cargopay/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type ReturnHandler struct {
	refunds   *refund.Service
	invoices  *invoice.Service
	validator *validator.Validator
	logger    Logger
}

func NewReturnHandler(refunds *refund.Service, invoices *invoice.Service, val *validator.Validator, log Logger) *ReturnHandler {
	return &ReturnHandler{refunds: refunds, invoices: invoices, validator: val, logger: log}
}

// Open files a return request on behalf of the authenticated claimant.
func (h *ReturnHandler) Open(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var req refund.OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	req.OpenedBy = userID

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "validation failed")
		return
	}

	rr, err := h.refunds.Open(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to open return request", map[string]interface{}{"error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusCreated, rr)
}

func (h *ReturnHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid return id")
		return
	}

	rr, err := h.refunds.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	body := map[string]interface{}{"return": rr}
	if ref, err := h.refunds.RefundFor(r.Context(), id); err == nil {
		body["refund"] = ref
	} else if pkgerrors.KindOf(err) != pkgerrors.KindNotFound {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, body)
}

// Complete marks the return's refund as paid out, closing the request.
func (h *ReturnHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid return id")
		return
	}

	ref, err := h.refunds.Complete(r.Context(), id)
	if err != nil {
		h.logger.Error("Refund completion failed", map[string]interface{}{
			"return_id": id,
			"error":     err.Error(),
		})
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, ref)
}

// List returns the review queue for one status, oldest first.
func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.ReturnStatusOpened
	if v := r.URL.Query().Get("status"); v != "" {
		status = domain.ReturnStatus(v)
	}

	limit, offset := pageParams(r)
	requests, err := h.refunds.List(r.Context(), status, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"returns": requests,
		"limit":   limit,
		"offset":  offset,
	})
}

type reviewReturnRequest struct {
	Decision       string          `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	LiableParty    string          `json:"liable_party" validate:"omitempty,oneof=CUSTOMER SELLER INTL_CARRIER CARGO_TRANSIT CARGO_MONGOLIA CARGO_ERLIAN UNDETERMINED"`
}

// Review applies the reviewer's decision. An approval on a paid invoice also
// revokes that invoice and its tax receipt.
func (h *ReturnHandler) Review(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid return id")
		return
	}

	var req reviewReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "validation failed")
		return
	}

	rr, err := h.refunds.Review(r.Context(), refund.ReviewRequest{
		ReturnID:       id,
		ReviewerID:     reviewerID,
		Decision:       req.Decision,
		ApprovedAmount: req.ApprovedAmount,
		LiableParty:    domain.LiableParty(req.LiableParty),
	})
	if err != nil {
		h.logger.Error("Return review failed", map[string]interface{}{
			"return_id": id,
			"error":     err.Error(),
		})
		respondServiceError(w, err)
		return
	}

	if rr.Status == domain.ReturnStatusRefundProcessing {
		h.revokeInvoice(r, rr.PackageID)
	}

	respondData(w, http.StatusOK, rr)
}

// revokeInvoice voids the package's paid invoice after an approved return.
// Best effort: the refund already stands on its own.
func (h *ReturnHandler) revokeInvoice(r *http.Request, packageID uuid.UUID) {
	inv, err := h.invoices.FindByPackage(r.Context(), packageID)
	if err != nil {
		if pkgerrors.KindOf(err) != pkgerrors.KindNotFound {
			h.logger.Warn("Failed to look up invoice for revocation", map[string]interface{}{
				"package_id": packageID,
				"error":      err.Error(),
			})
		}
		return
	}
	if inv.Status != domain.InvoiceStatusPaid {
		return
	}
	if err := h.invoices.Revoke(r.Context(), inv.ID); err != nil {
		h.logger.Warn("Failed to revoke invoice after return approval", map[string]interface{}{
			"invoice_id": inv.ID,
			"error":      err.Error(),
		})
	}
}
