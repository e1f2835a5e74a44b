package handler

import (
	"net/http"
	"strconv"

	"cargopay/internal/fund"
)

type FundHandler struct {
	service *fund.Service
	logger  Logger
}

func NewFundHandler(service *fund.Service, log Logger) *FundHandler {
	return &FundHandler{service: service, logger: log}
}

// Balance reports the risk fund's current running balance.
func (h *FundHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context())
	if err != nil {
		h.logger.Error("Failed to read fund balance", map[string]interface{}{"error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"balance": balance,
	})
}

// Verify replays the whole ledger and confirms the balance chain.
func (h *FundHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ok, err := h.service.VerifyChain(r.Context())
	if err != nil {
		h.logger.Error("Fund chain verification failed", map[string]interface{}{"error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"chain_intact": ok,
	})
}

// Transactions lists fund ledger rows, newest first.
func (h *FundHandler) Transactions(w http.ResponseWriter, r *http.Request) {
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

	txs, err := h.service.Transactions(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}
