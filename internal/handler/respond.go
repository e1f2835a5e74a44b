package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	pkgerrors "cargopay/pkg/errors"
)

// pageParams reads limit/offset query parameters with sane bounds.
func pageParams(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// Logger is the minimal logging surface handlers need.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, envelope{Success: false, Error: &errorBody{Code: code, Message: message}})
}

// respondServiceError maps the error taxonomy onto HTTP statuses. Invariant
// violations and unclassified errors surface as opaque 500s.
func respondServiceError(w http.ResponseWriter, err error) {
	var e *pkgerrors.Error
	if !errors.As(err, &e) {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	switch e.Kind {
	case pkgerrors.KindValidation:
		respondError(w, http.StatusBadRequest, e.Code, e.Message)
	case pkgerrors.KindNotFound:
		respondError(w, http.StatusNotFound, e.Code, e.Message)
	case pkgerrors.KindStateConflict:
		respondError(w, http.StatusConflict, e.Code, e.Message)
	case pkgerrors.KindExternalService:
		respondError(w, http.StatusBadGateway, e.Code, e.Message)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
