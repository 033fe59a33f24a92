package api

import (
	"encoding/json"
	"net/http"

	"github.com/kenneth/pq-encryption-service/internal/crypto"
	"github.com/kenneth/pq-encryption-service/internal/middleware"
)

// ErrorResponse is the JSON error body. Kind is machine-checkable; the
// message never carries secret material.
type ErrorResponse struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// statusForKind maps error kinds to HTTP status codes.
func statusForKind(kind crypto.ErrorKind) int {
	switch kind {
	case crypto.KindValidation, crypto.KindFormat:
		return http.StatusBadRequest
	case crypto.KindAsymmetric, crypto.KindSymmetric, crypto.KindKDF, crypto.KindOperation:
		return http.StatusUnprocessableEntity
	case crypto.KindKeyManager:
		return http.StatusServiceUnavailable
	case crypto.KindConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a typed JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := crypto.KindOf(err)
	if kind == "" {
		kind = crypto.KindOperation
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(kind))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Kind:      string(kind),
		Message:   err.Error(),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
