package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error envelope for all API errors.
type ErrorResponse struct {
	Message string `json:"message"`
}

// MessageResponse is the envelope for plain acknowledgement responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	//nolint:wrapcheck
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes the uniform JSON error envelope. Internal details are
// never included; callers log them separately.
func WriteError(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Message: message})
}
