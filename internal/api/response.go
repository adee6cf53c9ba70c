package api

import (
	"encoding/json"
	"net/http"
)

// APIError is the error envelope written for every failed request.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

// NewAPIError defaults to 400 when code is zero.
func NewAPIError(code int, message string) *APIError {
	if code == 0 {
		code = http.StatusBadRequest
	}
	return &APIError{Code: code, Message: message}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeRaw writes an already-serialized JSON document unchanged.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, apiErr *APIError) {
	writeJSON(w, apiErr.Code, apiErr)
}
