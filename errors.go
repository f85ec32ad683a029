package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/rbacauth/internal/apperr"
	"github.com/example/rbacauth/internal/logging"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Status  bool   `json:"status"`
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Verify  bool   `json:"verify"`
	Refresh bool   `json:"refresh"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

// writeAppError renders a service error. Anything that is not an
// *apperr.Error is logged and reported as an internal error.
func writeAppError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Internal(err)
	}
	if e.Code == apperr.CodeInternal {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, e.Code.HTTPStatus(), APIError{
		Code:    string(e.Code),
		Message: e.Message,
		Verify:  e.Verify,
		Refresh: e.Refresh,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"status": true,
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"status":  true,
		"message": message,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	return nil
}
