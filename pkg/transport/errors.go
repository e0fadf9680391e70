package transport

import (
	"encoding/json"
	"net/http"

	"github.com/rhuss/bruecke/pkg/api"
)

// HTTPStatusFromError maps an APIError to its HTTP status code. A non-zero
// Status on the error wins, so upstream HTTP failures pass their status
// through unchanged.
func HTTPStatusFromError(err *api.APIError) int {
	if err.Status != 0 {
		return err.Status
	}
	switch err.Type {
	case api.ErrorTypeValidation:
		return http.StatusBadRequest
	case api.ErrorTypeAuth:
		return http.StatusUnauthorized
	case api.ErrorTypeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case api.ErrorTypeUpstreamApplication,
		api.ErrorTypeUpstreamTransport,
		api.ErrorTypeUpstreamProtocol,
		api.ErrorTypeConfiguration,
		api.ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the OpenAI-style
// ErrorResponse envelope with an explicit status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error. Auth errors use their dedicated envelope shape.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	if apiErr.Type == api.ErrorTypeAuth {
		WriteAuthError(w, apiErr.Message)
		return
	}
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteAuthError writes the {code, errmsg} envelope used for
// authentication failures.
func WriteAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(api.AuthErrorResponse{
		Code:   http.StatusUnauthorized,
		ErrMsg: message,
	})
}
