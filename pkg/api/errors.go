package api

import "fmt"

// ErrorType represents the category of a gateway error. Each category has
// a fixed HTTP status mapping in the transport layer.
type ErrorType string

const (
	// ErrorTypeValidation covers malformed or unsupported inbound request
	// shapes. Maps to 400.
	ErrorTypeValidation ErrorType = "invalid_request_error"

	// ErrorTypeAuth covers missing or malformed bearer tokens. Maps to 401
	// with the {code, errmsg} envelope.
	ErrorTypeAuth ErrorType = "auth_error"

	// ErrorTypeConfiguration covers unresolvable model routing (no table
	// entry and no default). Maps to 500.
	ErrorTypeConfiguration ErrorType = "configuration_error"

	// ErrorTypeUpstreamApplication covers a non-success status reported
	// inside a 2xx upstream response body. Maps to 500.
	ErrorTypeUpstreamApplication ErrorType = "upstream_error"

	// ErrorTypeUpstreamTransport covers non-2xx upstream HTTP responses and
	// network failures. Maps to the upstream status when known, 500 otherwise.
	ErrorTypeUpstreamTransport ErrorType = "upstream_transport_error"

	// ErrorTypeUpstreamTimeout covers an exceeded upstream deadline on the
	// non-streaming path. Maps to 504.
	ErrorTypeUpstreamTimeout ErrorType = "upstream_timeout"

	// ErrorTypeUpstreamProtocol covers upstream responses that violate the
	// expected schema, e.g. no qualifying answer message. Maps to 500.
	ErrorTypeUpstreamProtocol ErrorType = "upstream_protocol_error"

	// ErrorTypeServer covers everything else. Maps to 500.
	ErrorTypeServer ErrorType = "server_error"
)

// APIError is a structured gateway error. Status, when non-zero, overrides
// the type-derived HTTP status (used to pass through upstream status codes).
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
	Status  int       `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError in the OpenAI-style top-level envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// AuthErrorResponse is the envelope for authentication failures. It keeps
// the legacy {code, errmsg} shape rather than the OpenAI error object.
type AuthErrorResponse struct {
	Code   int    `json:"code"`
	ErrMsg string `json:"errmsg"`
}

// NewValidationError creates an APIError for an invalid request.
func NewValidationError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeValidation, Param: param, Message: message}
}

// NewAuthError creates an APIError for a missing or malformed bearer token.
func NewAuthError(message string) *APIError {
	return &APIError{Type: ErrorTypeAuth, Message: message}
}

// NewConfigurationError creates an APIError for unresolvable model routing.
func NewConfigurationError(message string) *APIError {
	return &APIError{Type: ErrorTypeConfiguration, Message: message}
}

// NewUpstreamApplicationError creates an APIError carrying an upstream
// application-level failure reported inside a 2xx body.
func NewUpstreamApplicationError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeUpstreamApplication, Code: code, Message: message}
}

// NewUpstreamTransportError creates an APIError for a failed upstream call.
// status is the upstream HTTP status, or zero for network-level failures.
func NewUpstreamTransportError(status int, message string) *APIError {
	return &APIError{Type: ErrorTypeUpstreamTransport, Message: message, Status: status}
}

// NewUpstreamTimeoutError creates an APIError for an exceeded upstream
// deadline.
func NewUpstreamTimeoutError(message string) *APIError {
	return &APIError{Type: ErrorTypeUpstreamTimeout, Message: message}
}

// NewUpstreamProtocolError creates an APIError for a schema-violating
// upstream response.
func NewUpstreamProtocolError(message string) *APIError {
	return &APIError{Type: ErrorTypeUpstreamProtocol, Message: message}
}

// NewServerError creates an APIError for internal failures.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServer, Message: message}
}
