package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rhuss/bruecke/pkg/api"
)

// mapHTTPError converts a non-2xx upstream response into an APIError that
// passes the upstream status through to the client. The body is forwarded
// as the error message when it yields one.
func mapHTTPError(resp *http.Response) *api.APIError {
	message := extractErrorMessage(resp.Body)
	if message == "" {
		message = fmt.Sprintf("upstream returned HTTP %d", resp.StatusCode)
	}
	return api.NewUpstreamTransportError(resp.StatusCode, message)
}

// mapNetworkError converts a network-level failure (connection refused,
// DNS, deadline) into an APIError. Deadline expiry is surfaced as a
// gateway timeout.
func mapNetworkError(err error) *api.APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewUpstreamTimeoutError("upstream call timed out")
	}
	return api.NewUpstreamTransportError(0, "upstream connection error: "+err.Error())
}

// errorBody is the error shape the upstream uses on non-2xx responses.
type errorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// extractErrorMessage tries to parse a bounded prefix of the body as the
// upstream error shape and returns its message, or the raw text when the
// body is not JSON.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && eb.Msg != "" {
		return eb.Msg
	}
	return string(data)
}
