package api

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAPIErrorError(t *testing.T) {
	err := NewValidationError("messages[0].role", `unknown role "operator"`)
	if got := err.Error(); !strings.Contains(got, "messages[0].role") {
		t.Errorf("Error() = %q, want param included", got)
	}

	plain := NewServerError("boom")
	if got := plain.Error(); got != "server_error: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorResponseEnvelope(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{
		Error: NewUpstreamApplicationError("7001", "bot execution failed"),
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var m map[string]map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	inner := m["error"]
	if inner["type"] != "upstream_error" {
		t.Errorf("type = %v, want upstream_error", inner["type"])
	}
	if inner["code"] != "7001" {
		t.Errorf("code = %v, want 7001", inner["code"])
	}
	if inner["message"] != "bot execution failed" {
		t.Errorf("message = %v", inner["message"])
	}
	if _, leaked := inner["Status"]; leaked {
		t.Error("internal status field leaked into the wire envelope")
	}
}

func TestAuthErrorResponseShape(t *testing.T) {
	data, err := json.Marshal(AuthErrorResponse{Code: 401, ErrMsg: "missing bearer token"})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"code":401,"errmsg":"missing bearer token"}`
	if string(data) != want {
		t.Errorf("envelope = %s, want %s", data, want)
	}
}

func TestNewCompletionIDUnique(t *testing.T) {
	a, b := NewCompletionID(), NewCompletionID()
	if !strings.HasPrefix(a, "chatcmpl-") {
		t.Errorf("id = %q, want chatcmpl- prefix", a)
	}
	if a == b {
		t.Error("consecutive IDs collide")
	}
}
