package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/bruecke/pkg/api"
)

func TestHealthEndpoint(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/healthz")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "ok") {
		t.Errorf("body = %q, want to contain 'ok'", body)
	}
}

func TestModelsEndpoint(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/models")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var list api.ModelList
	decodeJSON(t, resp, &list)
	if list.Object != "list" {
		t.Errorf("object = %q, want list", list.Object)
	}
	if len(list.Data) != 1 || list.Data[0].ID != "mock-model" {
		t.Errorf("data = %+v, want the configured model", list.Data)
	}
}
