package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/bruecke/pkg/api"
	"github.com/rhuss/bruecke/pkg/transport"
	"github.com/rhuss/bruecke/pkg/uploads"
)

func echoHandler(t *testing.T) transport.CompletionHandler {
	t.Helper()
	return transport.CompletionHandlerFunc(func(ctx context.Context, req *transport.CompletionRequest, w transport.ResponseWriter) error {
		return w.WriteCompletion(ctx, &api.ChatCompletion{
			ID:     "chatcmpl-echo",
			Object: "chat.completion",
			Model:  req.Request.Model,
			Choices: []api.Choice{{
				Message:      api.ResponseMessage{Role: "assistant", Content: "echo"},
				FinishReason: api.FinishReasonStop,
			}},
		})
	})
}

func newTestAdapter(t *testing.T, handler transport.CompletionHandler, store *uploads.Store) http.Handler {
	t.Helper()
	return NewAdapter(handler, store, []string{"gpt-test"}, DefaultConfig()).Handler()
}

func postJSON(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatCompletionRequiresBearer(t *testing.T) {
	h := newTestAdapter(t, echoHandler(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp api.AuthErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Code != 401 || resp.ErrMsg == "" {
		t.Errorf("auth envelope = %+v, want {code:401, errmsg}", resp)
	}
}

func TestChatCompletionRejectsMalformedBearer(t *testing.T) {
	h := newTestAdapter(t, echoHandler(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Basic dXNlcg==")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestChatCompletionNonStreaming(t *testing.T) {
	var gotToken string
	handler := transport.CompletionHandlerFunc(func(ctx context.Context, req *transport.CompletionRequest, w transport.ResponseWriter) error {
		gotToken = req.Token
		return w.WriteCompletion(ctx, &api.ChatCompletion{ID: "chatcmpl-1", Object: "chat.completion"})
	})
	h := newTestAdapter(t, handler, nil)

	rec := postJSON(t, h, `{"model":"gpt-test","messages":[{"role":"user","content":"hi"}]}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotToken != "tok" {
		t.Errorf("token = %q, want bearer value", gotToken)
	}
	var got api.ChatCompletion
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.ID != "chatcmpl-1" {
		t.Errorf("id = %q", got.ID)
	}
}

func TestChatCompletionStreaming(t *testing.T) {
	handler := transport.CompletionHandlerFunc(func(ctx context.Context, req *transport.CompletionRequest, w transport.ResponseWriter) error {
		if err := w.WriteChunk(ctx, &api.ChatCompletionChunk{
			ID:      "chatcmpl-s",
			Object:  "chat.completion.chunk",
			Choices: []api.ChunkChoice{{Delta: api.Delta{Content: "hi"}}},
		}); err != nil {
			return err
		}
		return w.WriteSentinel(ctx)
	})
	h := newTestAdapter(t, handler, nil)

	rec := postJSON(t, h, `{"model":"gpt-test","stream":true,"messages":[{"role":"user","content":"hi"}]}`, nil)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"content":"hi"`) {
		t.Errorf("body missing chunk: %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("body missing sentinel: %q", body)
	}
}

func TestChatCompletionHandlerErrorBeforeStreaming(t *testing.T) {
	handler := transport.CompletionHandlerFunc(func(ctx context.Context, req *transport.CompletionRequest, w transport.ResponseWriter) error {
		return api.NewUpstreamTimeoutError("upstream call timed out")
	})
	h := newTestAdapter(t, handler, nil)

	rec := postJSON(t, h, `{"model":"gpt-test","messages":[]}`, nil)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Error.Type != api.ErrorTypeUpstreamTimeout {
		t.Errorf("type = %q", resp.Error.Type)
	}
}

func TestChatCompletionHandlerErrorMidStream(t *testing.T) {
	handler := transport.CompletionHandlerFunc(func(ctx context.Context, req *transport.CompletionRequest, w transport.ResponseWriter) error {
		if err := w.WriteChunk(ctx, &api.ChatCompletionChunk{ID: "x"}); err != nil {
			return err
		}
		return api.NewUpstreamProtocolError("stream broke")
	})
	h := newTestAdapter(t, handler, nil)

	rec := postJSON(t, h, `{"model":"gpt-test","stream":true,"messages":[]}`, nil)

	// Headers were committed, so the failure is delivered in-band.
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with in-band error", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "stream broke") {
		t.Errorf("body missing error envelope: %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("body missing sentinel after error: %q", body)
	}
}

func TestChatCompletionInvalidJSON(t *testing.T) {
	h := newTestAdapter(t, echoHandler(t), nil)

	rec := postJSON(t, h, `{"model":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatCompletionBodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodySize = 64
	h := NewAdapter(echoHandler(t), nil, nil, cfg).Handler()

	big := `{"model":"gpt-test","messages":[{"role":"user","content":"` + strings.Repeat("x", 256) + `"}]}`
	rec := postJSON(t, h, big, nil)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestChatCompletionUnsupportedMediaType(t *testing.T) {
	h := newTestAdapter(t, echoHandler(t), nil)

	rec := postJSON(t, h, "model=x", map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestChatCompletionMultipart(t *testing.T) {
	store, err := uploads.New(t.TempDir(), "http://gw.example.com/files", slog.Default())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	var gotReq *transport.CompletionRequest
	handler := transport.CompletionHandlerFunc(func(ctx context.Context, req *transport.CompletionRequest, w transport.ResponseWriter) error {
		gotReq = req
		return w.WriteCompletion(ctx, &api.ChatCompletion{ID: "chatcmpl-m", Object: "chat.completion"})
	})
	h := newTestAdapter(t, handler, store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("model", "gpt-test")
	mw.WriteField("user", "bob")
	mw.WriteField("messages", `[{"role":"user","content":"what is this?"}]`)
	part, _ := mw.CreateFormFile("file", "photo.png")
	part.Write([]byte("fake png bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotReq == nil || gotReq.Attachment == nil {
		t.Fatal("handler did not receive the attachment")
	}
	if gotReq.Request.Model != "gpt-test" || gotReq.Request.User != "bob" {
		t.Errorf("form fields = %+v", gotReq.Request)
	}
	if len(gotReq.Request.Messages) != 1 {
		t.Errorf("len(messages) = %d, want 1", len(gotReq.Request.Messages))
	}
	if !strings.HasPrefix(gotReq.Attachment.URL, "http://gw.example.com/files/") {
		t.Errorf("attachment url = %q", gotReq.Attachment.URL)
	}
}

func TestChatCompletionMultipartWithoutStore(t *testing.T) {
	h := newTestAdapter(t, echoHandler(t), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("model", "gpt-test")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListModels(t *testing.T) {
	h := newTestAdapter(t, echoHandler(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list api.ModelList
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if list.Object != "list" || len(list.Data) != 1 || list.Data[0].ID != "gpt-test" {
		t.Errorf("list = %+v", list)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	h := newTestAdapter(t, echoHandler(t), nil)

	rec := postJSON(t, h, `{"model":"gpt-test","messages":[]}`, map[string]string{"X-Request-ID": "req-42"})

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want echoed value", got)
	}
}
