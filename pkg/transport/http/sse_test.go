package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/bruecke/pkg/api"
)

func TestWriteCompletionJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newChunkResponseWriter(rec)

	resp := &api.ChatCompletion{
		ID:     "chatcmpl-abc",
		Object: "chat.completion",
		Model:  "gpt-test",
		Choices: []api.Choice{{
			Message:      api.ResponseMessage{Role: "assistant", Content: "hi"},
			FinishReason: api.FinishReasonStop,
		}},
	}

	if err := rw.WriteCompletion(context.Background(), resp); err != nil {
		t.Fatalf("WriteCompletion error: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var got api.ChatCompletion
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.ID != "chatcmpl-abc" {
		t.Errorf("ID = %q", got.ID)
	}
}

func TestWriteChunkSSEFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newChunkResponseWriter(rec)

	chunk := &api.ChatCompletionChunk{
		ID:     "chatcmpl-abc",
		Object: "chat.completion.chunk",
		Model:  "gpt-test",
		Choices: []api.ChunkChoice{{
			Delta: api.Delta{Content: "Hello"},
		}},
	}

	if err := rw.WriteChunk(context.Background(), chunk); err != nil {
		t.Fatalf("WriteChunk error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: ") || !strings.HasSuffix(body, "\n\n") {
		t.Errorf("frame = %q, want data: prefix and blank-line terminator", body)
	}

	var got api.ChatCompletionChunk
	payload := strings.TrimSuffix(strings.TrimPrefix(body, "data: "), "\n\n")
	if err := json.Unmarshal([]byte(payload), &got); err != nil {
		t.Fatalf("payload parse error: %v", err)
	}
	if got.Choices[0].Delta.Content != "Hello" {
		t.Errorf("delta content = %q", got.Choices[0].Delta.Content)
	}
}

func TestWriteSentinelCompletesStream(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newChunkResponseWriter(rec)

	if err := rw.WriteSentinel(context.Background()); err != nil {
		t.Fatalf("WriteSentinel error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "data: [DONE]\n\n") {
		t.Errorf("body = %q, want [DONE] sentinel", rec.Body.String())
	}

	// Completed writer rejects everything.
	if err := rw.WriteSentinel(context.Background()); err == nil {
		t.Error("second sentinel accepted")
	}
	if err := rw.WriteChunk(context.Background(), &api.ChatCompletionChunk{}); err == nil {
		t.Error("chunk after sentinel accepted")
	}
	if err := rw.WriteCompletion(context.Background(), &api.ChatCompletion{}); err == nil {
		t.Error("completion after sentinel accepted")
	}
}

func TestWriteCompletionAfterStreamingFails(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newChunkResponseWriter(rec)

	if err := rw.WriteChunk(context.Background(), &api.ChatCompletionChunk{ID: "x"}); err != nil {
		t.Fatalf("WriteChunk error: %v", err)
	}
	if err := rw.WriteCompletion(context.Background(), &api.ChatCompletion{}); err == nil {
		t.Error("completion accepted after streaming started")
	}
}

func TestWriteErrorEventEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newChunkResponseWriter(rec)

	apiErr := api.NewUpstreamApplicationError("7001", "bot execution failed")
	apiErr.Param = "internal-detail"
	if err := rw.WriteErrorEvent(context.Background(), apiErr); err != nil {
		t.Fatalf("WriteErrorEvent error: %v", err)
	}

	payload := strings.TrimSuffix(strings.TrimPrefix(rec.Body.String(), "data: "), "\n\n")
	var resp api.ErrorResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("payload parse error: %v", err)
	}
	if resp.Error.Message != "bot execution failed" {
		t.Errorf("message = %q", resp.Error.Message)
	}
	// Only the message and type are forwarded on the stream.
	if resp.Error.Param != "" {
		t.Errorf("param leaked into stream error: %q", resp.Error.Param)
	}
}
