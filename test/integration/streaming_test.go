package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/bruecke/pkg/api"
)

func TestStreamingCompletion(t *testing.T) {
	resp := postCompletion(t, map[string]any{
		"model":  "mock-model",
		"stream": true,
		"messages": []map[string]any{
			{"role": "user", "content": "Hello"},
		},
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	payloads := parseSSEPayloads(t, resp)
	if len(payloads) == 0 {
		t.Fatal("no SSE payloads received")
	}
	if payloads[len(payloads)-1] != "[DONE]" {
		t.Fatalf("last payload = %q, want [DONE]", payloads[len(payloads)-1])
	}

	// Reassemble the text and verify the terminal chunk.
	var text strings.Builder
	var sawFinish bool
	for _, payload := range payloads[:len(payloads)-1] {
		var chunk api.ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.Fatalf("parsing chunk %q: %v", payload, err)
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Errorf("object = %q", chunk.Object)
		}
		if len(chunk.Choices) != 1 {
			t.Fatalf("len(choices) = %d", len(chunk.Choices))
		}
		choice := chunk.Choices[0]
		text.WriteString(choice.Delta.Content)
		if choice.FinishReason != nil {
			if *choice.FinishReason != "stop" {
				t.Errorf("finish_reason = %q, want stop", *choice.FinishReason)
			}
			sawFinish = true
		}
	}

	if got := text.String(); got != "Hello!" {
		t.Errorf("assembled text = %q, want %q", got, "Hello!")
	}
	if !sawFinish {
		t.Error("no terminal chunk with finish_reason before [DONE]")
	}
}

func TestStreamingChunksShareID(t *testing.T) {
	resp := postCompletion(t, map[string]any{
		"model":  "mock-model",
		"stream": true,
		"messages": []map[string]any{
			{"role": "user", "content": "Hello"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	payloads := parseSSEPayloads(t, resp)
	var firstID string
	for _, payload := range payloads {
		if payload == "[DONE]" {
			continue
		}
		var chunk api.ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.Fatalf("parsing chunk: %v", err)
		}
		if firstID == "" {
			firstID = chunk.ID
			continue
		}
		if chunk.ID != firstID {
			t.Errorf("chunk id = %q, want %q shared by all chunks", chunk.ID, firstID)
		}
	}
}

func TestStreamingUpstreamError(t *testing.T) {
	resp := postCompletion(t, map[string]any{
		"model":  "mock-model",
		"stream": true,
		"messages": []map[string]any{
			{"role": "user", "content": "please fail"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with in-band error", resp.StatusCode)
	}

	payloads := parseSSEPayloads(t, resp)
	if len(payloads) != 2 {
		t.Fatalf("payloads = %v, want error envelope plus [DONE]", payloads)
	}

	var envelope api.ErrorResponse
	if err := json.Unmarshal([]byte(payloads[0]), &envelope); err != nil {
		t.Fatalf("parsing error payload: %v", err)
	}
	// The detailed nested reason wins over the generic top-level message.
	if envelope.Error == nil || envelope.Error.Message != "bot execution failed" {
		t.Errorf("error = %+v, want detailed upstream reason", envelope.Error)
	}
	if payloads[1] != "[DONE]" {
		t.Errorf("final payload = %q, want [DONE]", payloads[1])
	}
}
