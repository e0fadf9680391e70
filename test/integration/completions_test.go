package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/bruecke/pkg/api"
)

func TestCompletionBasic(t *testing.T) {
	resp := postCompletion(t, map[string]any{
		"model": "mock-model",
		"user":  "alice",
		"messages": []map[string]any{
			{"role": "user", "content": "Hello"},
		},
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var completion api.ChatCompletion
	decodeJSON(t, resp, &completion)

	if completion.Object != "chat.completion" {
		t.Errorf("object = %q", completion.Object)
	}
	if !strings.HasPrefix(completion.ID, "chatcmpl-") {
		t.Errorf("id = %q, want chatcmpl- prefix", completion.ID)
	}
	if len(completion.Choices) != 1 {
		t.Fatalf("len(choices) = %d, want 1", len(completion.Choices))
	}
	choice := completion.Choices[0]
	if choice.FinishReason != "stop" {
		t.Errorf("finish_reason = %q, want stop", choice.FinishReason)
	}
	content, ok := choice.Message.Content.(string)
	if !ok || !strings.Contains(content, "alice") {
		t.Errorf("content = %v, want greeting for forwarded user", choice.Message.Content)
	}
}

func TestCompletionForwardsHistory(t *testing.T) {
	resp := postCompletion(t, map[string]any{
		"model": "mock-model",
		"messages": []map[string]any{
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
			{"role": "user", "content": "and now?"},
		},
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var completion api.ChatCompletion
	decodeJSON(t, resp, &completion)

	// The mock echoes the history length; three turns precede the query.
	content, _ := completion.Choices[0].Message.Content.(string)
	if !strings.Contains(content, "history: 3") {
		t.Errorf("content = %q, want history length 3 echoed", content)
	}
}

func TestCompletionVisionviaImageObject(t *testing.T) {
	resp := postCompletion(t, map[string]any{
		"model": "mock-model",
		"messages": []map[string]any{
			{"role": "user", "content": map[string]any{
				"content_type": "image",
				"url":          "https://example.com/photo.jpg",
			}},
		},
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var completion api.ChatCompletion
	decodeJSON(t, resp, &completion)

	content, _ := completion.Choices[0].Message.Content.(string)
	if !strings.Contains(content, "image") {
		t.Errorf("content = %q, want vision answer", content)
	}
}
