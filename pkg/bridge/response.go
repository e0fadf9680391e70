package bridge

import (
	"fmt"

	"github.com/rhuss/bruecke/pkg/api"
	"github.com/rhuss/bruecke/pkg/upstream"
)

// TranslateResponse converts a non-streaming upstream reply into the
// OpenAI completion document. A non-zero application status inside the
// body fails regardless of the HTTP status; a body with no qualifying
// answer message is a protocol violation.
func TranslateResponse(model string, resp *upstream.ChatResponse) (*api.ChatCompletion, error) {
	if resp.Code != 0 {
		return nil, api.NewUpstreamApplicationError(fmt.Sprintf("%d", resp.Code), resp.Msg)
	}

	answer := findAnswer(resp.Messages)
	if answer == nil {
		return nil, api.NewUpstreamProtocolError("upstream response contains no answer message")
	}

	var content any = answer.Content
	if answer.ContentType == upstream.ContentTypeImage {
		content = api.ImageEnvelope{
			Content: imagePlaceholder,
			Image: api.ImageDelta{
				URL:  answer.Content,
				Type: answer.MimeType,
			},
		}
	}

	return &api.ChatCompletion{
		ID:      api.NewCompletionID(),
		Object:  "chat.completion",
		Created: api.Now(),
		Model:   model,
		Choices: []api.Choice{{
			Index: 0,
			Message: api.ResponseMessage{
				Role:    api.RoleAssistant,
				Content: content,
			},
			FinishReason: api.FinishReasonStop,
		}},
		Usage: api.PlaceholderUsage,
	}, nil
}

// findAnswer returns the first message qualifying as the answer, or nil.
func findAnswer(messages []upstream.AnswerMessage) *upstream.AnswerMessage {
	for i := range messages {
		if messages[i].IsAnswer() {
			return &messages[i]
		}
	}
	return nil
}
