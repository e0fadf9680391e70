package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role values accepted on inbound messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatCompletionRequest is the body of POST /v1/chat/completions.
// For multipart requests the same fields arrive as form fields, with the
// uploaded file attached out of band (see transport).
type ChatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	User     string    `json:"user,omitempty"`
	Stream   bool      `json:"stream,omitempty"`
}

// Message is one inbound conversation turn. Content is polymorphic over
// the accepted shapes and is discriminated at parse time.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// ContentShape identifies which of the accepted content shapes a message
// carries. The set is closed; anything else fails to parse.
type ContentShape int

const (
	// ShapeText is a plain string content value.
	ShapeText ContentShape = iota
	// ShapeImageObject is an object with content_type "image" carrying a
	// URL or inline base64 payload.
	ShapeImageObject
	// ShapeParts is a typed list of content parts (text and image_url).
	ShapeParts
)

// Content is the tagged union over the accepted message content shapes.
// Exactly one of Text, Image, or Parts is meaningful, selected by Shape.
type Content struct {
	Shape ContentShape
	Text  string
	Image *ImageSource
	Parts []ContentPart
}

// ImageSource describes an image-object content value. URL may be a
// regular http(s) URL or a data URL with inline base64 bytes.
type ImageSource struct {
	ContentType string `json:"content_type"`
	URL         string `json:"url,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

// ContentPart is one entry of a typed content part list, following the
// OpenAI vision request shape.
type ContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *ImageURLPart `json:"image_url,omitempty"`
}

// ImageURLPart carries the URL of an image_url content part.
type ImageURLPart struct {
	URL string `json:"url"`
}

// UnmarshalJSON discriminates the content shape from the JSON token type
// and, for objects, from which fields are present. Unrecognized shapes are
// rejected rather than silently coerced.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		c.Shape = ShapeText
		c.Text = ""
		return nil
	}

	switch trimmed[0] {
	case '"':
		c.Shape = ShapeText
		return json.Unmarshal(trimmed, &c.Text)

	case '{':
		var img ImageSource
		if err := json.Unmarshal(trimmed, &img); err != nil {
			return err
		}
		if img.ContentType != "image" {
			return fmt.Errorf("unsupported content object (content_type %q)", img.ContentType)
		}
		c.Shape = ShapeImageObject
		c.Image = &img
		return nil

	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		c.Shape = ShapeParts
		c.Parts = parts
		return nil

	default:
		return fmt.Errorf("unsupported message content shape")
	}
}

// MarshalJSON renders the content back into its source shape. Used mainly
// by tests and request logging.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Shape {
	case ShapeImageObject:
		return json.Marshal(c.Image)
	case ShapeParts:
		return json.Marshal(c.Parts)
	default:
		return json.Marshal(c.Text)
	}
}

// TextContent returns a Content holding a plain text value.
func TextContent(s string) Content {
	return Content{Shape: ShapeText, Text: s}
}

// ImageContent returns a Content holding an image object value.
func ImageContent(img *ImageSource) Content {
	return Content{Shape: ShapeImageObject, Image: img}
}

// ChatCompletion is the non-streaming response document.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion choice. The gateway always emits exactly one,
// at index 0.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a non-streaming completion.
// Content is a plain string for text answers, or an ImageEnvelope for
// image-typed answers.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ImageEnvelope is the compact content form used when the upstream answer
// is an image: a placeholder text plus the upstream-served image reference.
// The gateway never re-fetches or re-encodes the image bytes.
type ImageEnvelope struct {
	Content string     `json:"content"`
	Image   ImageDelta `json:"image"`
}

// Usage mirrors the OpenAI usage block. The upstream does not report token
// counts, so the values are fixed placeholders.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PlaceholderUsage is the usage block attached to every completion.
var PlaceholderUsage = Usage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110}

// ChatCompletionChunk is one streaming SSE payload.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is the single choice of a streaming chunk. FinishReason is
// null while streaming and "stop" on the terminal chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the partial content of a streaming chunk.
type Delta struct {
	Role    string      `json:"role,omitempty"`
	Content string      `json:"content,omitempty"`
	Image   *ImageDelta `json:"image,omitempty"`
}

// ImageDelta references an image returned by the upstream.
type ImageDelta struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Model is one entry of the GET /v1/models listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the GET /v1/models response.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// FinishReasonStop is the terminal finish_reason value.
const FinishReasonStop = "stop"

// StopReason returns a pointer to the "stop" finish reason, for use in
// terminal chunk choices.
func StopReason() *string {
	s := FinishReasonStop
	return &s
}
