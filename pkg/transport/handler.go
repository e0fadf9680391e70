package transport

import (
	"context"

	"github.com/rhuss/bruecke/pkg/api"
	"github.com/rhuss/bruecke/pkg/uploads"
)

// CompletionRequest is one decoded inbound request. Token is the caller's
// bearer value, forwarded verbatim to the upstream. Attachment is non-nil
// only for multipart requests carrying an uploaded image.
type CompletionRequest struct {
	Request    *api.ChatCompletionRequest
	Token      string
	Attachment *uploads.Attachment
}

// StreamWriter emits the streaming half of a response: OpenAI chunk
// payloads, the error envelope, and the terminal sentinel.
type StreamWriter interface {
	// WriteChunk emits one SSE chunk payload.
	WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error

	// WriteErrorEvent emits the error envelope as an SSE payload. Used for
	// mid-stream upstream errors, after response headers are committed.
	WriteErrorEvent(ctx context.Context, apiErr *api.APIError) error

	// WriteSentinel emits the terminal [DONE] marker and completes the
	// stream. Subsequent writes fail.
	WriteSentinel(ctx context.Context) error
}

// ResponseWriter is the full outbound contract: either a sequence of
// stream writes or one complete JSON document, never both.
type ResponseWriter interface {
	StreamWriter

	// WriteCompletion sends the complete non-streaming response document.
	WriteCompletion(ctx context.Context, resp *api.ChatCompletion) error
}

// CompletionHandler is the core handler contract. The implementation
// receives a decoded request and writes the result (streamed chunks or a
// complete document) to the ResponseWriter.
type CompletionHandler interface {
	CreateCompletion(ctx context.Context, req *CompletionRequest, w ResponseWriter) error
}

// CompletionHandlerFunc adapts an ordinary function to a CompletionHandler.
type CompletionHandlerFunc func(ctx context.Context, req *CompletionRequest, w ResponseWriter) error

// CreateCompletion calls f(ctx, req, w).
func (f CompletionHandlerFunc) CreateCompletion(ctx context.Context, req *CompletionRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}
