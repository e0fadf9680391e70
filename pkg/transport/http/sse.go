package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/bruecke/pkg/api"
	"github.com/rhuss/bruecke/pkg/transport"
)

// writerState tracks the state of a chunkResponseWriter.
type writerState int

const (
	writerIdle      writerState = iota // no writes yet
	writerStreaming                    // at least one SSE payload written
	writerCompleted                    // sentinel sent or WriteCompletion called
)

// chunkResponseWriter implements transport.ResponseWriter for HTTP. It
// handles both streaming (SSE) and non-streaming (JSON) output and
// guarantees at most one terminal sentinel per connection.
type chunkResponseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.ResponseWriter = (*chunkResponseWriter)(nil)

// newChunkResponseWriter creates a ResponseWriter wrapping an
// http.ResponseWriter.
func newChunkResponseWriter(w http.ResponseWriter) *chunkResponseWriter {
	return &chunkResponseWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteChunk sends one SSE payload as `data: {json}\n\n` and flushes
// immediately. The first write commits the SSE headers.
func (s *chunkResponseWriter) WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}
	return s.writeData(data)
}

// WriteErrorEvent sends the error envelope as an SSE payload. Only the
// message and type reach the client.
func (s *chunkResponseWriter) WriteErrorEvent(ctx context.Context, apiErr *api.APIError) error {
	envelope := api.ErrorResponse{Error: &api.APIError{
		Type:    apiErr.Type,
		Message: apiErr.Message,
	}}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal error event: %w", err)
	}
	return s.writeData(data)
}

// WriteSentinel sends the literal `data: [DONE]` terminator and completes
// the stream. Subsequent writes fail.
func (s *chunkResponseWriter) WriteSentinel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write sentinel: writer is completed")
	}
	s.ensureStreamHeaders()

	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write sentinel: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush sentinel: %w", err)
	}
	s.state = writerCompleted
	return nil
}

// WriteCompletion sends a complete non-streaming JSON response. Mutually
// exclusive with the stream writes.
func (s *chunkResponseWriter) WriteCompletion(ctx context.Context, resp *api.ChatCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerStreaming {
		return errors.New("cannot write completion: streaming has already started")
	}
	if s.state == writerCompleted {
		return errors.New("cannot write completion: writer is completed")
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted

	if err := json.NewEncoder(s.w).Encode(resp); err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}
	return nil
}

// writeData emits one `data: ...\n\n` frame.
func (s *chunkResponseWriter) writeData(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write: writer is completed")
	}
	s.ensureStreamHeaders()

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	s.state = writerStreaming
	return nil
}

// ensureStreamHeaders commits the SSE headers on the first stream write.
// Callers must hold s.mu.
func (s *chunkResponseWriter) ensureStreamHeaders() {
	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}
}

// hasStartedStreaming reports whether SSE headers are already committed,
// which decides how a handler error can still be reported.
func (s *chunkResponseWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle && s.w.Header().Get("Content-Type") == "text/event-stream"
}
