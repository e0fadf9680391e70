package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/bruecke/pkg/api"
	"github.com/rhuss/bruecke/pkg/debug"
	"github.com/rhuss/bruecke/pkg/observability"
	"github.com/rhuss/bruecke/pkg/transport"
	"github.com/rhuss/bruecke/pkg/upstream"
)

// frameMarker prefixes every event-bearing line of the upstream stream.
const frameMarker = "data:"

// imagePlaceholder is the literal content emitted alongside an image
// reference, since OpenAI deltas always carry a content string.
const imagePlaceholder = "[image]"

// StreamState is the lifecycle state of a StreamBridge.
type StreamState int

const (
	// StateAwaitingFrames means no chunk has been emitted yet.
	StateAwaitingFrames StreamState = iota
	// StateEmitting means at least one chunk has been written.
	StateEmitting
	// StateTerminated means the terminal sequence was written (or the
	// stream was abandoned); all further input is discarded.
	StateTerminated
)

// StreamBridge re-frames one upstream streamed response into OpenAI
// chunks. It is per-connection state: created when the streamed response
// starts, discarded when it ends. Feed is the single entry point and is
// independent of how the transport delivers bytes.
type StreamBridge struct {
	id      string
	model   string
	created int64

	buf    FrameBuffer
	state  StreamState
	w      transport.StreamWriter
	logger *slog.Logger
	chunks int
}

// NewStreamBridge creates a bridge writing chunks for the given model to w.
func NewStreamBridge(model string, w transport.StreamWriter, logger *slog.Logger) *StreamBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamBridge{
		id:      api.NewCompletionID(),
		model:   model,
		created: api.Now(),
		w:       w,
		logger:  logger,
	}
}

// State returns the current lifecycle state.
func (b *StreamBridge) State() StreamState {
	return b.state
}

// Feed consumes one arrival of upstream bytes, draining every line it
// completes. Chunks are emitted in the exact order their source lines
// appeared; nothing is batched or reordered. A write error (client gone)
// terminates the bridge and is returned to stop the driver.
func (b *StreamBridge) Feed(ctx context.Context, p []byte) error {
	if b.state == StateTerminated {
		return nil
	}

	for _, line := range b.buf.Feed(p) {
		if err := b.handleLine(ctx, line); err != nil {
			return err
		}
		if b.state == StateTerminated {
			b.buf.Reset()
			return nil
		}
	}
	return nil
}

// handleLine processes one complete upstream line: strip the frame marker,
// drop anything that is not a JSON object, and dispatch by event kind.
// Malformed lines are dropped silently; one corrupt frame must not take
// down the stream.
func (b *StreamBridge) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	debug.Raw("streaming", line)
	if !strings.HasPrefix(line, frameMarker) {
		return nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, frameMarker))
	if !strings.HasPrefix(payload, "{") {
		return nil
	}

	var event upstream.StreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		b.logger.Debug("dropping malformed stream frame",
			"error", err.Error(),
			"payload", truncate(payload, 200),
		)
		return nil
	}

	switch event.Event {
	case upstream.EventMessage:
		return b.handleMessage(ctx, event.Message)

	case upstream.EventDone:
		return b.terminate(ctx)

	case upstream.EventError:
		return b.terminateWithError(ctx, &event)

	case upstream.EventPing:
		return nil

	default:
		// Unrecognized kinds are an extensibility point of the upstream
		// protocol, not an error.
		return nil
	}
}

// handleMessage emits one chunk for a qualifying answer message. Empty
// content is a no-op upstream tick and is swallowed.
func (b *StreamBridge) handleMessage(ctx context.Context, msg *upstream.AnswerMessage) error {
	if msg == nil || !msg.IsAnswer() || msg.Content == "" {
		return nil
	}

	delta := api.Delta{Content: msg.Content}
	if msg.ContentType == upstream.ContentTypeImage {
		delta = api.Delta{
			Content: imagePlaceholder,
			Image: &api.ImageDelta{
				URL:  msg.Content,
				Type: msg.MimeType,
			},
		}
	}

	chunk := &api.ChatCompletionChunk{
		ID:      b.id,
		Object:  "chat.completion.chunk",
		Created: b.created,
		Model:   b.model,
		Choices: []api.ChunkChoice{{
			Index: 0,
			Delta: delta,
		}},
	}

	if err := b.w.WriteChunk(ctx, chunk); err != nil {
		b.state = StateTerminated
		return err
	}
	b.state = StateEmitting
	b.chunks++
	observability.ChunksEmittedTotal.WithLabelValues(b.model).Inc()
	return nil
}

// terminate emits the terminal chunk and the sentinel, then stops. At most
// one terminal sequence is ever written per connection.
func (b *StreamBridge) terminate(ctx context.Context) error {
	chunk := &api.ChatCompletionChunk{
		ID:      b.id,
		Object:  "chat.completion.chunk",
		Created: b.created,
		Model:   b.model,
		Choices: []api.ChunkChoice{{
			Index:        0,
			Delta:        api.Delta{},
			FinishReason: api.StopReason(),
		}},
	}

	err := b.w.WriteChunk(ctx, chunk)
	if err == nil {
		err = b.w.WriteSentinel(ctx)
	}
	b.state = StateTerminated
	return err
}

// terminateWithError emits the error envelope and the sentinel, then
// stops. The nested detailed reason is preferred over the top-level
// message when both are present.
func (b *StreamBridge) terminateWithError(ctx context.Context, event *upstream.StreamEvent) error {
	apiErr := api.NewUpstreamApplicationError(
		fmt.Sprintf("%d", event.Code),
		event.ErrorMessage(),
	)

	err := b.w.WriteErrorEvent(ctx, apiErr)
	if err == nil {
		err = b.w.WriteSentinel(ctx)
	}
	b.state = StateTerminated
	return err
}

// Run drives the bridge from an upstream body reader until the stream
// terminates. Upstream EOF without a prior done or error event closes the
// outbound stream without a terminal chunk (degraded but non-fatal). A
// transport-level read error stops immediately; no further chunks are
// attempted.
func (b *StreamBridge) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			b.state = StateTerminated
			return nil
		}

		n, err := r.Read(buf)
		if n > 0 {
			if werr := b.Feed(ctx, buf[:n]); werr != nil {
				// Client-side write failure; stop without further writes.
				b.logger.Debug("stopping stream after write failure", "error", werr.Error())
				return nil
			}
			if b.state == StateTerminated {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				b.logger.Debug("upstream closed before done event", "chunks", b.chunks)
				b.state = StateTerminated
				return nil
			}
			if ctx.Err() != nil {
				b.state = StateTerminated
				return nil
			}
			b.state = StateTerminated
			b.logger.Warn("upstream stream read error", "error", err.Error())
			return nil
		}
	}
}

// truncate limits a string for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
