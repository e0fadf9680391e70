package bridge

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/rhuss/bruecke/pkg/observability"
	"github.com/rhuss/bruecke/pkg/transport"
	"github.com/rhuss/bruecke/pkg/upstream"
)

// UpstreamClient is the slice of the upstream client the service needs.
// Satisfied by *upstream.Client.
type UpstreamClient interface {
	Chat(ctx context.Context, token string, req *upstream.ChatRequest) (*upstream.ChatResponse, error)
	OpenStream(ctx context.Context, token string, req *upstream.ChatRequest) (io.ReadCloser, error)
}

// Service wires the normalizer and the upstream client into the handler
// contract: normalize, call upstream, translate back, for both the
// buffered and the streaming path.
type Service struct {
	normalizer *Normalizer
	client     UpstreamClient
	logger     *slog.Logger
}

// NewService creates the completion service.
func NewService(normalizer *Normalizer, client UpstreamClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{normalizer: normalizer, client: client, logger: logger}
}

var _ transport.CompletionHandler = (*Service)(nil)

// CreateCompletion implements transport.CompletionHandler.
func (s *Service) CreateCompletion(ctx context.Context, req *transport.CompletionRequest, w transport.ResponseWriter) error {
	// The uploaded file must be released on every exit path, including
	// normalization failures and client disconnects. Release is idempotent,
	// so the normalizer scheduling it earlier is fine.
	if req.Attachment != nil {
		defer req.Attachment.Release()
	}

	if apiErr := req.Request.Validate(); apiErr != nil {
		return apiErr
	}

	upReq, err := s.normalizer.Normalize(ctx, req.Token, req.Request, req.Attachment)
	if err != nil {
		return err
	}

	model := req.Request.Model

	if !req.Request.Stream {
		start := time.Now()
		upResp, err := s.client.Chat(ctx, req.Token, upReq)
		observability.ObserveUpstreamCall(model, time.Since(start), err)
		if err != nil {
			return err
		}

		completion, err := TranslateResponse(model, upResp)
		if err != nil {
			return err
		}
		return w.WriteCompletion(ctx, completion)
	}

	start := time.Now()
	body, err := s.client.OpenStream(ctx, req.Token, upReq)
	observability.ObserveUpstreamCall(model, time.Since(start), err)
	if err != nil {
		return err
	}
	defer body.Close()

	b := NewStreamBridge(model, w, s.logger)
	return b.Run(ctx, body)
}
