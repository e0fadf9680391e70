package transport

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that emits one structured log entry per
// request: request ID, model, streaming flag, duration, and outcome.
// HTTP-level details (status codes, paths) belong to the adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next CompletionHandler) CompletionHandler {
		return CompletionHandlerFunc(func(ctx context.Context, req *CompletionRequest, w ResponseWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.CreateCompletion(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("model", req.Request.Model),
				slog.Bool("stream", req.Request.Stream),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return err
		})
	}
}
