package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rhuss/bruecke/pkg/api"
	"github.com/rhuss/bruecke/pkg/observability"
	"github.com/rhuss/bruecke/pkg/transport"
	"github.com/rhuss/bruecke/pkg/uploads"
)

// Adapter serves the OpenAI-compatible API over HTTP. It decodes inbound
// requests (JSON or multipart), extracts the bearer token, and dispatches
// to the CompletionHandler.
type Adapter struct {
	handler transport.CompletionHandler
	store   *uploads.Store // nil if multipart uploads are disabled
	models  []string
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr        string
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter. The uploads store is optional; when
// nil, multipart requests are rejected. models is the list advertised on
// GET /v1/models. Middleware is applied to the handler in the given order.
func NewAdapter(handler transport.CompletionHandler, store *uploads.Store, models []string, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}

	a := &Adapter{
		handler: handler,
		store:   store,
		models:  models,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST /v1/chat/completions", a.handleChatCompletion)
	a.mux.HandleFunc("GET /v1/models", a.handleListModels)
	if store != nil {
		a.mux.Handle("GET /files/", http.StripPrefix("/files/", store.Handler()))
	}

	return a
}

// Handler returns the http.Handler for this adapter, including the
// request ID propagation middleware.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware propagates the X-Request-ID header: an incoming
// value is carried into the context, and the effective ID is set on the
// response before the first write.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleChatCompletion handles POST /v1/chat/completions.
func (a *Adapter) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	token, apiErr := bearerToken(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil && r.Header.Get("Content-Type") != "" {
		transport.WriteErrorResponse(w,
			api.NewValidationError("content_type", "malformed Content-Type header"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	var req *transport.CompletionRequest
	switch {
	case mediaType == "multipart/form-data":
		req, apiErr = a.decodeMultipartRequest(r)
	case mediaType == "" || mediaType == "application/json":
		req, apiErr = a.decodeJSONRequest(w, r)
	default:
		transport.WriteErrorResponse(w,
			api.NewValidationError("content_type", "Content-Type must be application/json or multipart/form-data"),
			http.StatusUnsupportedMediaType,
		)
		return
	}
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	req.Token = token

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rw := newChunkResponseWriter(w)
	if err := a.handler.CreateCompletion(ctx, req, rw); err != nil {
		a.writeHandlerError(context.Background(), w, rw, err)
	}
}

// decodeJSONRequest parses an application/json body.
func (a *Adapter) decodeJSONRequest(w http.ResponseWriter, r *http.Request) (*transport.CompletionRequest, *api.APIError) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var payload api.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, &api.APIError{
				Type:    api.ErrorTypeValidation,
				Param:   "body",
				Message: fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize),
				Status:  http.StatusRequestEntityTooLarge,
			}
		}
		return nil, api.NewValidationError("body", "invalid JSON: "+err.Error())
	}

	return &transport.CompletionRequest{Request: &payload}, nil
}

// decodeMultipartRequest parses a multipart/form-data body: the JSON
// fields arrive as form values and a single image file is attached under
// the "file" (or legacy "image") field.
func (a *Adapter) decodeMultipartRequest(r *http.Request) (*transport.CompletionRequest, *api.APIError) {
	if a.store == nil {
		return nil, api.NewValidationError("content_type", "multipart uploads are not enabled")
	}

	if err := r.ParseMultipartForm(a.config.MaxBodySize); err != nil {
		return nil, api.NewValidationError("body", "invalid multipart body: "+err.Error())
	}

	payload := api.ChatCompletionRequest{
		Model:  r.FormValue("model"),
		User:   r.FormValue("user"),
		Stream: r.FormValue("stream") == "true",
	}

	if raw := r.FormValue("messages"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload.Messages); err != nil {
			return nil, api.NewValidationError("messages", "invalid messages JSON: "+err.Error())
		}
	}

	file, header, err := formImageFile(r)
	if err != nil {
		return nil, api.NewValidationError("file", "missing image file field")
	}
	defer file.Close()

	att, saveErr := a.store.Save(file, header.Filename)
	if saveErr != nil {
		observability.UploadsTotal.WithLabelValues("error").Inc()
		return nil, api.NewServerError("failed to store upload: " + saveErr.Error())
	}
	observability.UploadsTotal.WithLabelValues("ok").Inc()

	return &transport.CompletionRequest{Request: &payload, Attachment: att}, nil
}

// formImageFile fetches the uploaded file, accepting both field names in use.
func formImageFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	f, h, err := r.FormFile("file")
	if err == nil {
		return f, h, nil
	}
	return r.FormFile("image")
}

// handleListModels handles GET /v1/models, advertising the configured
// model table.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	list := api.ModelList{Object: "list", Data: []api.Model{}}
	created := api.Now()
	for _, id := range a.models {
		list.Data = append(list.Data, api.Model{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: "organization",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// bearerToken extracts the Authorization bearer value. The token is never
// validated here; it is forwarded verbatim to the upstream. Absence or a
// malformed header is an auth failure.
func bearerToken(r *http.Request) (string, *api.APIError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", api.NewAuthError("missing Authorization header")
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return "", api.NewAuthError("malformed Authorization header")
	}
	return token, nil
}

// writeHandlerError reports a handler error. If streaming already started
// the headers are committed, so the error becomes one SSE error envelope
// followed by the sentinel. Otherwise it is a plain JSON error response.
func (a *Adapter) writeHandlerError(ctx context.Context, w http.ResponseWriter, rw *chunkResponseWriter, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}

	if rw.hasStartedStreaming() {
		if werr := rw.WriteErrorEvent(ctx, apiErr); werr == nil {
			rw.WriteSentinel(ctx)
		}
		return
	}

	transport.WriteAPIError(w, apiErr)
}
