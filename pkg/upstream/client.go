package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/bruecke/pkg/api"
	"github.com/rhuss/bruecke/pkg/debug"
)

// Default paths of the upstream API.
const (
	DefaultChatPath       = "/v3/chat"
	DefaultVisionChatPath = "/v3/chat/vision"
	DefaultUploadPath     = "/v1/files/upload"
)

// DefaultTimeout bounds the non-streaming chat call and the upload call.
// Streaming calls are not bounded; their lifetime is the request context.
const DefaultTimeout = 30 * time.Second

// Config holds the upstream client settings.
type Config struct {
	// Host is the upstream base URL, e.g. "https://api.example.com".
	Host string
	// ChatPath overrides the chat endpoint path.
	ChatPath string
	// VisionChatPath overrides the vision-capable chat endpoint path, used
	// whenever the outgoing payload is image-bearing.
	VisionChatPath string
	// UploadPath overrides the file registration endpoint path.
	UploadPath string
	// Timeout bounds non-streaming calls. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client calls the bot-platform backend.
type Client struct {
	httpClient *http.Client
	host       string
	chatPath   string
	visionPath string
	uploadPath string
	timeout    time.Duration
}

// New creates an upstream client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("upstream: host is required")
	}

	c := &Client{
		host:       strings.TrimRight(cfg.Host, "/"),
		chatPath:   cfg.ChatPath,
		visionPath: cfg.VisionChatPath,
		uploadPath: cfg.UploadPath,
		timeout:    cfg.Timeout,
	}
	if c.chatPath == "" {
		c.chatPath = DefaultChatPath
	}
	if c.visionPath == "" {
		c.visionPath = DefaultVisionChatPath
	}
	if c.uploadPath == "" {
		c.uploadPath = DefaultUploadPath
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	c.httpClient = &http.Client{}

	return c, nil
}

// chatURL selects the chat endpoint for the request, switching to the
// vision variant when an image is present anywhere in the payload.
func (c *Client) chatURL(req *ChatRequest) string {
	if req.ImageBearing() {
		return c.host + c.visionPath
	}
	return c.host + c.chatPath
}

// Chat performs the non-streaming chat call. The token is the caller's
// bearer value, forwarded verbatim. The call is bounded by the configured
// timeout; exceeding it yields an upstream-timeout error.
func (c *Client) Chat(ctx context.Context, token string, req *ChatRequest) (*ChatResponse, error) {
	reqCopy := *req
	reqCopy.Stream = false

	body, err := json.Marshal(&reqCopy)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal upstream request: %s", err.Error()))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL(req), bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create upstream request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	debug.Log("upstream", "chat request", "url", httpReq.URL.String(), "bot_id", req.BotID, "history", len(req.ChatHistory))
	debug.Raw("upstream", string(body))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, api.NewUpstreamProtocolError("failed to parse upstream response: " + err.Error())
	}

	return &chatResp, nil
}

// OpenStream performs the streaming chat call and returns the raw body for
// the stream bridge to drive. No timeout applies; the request lifetime is
// controlled through ctx. The caller must close the returned reader.
func (c *Client) OpenStream(ctx context.Context, token string, req *ChatRequest) (io.ReadCloser, error) {
	reqCopy := *req
	reqCopy.Stream = true

	body, err := json.Marshal(&reqCopy)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal upstream request: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL(req), bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create upstream request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	debug.Log("upstream", "stream request", "url", httpReq.URL.String(), "bot_id", req.BotID, "history", len(req.ChatHistory))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp)
	}

	return httpResp.Body, nil
}

// UploadFile registers raw image bytes with the upstream and returns the
// opaque file handle that replaces inline payloads in chat requests.
func (c *Client) UploadFile(ctx context.Context, token, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", api.NewServerError("failed to build upload body: " + err.Error())
	}
	if _, err := part.Write(data); err != nil {
		return "", api.NewServerError("failed to build upload body: " + err.Error())
	}
	if err := mw.Close(); err != nil {
		return "", api.NewServerError("failed to build upload body: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+c.uploadPath, &buf)
	if err != nil {
		return "", api.NewServerError("failed to create upload request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", mapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", mapHTTPError(httpResp)
	}

	var uploadResp UploadResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&uploadResp); err != nil {
		return "", api.NewUpstreamProtocolError("failed to parse upload response: " + err.Error())
	}
	if uploadResp.Code != 0 {
		return "", api.NewUpstreamApplicationError(fmt.Sprintf("%d", uploadResp.Code), uploadResp.Msg)
	}
	if uploadResp.Data.ID == "" {
		return "", api.NewUpstreamProtocolError("upload response has no file id")
	}

	return uploadResp.Data.ID, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
