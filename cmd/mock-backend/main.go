// Command mock-backend runs a deterministic bot-platform server for
// conformance testing the gateway. It serves the chat, vision chat and
// file upload endpoints and returns predictable responses based on
// request content analysis.
//
// Special query keywords:
//
//	"fail"  - application-level error (code 7001)
//	"count" - multi-frame streamed answer
//	"image" - image answer instead of text
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v3/chat", handleChat)
	mux.HandleFunc("POST /v3/chat/vision", handleChat)
	mux.HandleFunc("POST /v1/files/upload", handleUpload)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	User        string           `json:"user"`
	BotID       string           `json:"bot_id"`
	ChatHistory []historyMessage `json:"chat_history"`
	Stream      bool             `json:"stream"`
	Query       string           `json:"query,omitempty"`
	Image       *imageQuery      `json:"image,omitempty"`
}

type historyMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

type imageQuery struct {
	URL      string `json:"url,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// --- Response types ---

type chatResponse struct {
	Code     int             `json:"code"`
	Msg      string          `json:"msg"`
	Messages []answerMessage `json:"messages,omitempty"`
}

type answerMessage struct {
	Role        string `json:"role"`
	Type        string `json:"type,omitempty"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

type streamEvent struct {
	Event            string         `json:"event"`
	Message          *answerMessage `json:"message,omitempty"`
	Code             int            `json:"code,omitempty"`
	Msg              string         `json:"msg,omitempty"`
	ErrorInformation *errorInfo     `json:"error_information,omitempty"`
}

type errorInfo struct {
	ErrMsg string `json:"err_msg"`
}

type uploadResponse struct {
	Code int        `json:"code"`
	Msg  string     `json:"msg"`
	Data uploadData `json:"data"`
}

type uploadData struct {
	ID string `json:"id"`
}

// --- Handlers ---

func handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"code":4000,"msg":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.BotID == "" {
		http.Error(w, `{"code":4001,"msg":"bot_id is required"}`, http.StatusBadRequest)
		return
	}

	if req.Stream {
		handleStreaming(w, &req)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(classifyAndRespond(&req))
}

func classifyAndRespond(req *chatRequest) chatResponse {
	query := strings.ToLower(req.Query)

	if strings.Contains(query, "fail") {
		return chatResponse{Code: 7001, Msg: "bot execution failed"}
	}

	if strings.Contains(query, "image") {
		return chatResponse{
			Code: 0,
			Messages: []answerMessage{
				{
					Role:        "assistant",
					Content:     "https://mock.example.com/generated/cat.png",
					ContentType: "image",
					MimeType:    "image/png",
				},
			},
		}
	}

	if req.Image != nil {
		return makeTextResponse("I can see the image you shared. It appears to be a small red icon or symbol.")
	}

	return makeTextResponse(answerText(req))
}

// answerText picks a deterministic reply, echoing the history length so
// tests can verify the conversation was forwarded.
func answerText(req *chatRequest) string {
	if strings.Contains(strings.ToLower(req.Query), "count from 1 to 5") {
		return "1, 2, 3, 4, 5"
	}
	if len(req.ChatHistory) > 0 {
		return fmt.Sprintf("Hello %s, nice day! (history: %d)", req.User, len(req.ChatHistory))
	}
	return "Hello, nice day!"
}

func makeTextResponse(text string) chatResponse {
	return chatResponse{
		Code: 0,
		Messages: []answerMessage{
			{Role: "assistant", Type: "answer", Content: text, ContentType: "text"},
		},
	}
}

// --- Streaming ---

func handleStreaming(w http.ResponseWriter, req *chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	query := strings.ToLower(req.Query)

	if strings.Contains(query, "fail") {
		writeFrame(w, streamEvent{
			Event:            "error",
			Code:             7001,
			Msg:              "internal error",
			ErrorInformation: &errorInfo{ErrMsg: "bot execution failed"},
		})
		flusher.Flush()
		return
	}

	tokens := []string{"Hello", ", ", "nice", " ", "day", "!"}
	if strings.Contains(query, "count from 1 to 5") {
		tokens = []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}
	}

	for i, tok := range tokens {
		writeFrame(w, streamEvent{
			Event: "message",
			Message: &answerMessage{
				Role:        "assistant",
				Type:        "answer",
				Content:     tok,
				ContentType: "text",
			},
		})
		flusher.Flush()

		// Interleave a keep-alive frame the gateway must ignore.
		if i == 2 {
			writeFrame(w, streamEvent{Event: "ping"})
			flusher.Flush()
		}
		time.Sleep(20 * time.Millisecond)
	}

	writeFrame(w, streamEvent{Event: "done"})
	flusher.Flush()
}

func writeFrame(w io.Writer, event streamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data:%s\n", data)
}

// --- Upload ---

func handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, `{"code":4000,"msg":"invalid multipart body"}`, http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"code":4002,"msg":"file part is required"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()
	size, _ := io.Copy(io.Discard, file)

	slog.Info("file uploaded", "name", header.Filename, "size", size)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(uploadResponse{
		Code: 0,
		Data: uploadData{ID: fmt.Sprintf("mock-file-%d", size)},
	})
}
