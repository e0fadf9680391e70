package upstream

// ChatRequest is the body of the upstream chat call. Query and Image are
// mutually exclusive: Image is set when the final inbound turn is
// image-bearing, Query otherwise.
type ChatRequest struct {
	User        string           `json:"user"`
	BotID       string           `json:"bot_id"`
	ChatHistory []HistoryMessage `json:"chat_history"`
	Stream      bool             `json:"stream"`
	Query       string           `json:"query,omitempty"`
	Image       *ImageQuery      `json:"image,omitempty"`
}

// HistoryMessage is one prior conversation turn as the upstream expects
// it. ContentType is "text" or "image"; for image turns Content holds the
// image location (served URL or upload handle).
type HistoryMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// ImageQuery carries the image reference of an image-bearing final turn.
type ImageQuery struct {
	URL      string `json:"url,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// ImageBearing reports whether the request carries an image anywhere in
// the outgoing payload. The upstream's vision path variant must be used
// when it does.
func (r *ChatRequest) ImageBearing() bool {
	if r.Image != nil {
		return true
	}
	for _, h := range r.ChatHistory {
		if h.ContentType == ContentTypeImage {
			return true
		}
	}
	return false
}

// Content type values on history entries and answer messages.
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// Answer message type values.
const (
	MessageTypeAnswer = "answer"
)

// ChatResponse is the body of a non-streaming upstream chat call. Code is
// the application-level status embedded in the body, independent of the
// HTTP status; zero means success.
type ChatResponse struct {
	Code     int             `json:"code"`
	Msg      string          `json:"msg"`
	Messages []AnswerMessage `json:"messages"`
}

// AnswerMessage is one message of an upstream response or stream event.
// A qualifying answer has role "assistant" and either type "answer" or
// content_type "image". For image answers Content holds the upstream's
// served URL.
type AnswerMessage struct {
	Role        string `json:"role"`
	Type        string `json:"type,omitempty"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

// IsAnswer reports whether the message qualifies as the answer: an
// assistant message that is either a final answer or an image.
func (m *AnswerMessage) IsAnswer() bool {
	return m.Role == "assistant" &&
		(m.Type == MessageTypeAnswer || m.ContentType == ContentTypeImage)
}

// Stream event kinds. Ping and any unrecognized kind are no-ops for the
// bridge; the set is expected to grow with upstream protocol revisions.
const (
	EventMessage = "message"
	EventDone    = "done"
	EventError   = "error"
	EventPing    = "ping"
)

// StreamEvent is one decoded frame of the upstream's streamed response.
type StreamEvent struct {
	Event            string         `json:"event"`
	Message          *AnswerMessage `json:"message,omitempty"`
	Code             int            `json:"code,omitempty"`
	Msg              string         `json:"msg,omitempty"`
	ErrorInformation *ErrorInfo     `json:"error_information,omitempty"`
}

// ErrorInfo is the nested detailed-reason block of an error event. When
// present, its message is preferred over the top-level one.
type ErrorInfo struct {
	ErrMsg string `json:"err_msg"`
}

// ErrorMessage returns the most specific error text available on an error
// event.
func (e *StreamEvent) ErrorMessage() string {
	if e.ErrorInformation != nil && e.ErrorInformation.ErrMsg != "" {
		return e.ErrorInformation.ErrMsg
	}
	return e.Msg
}

// UploadResponse is the body of the file registration call.
type UploadResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}
