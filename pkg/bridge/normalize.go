package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhuss/bruecke/pkg/api"
	"github.com/rhuss/bruecke/pkg/uploads"
	"github.com/rhuss/bruecke/pkg/upstream"
)

// Uploader exchanges decoded inline image bytes for an upstream file
// handle. Satisfied by *upstream.Client.
type Uploader interface {
	UploadFile(ctx context.Context, token, filename string, data []byte) (string, error)
}

// NormalizerConfig holds the read-only routing state shared across
// connections. It is initialized once at process start and never mutated.
type NormalizerConfig struct {
	// Models maps inbound model names to upstream bot IDs.
	Models map[string]string
	// DefaultBot is used when the model has no table entry. When empty,
	// unmatched models fail with a configuration error.
	DefaultBot string
	// DefaultCaller is the upstream user identifier applied when the
	// request carries none.
	DefaultCaller string
}

// Normalizer converts an inbound chat completion request into one
// canonical upstream chat request. Apart from the handle-exchange upload
// round trips it is a pure function of the request.
type Normalizer struct {
	cfg      NormalizerConfig
	uploader Uploader
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer. uploader may be nil only if inline
// base64 content never occurs (it is required to exchange data URLs for
// upstream handles).
func NewNormalizer(cfg NormalizerConfig, uploader Uploader, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultCaller == "" {
		cfg.DefaultCaller = "apiuser"
	}
	return &Normalizer{cfg: cfg, uploader: uploader, logger: logger}
}

// turn is one conversation turn in canonical form. For the part-list
// shape a turn can carry both text and an image; such turns are split
// into a text turn followed by an image turn before the history/query
// split, since the upstream allows only one modality per slot.
type turn struct {
	role  string
	text  string
	image *imageRef
}

// imageRef is a resolved image location: either a fetchable URL or an
// upstream file handle, never inline bytes.
type imageRef struct {
	url      string
	fileID   string
	mimeType string
}

// Normalize produces the canonical upstream request. The attachment, when
// present, is converted into a trailing image turn and its backing file is
// scheduled for deletion as soon as the conversion is done, independent of
// whether the upstream call later succeeds.
func (n *Normalizer) Normalize(ctx context.Context, token string, req *api.ChatCompletionRequest, att *uploads.Attachment) (*upstream.ChatRequest, error) {
	botID, err := n.resolveBot(req.Model)
	if err != nil {
		return nil, err
	}

	caller := req.User
	if caller == "" {
		caller = n.cfg.DefaultCaller
	}

	turns := make([]turn, 0, len(req.Messages)+1)
	for i, msg := range req.Messages {
		t, err := n.convertMessage(ctx, token, i, &msg)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}

	if att != nil {
		turns = append(turns, turn{
			role: api.RoleUser,
			image: &imageRef{
				url:      att.URL,
				mimeType: att.MimeType,
			},
		})
		att.Release()
	}

	turns = splitMixedTurns(turns)

	out := &upstream.ChatRequest{
		User:   caller,
		BotID:  botID,
		Stream: req.Stream,
	}

	if len(turns) == 0 {
		out.ChatHistory = []upstream.HistoryMessage{}
		out.Query = ""
		return out, nil
	}

	history := turns[:len(turns)-1]
	out.ChatHistory = make([]upstream.HistoryMessage, 0, len(history))
	for _, t := range history {
		out.ChatHistory = append(out.ChatHistory, historyMessage(t))
	}

	final := turns[len(turns)-1]
	if final.image != nil {
		out.Image = &upstream.ImageQuery{
			URL:      final.image.url,
			FileID:   final.image.fileID,
			MimeType: final.image.mimeType,
		}
	} else {
		out.Query = final.text
	}

	return out, nil
}

// splitMixedTurns expands every turn carrying both text and an image into
// a text turn followed by an image turn. A mixed final turn thus sends its
// text as the last history entry and its image as the query, and a mixed
// history turn renders as two history entries.
func splitMixedTurns(turns []turn) []turn {
	out := make([]turn, 0, len(turns))
	for _, t := range turns {
		if t.text != "" && t.image != nil {
			out = append(out, turn{role: t.role, text: t.text})
			out = append(out, turn{role: t.role, image: t.image})
			continue
		}
		out = append(out, t)
	}
	return out
}

// resolveBot looks the model up in the routing table, falling back to the
// configured default.
func (n *Normalizer) resolveBot(model string) (string, error) {
	if id, ok := n.cfg.Models[model]; ok {
		return id, nil
	}
	if n.cfg.DefaultBot != "" {
		return n.cfg.DefaultBot, nil
	}
	return "", api.NewConfigurationError(fmt.Sprintf("no bot configured for model %q and no default bot set", model))
}

// convertMessage turns one inbound message into canonical form, resolving
// inline base64 payloads into upstream handles.
func (n *Normalizer) convertMessage(ctx context.Context, token string, idx int, msg *api.Message) (turn, error) {
	role := msg.Role
	if role == "" {
		role = api.RoleUser
	}

	switch msg.Content.Shape {
	case api.ShapeText:
		return turn{role: role, text: msg.Content.Text}, nil

	case api.ShapeImageObject:
		ref, err := n.resolveImage(ctx, token, msg.Content.Image.URL, msg.Content.Image.MimeType)
		if err != nil {
			return turn{}, err
		}
		return turn{role: role, image: ref}, nil

	case api.ShapeParts:
		return n.convertParts(ctx, token, idx, role, msg.Content.Parts)

	default:
		return turn{}, api.NewValidationError(
			fmt.Sprintf("messages[%d].content", idx),
			"unsupported message content shape",
		)
	}
}

// convertParts merges a typed part list into one turn. Exactly one text
// part and at most one image part are honored; the first occurrence of
// each wins and the rest are ignored.
func (n *Normalizer) convertParts(ctx context.Context, token string, idx int, role string, parts []api.ContentPart) (turn, error) {
	t := turn{role: role}
	haveText := false

	for _, p := range parts {
		switch p.Type {
		case "text":
			if !haveText {
				t.text = p.Text
				haveText = true
			}
		case "image_url":
			if t.image == nil && p.ImageURL != nil && p.ImageURL.URL != "" {
				ref, err := n.resolveImage(ctx, token, p.ImageURL.URL, "")
				if err != nil {
					return turn{}, err
				}
				t.image = ref
			}
		}
	}

	if !haveText && t.image == nil {
		return turn{}, api.NewValidationError(
			fmt.Sprintf("messages[%d].content", idx),
			"content part list has no text or image_url part",
		)
	}
	return t, nil
}

// resolveImage converts an image location into a transportable reference.
// Data URLs are decoded and exchanged for an upstream handle; the chat
// request never carries raw base64 bytes. Other URLs pass through.
func (n *Normalizer) resolveImage(ctx context.Context, token, url, mimeType string) (*imageRef, error) {
	if !strings.HasPrefix(url, "data:") {
		return &imageRef{url: url, mimeType: mimeType}, nil
	}

	mime, data, err := decodeDataURL(url)
	if err != nil {
		return nil, api.NewValidationError("", "invalid data URL: "+err.Error())
	}
	if n.uploader == nil {
		return nil, api.NewServerError("inline image content requires an upload client")
	}

	handle, err := n.uploader.UploadFile(ctx, token, uploadFilename(mime), data)
	if err != nil {
		return nil, err
	}
	n.logger.Debug("exchanged inline image for upstream handle", "mime_type", mime, "bytes", len(data))

	return &imageRef{fileID: handle, mimeType: mime}, nil
}

// historyMessage renders a turn as an upstream history entry. Image turns
// stay image-typed rather than being flattened to text.
func historyMessage(t turn) upstream.HistoryMessage {
	if t.image != nil {
		location := t.image.url
		if location == "" {
			location = t.image.fileID
		}
		return upstream.HistoryMessage{
			Role:        t.role,
			Content:     location,
			ContentType: upstream.ContentTypeImage,
		}
	}
	return upstream.HistoryMessage{
		Role:        t.role,
		Content:     t.text,
		ContentType: upstream.ContentTypeText,
	}
}

// decodeDataURL splits a data URL into its mime type and decoded bytes.
func decodeDataURL(url string) (string, []byte, error) {
	rest := strings.TrimPrefix(url, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("missing payload separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("only base64 data URLs are supported")
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip the padding.
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("invalid base64 payload")
		}
	}
	return mime, data, nil
}

// uploadFilename derives a synthetic filename for the upload call from the
// mime type, e.g. "image/png" becomes "upload.png".
func uploadFilename(mimeType string) string {
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		return "upload." + sub
	}
	return "upload.bin"
}
