// Package uploads manages the temporary files behind multipart image
// requests: unique on-disk names, public URL construction, static serving,
// and best-effort asynchronous removal.
package uploads

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the process-wide temporary upload directory. File names are
// unique per request (timestamp plus random suffix), so concurrent uploads
// never collide.
type Store struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// New creates a Store rooted at dir. baseURL is the public prefix under
// which saved files are reachable, e.g. "http://host:8080/files". The
// directory is created if it does not exist.
func New(dir, baseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Attachment is one saved upload. Release schedules removal of the backing
// file; it is safe to call more than once and never blocks the request.
type Attachment struct {
	Path     string
	URL      string
	MimeType string

	logger *slog.Logger
	once   sync.Once
}

// Save writes the uploaded content to a uniquely named file and returns
// its attachment. origName is only used for the file extension and the
// derived mime type.
func (s *Store) Save(r io.Reader, origName string) (*Attachment, error) {
	ext := filepath.Ext(origName)
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing upload file: %w", err)
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &Attachment{
		Path:     path,
		URL:      s.baseURL + "/" + name,
		MimeType: mimeType,
		logger:   s.logger,
	}, nil
}

// Release schedules best-effort removal of the backing file. Removal
// failures are logged, never surfaced to the client. Removal is attempted
// exactly once per attachment regardless of how many exit paths call
// Release.
func (a *Attachment) Release() {
	a.once.Do(func() {
		path := a.Path
		logger := a.logger
		go func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove upload", "path", path, "error", err)
			}
		}()
	})
}

// Handler serves the stored files, for the URL returned by Save.
func (s *Store) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}

// Dir returns the backing directory path.
func (s *Store) Dir() string {
	return s.dir
}
