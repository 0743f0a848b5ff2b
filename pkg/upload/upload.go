package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/greenbasket/storefront/pkg/api"
)

// ErrTooLarge is returned when a file or form exceeds the size limit.
var ErrTooLarge = errors.New("upload: file too large")

// ErrTypeNotAllowed is returned when the detected type is not allowed.
var ErrTypeNotAllowed = errors.New("upload: file type not allowed")

// formOverhead is allowed on top of MaxFileSize for the other form fields.
const formOverhead = 1 << 20

// Config limits what a form may carry.
type Config struct {
	// MaxFileSize is the largest accepted file in bytes. Default: 10MB.
	MaxFileSize int64

	// AllowedTypes lists accepted MIME types, compared without parameters
	// and case-insensitively. Empty allows every type.
	AllowedTypes []string
}

// DefaultConfig allows any type up to 10MB.
func DefaultConfig() Config {
	return Config{MaxFileSize: 10 << 20}
}

// Documents accepts certification documents: PDF or a scanned image.
func Documents() Config {
	c := DefaultConfig()
	c.AllowedTypes = []string{"application/pdf", "image/jpeg", "image/png"}
	return c
}

// Images accepts product photos.
func Images() Config {
	c := DefaultConfig()
	c.MaxFileSize = 5 << 20
	c.AllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
	return c
}

func (c Config) maxSize() int64 {
	if c.MaxFileSize <= 0 {
		return 10 << 20
	}
	return c.MaxFileSize
}

func (c Config) allows(contentType string) bool {
	if len(c.AllowedTypes) == 0 {
		return true
	}
	ct := normalizeType(contentType)
	for _, t := range c.AllowedTypes {
		if normalizeType(t) == ct {
			return true
		}
	}
	return false
}

func normalizeType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// File is an uploaded file held in memory.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	data        []byte
}

// Reader returns a fresh reader over the contents.
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.data)
}

// Attachment wraps the file for an API request.
func (f *File) Attachment() *api.Attachment {
	return &api.Attachment{Name: f.Filename, Reader: f.Reader()}
}

// ParseForm caps the request body and parses it as multipart form data.
func ParseForm(w http.ResponseWriter, r *http.Request, cfg Config) error {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.maxSize()+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return ErrTooLarge
		}
		return fmt.Errorf("upload: parsing form: %w", err)
	}
	return nil
}

// Read returns the file posted in field, or nil if there is none. The form
// must have been parsed with ParseForm.
func Read(r *http.Request, field string, cfg Config) (*File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, nil
	}
	h := headers[0]
	limit := cfg.maxSize()
	if h.Size > limit {
		return nil, ErrTooLarge
	}

	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("upload: opening %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("upload: reading %s: %w", field, err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}

	ct := http.DetectContentType(data)
	if !cfg.allows(ct) {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotAllowed, normalizeType(ct))
	}
	return &File{Filename: h.Filename, ContentType: ct, Size: int64(len(data)), data: data}, nil
}
