package upload

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
)

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("username", "olu")
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(content)
	}
	_ = mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/register", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestReadDetectsType(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		cfg     Config
		wantCT  string
		wantErr error
	}{
		{"pdf document", pdfBytes, Documents(), "application/pdf", nil},
		{"png document", pngBytes, Documents(), "image/png", nil},
		{"png photo", pngBytes, Images(), "image/png", nil},
		{"pdf photo", pdfBytes, Images(), "", ErrTypeNotAllowed},
		{"text document", []byte("hello"), Documents(), "", ErrTypeNotAllowed},
		{"anything goes", []byte("hello"), DefaultConfig(), "text/plain; charset=utf-8", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := multipartRequest(t, "file", "upload.bin", tt.content)
			if err := ParseForm(httptest.NewRecorder(), r, tt.cfg); err != nil {
				t.Fatalf("ParseForm: %v", err)
			}
			f, err := Read(r, "file", tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if f.ContentType != tt.wantCT || f.Filename != "upload.bin" || f.Size != int64(len(tt.content)) {
				t.Errorf("file = %+v", f)
			}
		})
	}
}

func TestAllowedTypesIgnoreCaseAndParams(t *testing.T) {
	cfg := Config{AllowedTypes: []string{"TEXT/PLAIN"}}
	if !cfg.allows("text/plain; charset=utf-8") {
		t.Error("text/plain with charset rejected")
	}
	if cfg.allows("text/html; charset=utf-8") {
		t.Error("text/html accepted")
	}
}

func TestReadMissingField(t *testing.T) {
	r := multipartRequest(t, "", "", nil)
	if err := ParseForm(httptest.NewRecorder(), r, Documents()); err != nil {
		t.Fatal(err)
	}
	f, err := Read(r, "certification", Documents())
	if f != nil || err != nil {
		t.Errorf("Read = %v, %v; want nil, nil", f, err)
	}
}

func TestTooLarge(t *testing.T) {
	cfg := Config{MaxFileSize: 16}
	r := multipartRequest(t, "file", "big.pdf", append(pdfBytes, bytes.Repeat([]byte("x"), 64)...))
	if err := ParseForm(httptest.NewRecorder(), r, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(r, "file", cfg); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestParseFormBodyLimit(t *testing.T) {
	cfg := Config{MaxFileSize: 1}
	r := multipartRequest(t, "file", "huge.bin", bytes.Repeat([]byte("x"), formOverhead+1024))
	if err := ParseForm(httptest.NewRecorder(), r, cfg); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestAttachmentReadsContents(t *testing.T) {
	r := multipartRequest(t, "photo", "tomato.png", pngBytes)
	_ = ParseForm(httptest.NewRecorder(), r, Images())
	f, err := Read(r, "photo", Images())
	if err != nil {
		t.Fatal(err)
	}
	a := f.Attachment()
	got, _ := io.ReadAll(a.Reader)
	if a.Name != "tomato.png" || !bytes.Equal(got, pngBytes) {
		t.Errorf("attachment = %s %q", a.Name, got)
	}
	// Each attachment gets its own reader.
	again, _ := io.ReadAll(f.Attachment().Reader)
	if !bytes.Equal(again, pngBytes) {
		t.Error("second attachment reader was drained")
	}
}
