package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/timmy/nercompare/internal/domain"
)

// Kind is the broad class of an input document.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindText  Kind = "text"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

// Source is a classified document reference.
type Source struct {
	Ref      string
	Kind     Kind
	Remote   bool
	MIMEType string
}

// IsURL reports whether ref is an http(s) URL.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Inspect classifies ref. URLs are classified by the extension of their
// path; local files by the MIME type of their extension, falling back to
// content sniffing when the extension is unknown.
func Inspect(ref string) Source {
	if IsURL(ref) {
		ext := urlExt(ref)
		src := Source{Ref: ref, Remote: true, Kind: KindText}
		switch {
		case imageExtensions[ext]:
			src.Kind = KindImage
		case ext == ".pdf":
			src.Kind = KindPDF
		}
		src.MIMEType = mime.TypeByExtension(ext)
		return src
	}

	ext := strings.ToLower(filepath.Ext(ref))
	mt := mime.TypeByExtension(ext)
	if mt == "" && ext == "" {
		if detected, err := mimetype.DetectFile(ref); err == nil {
			mt = detected.String()
		}
	}

	src := Source{Ref: ref, MIMEType: mt, Kind: KindText}
	switch {
	case strings.HasPrefix(mt, "image/"):
		src.Kind = KindImage
	case strings.HasPrefix(mt, "application/pdf") || strings.HasSuffix(strings.ToLower(ref), ".pdf"):
		src.Kind = KindPDF
		src.MIMEType = "application/pdf"
	}
	return src
}

func urlExt(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return strings.ToLower(path.Ext(ref))
	}
	return strings.ToLower(path.Ext(u.Path))
}

// Loader reads document bytes from disk or over HTTP.
type Loader struct {
	client *resty.Client
}

// NewLoader creates a Loader whose remote fetches time out after timeout.
func NewLoader(timeout time.Duration) *Loader {
	client := resty.New()
	client.SetTimeout(timeout)
	return &Loader{client: client}
}

// Read returns the raw bytes of src.
func (l *Loader) Read(ctx context.Context, src Source) ([]byte, error) {
	if !src.Remote {
		data, err := os.ReadFile(src.Ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src.Ref, err)
		}
		return data, nil
	}

	resp, err := l.client.R().SetContext(ctx).Get(src.Ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src.Ref, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", src.Ref, resp.StatusCode())
	}
	return resp.Body(), nil
}

// DataURL encodes data as a data: URL.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ImageMIMEType returns the MIME type for an image, sniffing the bytes
// when the extension gave none.
func ImageMIMEType(src Source, data []byte) string {
	if strings.HasPrefix(src.MIMEType, "image/") {
		return src.MIMEType
	}
	if detected := mimetype.Detect(data); strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return "image/jpeg"
}

// ImageDimensions decodes only the image header.
func ImageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// PageCount validates a PDF and returns its number of pages.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF: %w", err)
	}
	return n, nil
}

// InputContent renders src for the VLM detail record: local images as
// base64, local PDFs as a path marker, local text verbatim and URLs as
// the URL itself.
func InputContent(src Source) (contentType, content string, err error) {
	if src.Remote {
		return domain.ContentURL, src.Ref, nil
	}

	switch src.Kind {
	case KindImage:
		data, err := os.ReadFile(src.Ref)
		if err != nil {
			return "", "", err
		}
		return domain.ContentImageBase64, base64.StdEncoding.EncodeToString(data), nil
	case KindPDF:
		return domain.ContentPDFBase64, "local_pdf_path:" + src.Ref, nil
	default:
		data, err := os.ReadFile(src.Ref)
		if err != nil {
			return "", "", err
		}
		return domain.ContentText, string(data), nil
	}
}
