// Package attachment normalises learner uploads: images become base64
// payloads with their decoded dimensions, PDFs become plain text.
package attachment

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes is the upload limit for a single attachment.
const DefaultMaxBytes int64 = 5 << 20

var (
	// ErrTooLarge is returned for an attachment above the size limit.
	ErrTooLarge = errors.New("attachment too large")

	// ErrUnsupported is returned for anything that is not a decodable image
	// or a PDF.
	ErrUnsupported = errors.New("unsupported attachment")
)

// Kind is the broad class of an attachment.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
)

// Attachment is a raw upload.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Kind classifies the attachment by MIME type.
func (a Attachment) Kind() (Kind, bool) {
	mt := strings.ToLower(a.MIMEType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage, true
	case mt == "application/pdf":
		return KindPDF, true
	}
	return "", false
}

// Image is a normalised image attachment.
type Image struct {
	Name     string
	MIMEType string
	Base64   string
	Format   string // decoder name, e.g. "png"
	Config   image.Config
}

// DataURL returns the image as a data URL.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64
}

// Document is the text of a PDF with optional metadata.
type Document struct {
	Name           string
	Text           string
	Metadata       map[string]string
	PagesProcessed int
	TotalPages     int
}

// Processed is the normalised attachment set of one turn.
type Processed struct {
	Images    []Image
	Documents []Document
}

// Empty reports whether nothing was attached.
func (p *Processed) Empty() bool {
	return p == nil || (len(p.Images) == 0 && len(p.Documents) == 0)
}

// PDFText joins the text of every document.
func (p *Processed) PDFText() string {
	if p == nil {
		return ""
	}
	texts := make([]string, 0, len(p.Documents))
	for _, d := range p.Documents {
		if t := strings.TrimSpace(d.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}

// Preprocessor validates and normalises attachments.
type Preprocessor struct {
	MaxBytes int64
}

// New returns a Preprocessor with the given limit, or DefaultMaxBytes when
// maxBytes is not positive.
func New(maxBytes int64) *Preprocessor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Preprocessor{MaxBytes: maxBytes}
}

// Limit returns the size limit in human form, e.g. "5.0 MiB".
func (p *Preprocessor) Limit() string {
	return humanize.IBytes(uint64(p.MaxBytes))
}

// Check validates size and type without decoding.
func (p *Preprocessor) Check(a Attachment) (Kind, error) {
	if int64(len(a.Data)) > p.MaxBytes {
		return "", fmt.Errorf("%s is %s, limit %s: %w",
			a.Name, humanize.IBytes(uint64(len(a.Data))), p.Limit(), ErrTooLarge)
	}
	kind, ok := a.Kind()
	if !ok {
		return "", fmt.Errorf("%s (%s): %w", a.Name, a.MIMEType, ErrUnsupported)
	}
	return kind, nil
}

// Image validates an image upload and encodes it as base64.
func (p *Preprocessor) Image(a Attachment) (*Image, error) {
	kind, err := p.Check(a)
	if err != nil {
		return nil, err
	}
	if kind != KindImage {
		return nil, fmt.Errorf("%s is not an image: %w", a.Name, ErrUnsupported)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(a.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", a.Name, err, ErrUnsupported)
	}
	return &Image{
		Name:     a.Name,
		MIMEType: a.MIMEType,
		Base64:   base64.StdEncoding.EncodeToString(a.Data),
		Format:   format,
		Config:   cfg,
	}, nil
}

// Process normalises a turn's attachments. The first failure aborts the
// whole set so a turn never sees half its uploads.
func (p *Preprocessor) Process(atts []Attachment) (*Processed, error) {
	out := &Processed{}
	for _, a := range atts {
		kind, err := p.Check(a)
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindImage:
			img, err := p.Image(a)
			if err != nil {
				return nil, err
			}
			out.Images = append(out.Images, *img)
		case KindPDF:
			doc, err := p.PDFWithMetadata(a)
			if err != nil {
				return nil, err
			}
			out.Documents = append(out.Documents, *doc)
		}
	}
	return out, nil
}

// DetectMIME guesses a MIME type from the file name and content.
func DetectMIME(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	}
	mt := http.DetectContentType(data)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}
