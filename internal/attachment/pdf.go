package attachment

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var metadataKeys = []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer"}

// PDF extracts the text of a PDF, pages joined by a blank line.
func (p *Preprocessor) PDF(a Attachment) (string, error) {
	doc, err := p.PDFWithMetadata(a)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// PDFWithMetadata extracts the text of a PDF page by page. A page that
// cannot be read is replaced by a marker and does not fail the document.
func (p *Preprocessor) PDFWithMetadata(a Attachment) (*Document, error) {
	kind, err := p.Check(a)
	if err != nil {
		return nil, err
	}
	if kind != KindPDF {
		return nil, fmt.Errorf("%s is not a PDF: %w", a.Name, ErrUnsupported)
	}

	r, err := pdf.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", a.Name, err, ErrUnsupported)
	}

	total := r.NumPage()
	pages := make([]string, 0, total)
	processed := 0
	for i := 1; i <= total; i++ {
		text, err := pageText(r, i)
		if err != nil {
			pages = append(pages, fmt.Sprintf("[Error extracting text from page %d]", i))
			continue
		}
		pages = append(pages, text)
		processed++
	}

	return &Document{
		Name:           a.Name,
		Text:           strings.Join(pages, "\n\n"),
		Metadata:       readMetadata(r),
		PagesProcessed: processed,
		TotalPages:     total,
	}, nil
}

func pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", n, rec)
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing", n)
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func readMetadata(r *pdf.Reader) (md map[string]string) {
	md = map[string]string{}
	defer func() {
		if recover() != nil {
			md = map[string]string{}
		}
	}()
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return md
	}
	for _, k := range metadataKeys {
		if v := strings.TrimSpace(info.Key(k).Text()); v != "" {
			md[k] = v
		}
	}
	return md
}
