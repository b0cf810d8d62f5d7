// Package extract turns deal attachment bytes into plain text, dispatching
// on the file extension reported by the file manager.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Extractor converts one document format to text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// UnsupportedFormatError is returned for extensions with no registered extractor.
type UnsupportedFormatError struct {
	Extension string
	Name      string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %s for %s", e.Extension, e.Name)
}

// Registry dispatches by lower-cased extension without the leading dot.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the pdf, docx, xlsx and pptx extractors.
func NewRegistry(pdfToTextPath string) *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register("pdf", NewPdfToText(pdfToTextPath))
	r.Register("docx", DocxExtractor{})
	r.Register("xlsx", XLSXExtractor{})
	r.Register("pptx", PptxExtractor{})
	return r
}

// Register adds or replaces the extractor for ext.
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[normalizeExt(ext)] = e
}

// Supports reports whether ext has an extractor.
func (r *Registry) Supports(ext string) bool {
	_, ok := r.byExt[normalizeExt(ext)]
	return ok
}

// Extract converts data to text. name is used only in error messages.
func (r *Registry) Extract(ctx context.Context, ext, name string, data []byte) (string, error) {
	e, ok := r.byExt[normalizeExt(ext)]
	if !ok {
		return "", &UnsupportedFormatError{Extension: ext, Name: name}
	}
	text, err := e.Extract(ctx, data)
	if err != nil {
		return "", eris.Wrapf(err, "extract: %s (%s)", name, ext)
	}
	return text, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
