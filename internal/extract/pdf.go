package extract

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Extract spools data to a temp file and runs ExtractFile on it.
func (p *PdfToText) Extract(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "attachment-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "pdf: create temp file")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return "", eris.Wrap(err, "pdf: write temp file")
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrap(err, "pdf: close temp file")
	}

	return p.ExtractFile(ctx, f.Name())
}

// ExtractFile runs pdftotext -layout on the given PDF and returns stdout.
func (p *PdfToText) ExtractFile(ctx context.Context, pdfPath string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "pdf: pdftotext failed: %s", stderr.String())
	}

	return stdout.String(), nil
}
