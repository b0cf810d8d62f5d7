package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DocxExtractor reads paragraph text from word/document.xml.
type DocxExtractor struct{}

// Extract implements Extractor.
func (DocxExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", eris.Wrap(err, "docx: open archive")
	}
	f := findFile(zr, "word/document.xml")
	if f == nil {
		return "", eris.New("docx: word/document.xml not found")
	}
	text, err := partText(ctx, f)
	if err != nil {
		return "", eris.Wrap(err, "docx: read document")
	}
	return text, nil
}

// PptxExtractor reads shape text from every slide, in slide order.
type PptxExtractor struct{}

// Extract implements Extractor.
func (PptxExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", eris.Wrap(err, "pptx: open archive")
	}

	var slides []*zip.File
	for _, f := range zr.File {
		if slideNumber(f.Name) > 0 {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})

	var parts []string
	for _, f := range slides {
		text, err := partText(ctx, f)
		if err != nil {
			return "", eris.Wrapf(err, "pptx: read %s", f.Name)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// slideNumber returns N for ppt/slides/slideN.xml, otherwise 0.
func slideNumber(name string) int {
	if path.Dir(name) != "ppt/slides" {
		return 0
	}
	base := strings.TrimSuffix(path.Base(name), ".xml")
	n, err := strconv.Atoi(strings.TrimPrefix(base, "slide"))
	if err != nil || !strings.HasPrefix(base, "slide") {
		return 0
	}
	return n
}

func openZip(data []byte) (*zip.Reader, error) {
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

func findFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// partText walks an OOXML part collecting <t> runs; each closing <p> ends a line.
func partText(ctx context.Context, f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close() //nolint:errcheck

	decoder := xml.NewDecoder(rc)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var (
		out   strings.Builder
		line  strings.Builder
		inRun bool
	)
	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "xml: read token")
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inRun = true
			case "tab":
				line.WriteByte('\t')
			case "br":
				line.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inRun = false
			case "p":
				if s := strings.TrimSpace(line.String()); s != "" {
					if out.Len() > 0 {
						out.WriteByte('\n')
					}
					out.WriteString(s)
				}
				line.Reset()
			}
		case xml.CharData:
			if inRun {
				line.Write(el)
			}
		}
	}
	return out.String(), nil
}
