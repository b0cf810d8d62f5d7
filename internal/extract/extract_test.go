package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Confidential</w:t></w:r><w:r><w:t xml:space="preserve"> Teaser</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>EBITDA: $4.2M</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestDocxExtractor(t *testing.T) {
	data := zipOf(t, map[string]string{"word/document.xml": docxBody})

	text, err := DocxExtractor{}.Extract(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "Confidential Teaser\nEBITDA: $4.2M", text)
}

func TestDocxExtractor_MissingDocument(t *testing.T) {
	data := zipOf(t, map[string]string{"word/styles.xml": "<w:styles/>"})

	_, err := DocxExtractor{}.Extract(context.Background(), data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml not found")
}

func slideXML(text string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld>
</p:sld>`
}

func TestPptxExtractor_SlideOrder(t *testing.T) {
	data := zipOf(t, map[string]string{
		"ppt/slides/slide10.xml":            slideXML("Ten"),
		"ppt/slides/slide2.xml":             slideXML("Two"),
		"ppt/slides/slide1.xml":             slideXML("One"),
		"ppt/slides/_rels/slide1.xml.rels":  "<Relationships/>",
		"ppt/slideLayouts/slideLayout1.xml": slideXML("Layout"),
	})

	text, err := PptxExtractor{}.Extract(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "One\nTwo\nTen", text)
}

func TestXLSXExtractor(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Financials")
	require.NoError(t, err)
	for _, r := range [][]string{{"Year", "Revenue"}, {"2023", "12000000"}} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	text, err := XLSXExtractor{}.Extract(context.Background(), buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Sheet: Financials\nYear\tRevenue\n2023\t12000000", text)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry("")

	_, err := r.Extract(context.Background(), "png", "logo", []byte{0x89})
	require.Error(t, err)

	var ufe *UnsupportedFormatError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "png", ufe.Extension)
	assert.Equal(t, "unsupported file type: png for logo", err.Error())
}

func TestRegistry_NormalizesExtension(t *testing.T) {
	r := NewRegistry("")
	assert.True(t, r.Supports(".DOCX"))
	assert.True(t, r.Supports("pdf"))
	assert.False(t, r.Supports("csv"))

	text, err := r.Extract(context.Background(), ".Docx", "memo", zipOf(t, map[string]string{"word/document.xml": docxBody}))
	require.NoError(t, err)
	assert.Contains(t, text, "EBITDA")
}

func TestPdfToText_BinPath(t *testing.T) {
	assert.Equal(t, "pdftotext", NewPdfToText("").binPath)
	assert.Equal(t, "/custom/pdftotext", NewPdfToText("/custom/pdftotext").binPath)
}

func TestPdfToText_SpoolsToTempFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	// Stand-in for pdftotext: invoked as `<bin> -layout <path> -`, echoes the file.
	bin := filepath.Join(t.TempDir(), "fake-pdftotext")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\ncat \"$2\"\n"), 0o755))

	text, err := NewPdfToText(bin).Extract(context.Background(), []byte("page one text"))
	require.NoError(t, err)
	assert.Equal(t, "page one text", text)
}

func TestPdfToText_FailureIncludesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "broken-pdftotext")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'Syntax Error: broken xref' >&2\nexit 1\n"), 0o755))

	_, err := NewPdfToText(bin).Extract(context.Background(), []byte("not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken xref")
}
