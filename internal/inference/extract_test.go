package inference

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single newlines join", "line one\nline two", "line one line two"},
		{"blank lines collapse", "para one\n\n\n\npara two", "para one\n\npara two"},
		{"mixed", "a\nb\n\n\nc\nd", "a b\n\nc d"},
		{"one character lines", "a\nb\nc", "a b c"},
		{"trimmed", "\n  text  \n", "text"},
		{"windows newlines", "a\r\nb", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("Report.PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = FormatOf("notes.docx")
	require.NoError(t, err)
	assert.Equal(t, FormatDOCX, f)

	_, err = FormatOf("notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// buildDOCX returns a minimal .docx whose body holds paragraphs
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body bytes.Buffer
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractText_DOCX(t *testing.T) {
	data := buildDOCX(t, "First paragraph.", "", "Second &amp; last.")

	text, err := ExtractText("notes.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond & last.", text)
}

func TestExtractText_Errors(t *testing.T) {
	_, err := ExtractText("notes.txt", []byte("plain"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ExtractText("broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)

	_, err = ExtractText("broken.docx", []byte("not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.Close())
	_, err = ExtractText("empty.docx", buf.Bytes())
	assert.ErrorContains(t, err, "word/document.xml")
}
