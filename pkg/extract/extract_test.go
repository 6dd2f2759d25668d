package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfchat/pkg/extract"
)

func TestForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		wantErr     bool
	}{
		{"application/pdf", false},
		{"text/html", false},
		{"text/html; charset=utf-8", false},
		{"text/plain", false},
		{"TEXT/PLAIN", false},
		{"image/png", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			_, err := extract.ForContentType(tt.contentType)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlain_Extract(t *testing.T) {
	text, err := extract.Plain{}.Extract([]byte("line one\r\nline two\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
}

func TestHTML_Extract(t *testing.T) {
	page := `<html><head><style>p { color: red }</style></head><body>
		<h1>Title</h1>
		<p>First paragraph.</p>
		<script>var ignored = true;</script>
		<p>Second paragraph.</p>
	</body></html>`

	text, err := extract.HTML{}.Extract([]byte(page))
	require.NoError(t, err)

	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.NotContains(t, text, "ignored")
	assert.NotContains(t, text, "color: red")
}

func TestHTML_ExtractEmpty(t *testing.T) {
	_, err := extract.HTML{}.Extract([]byte("<html><body></body></html>"))
	assert.Error(t, err)
}

func TestPDF_ExtractMalformed(t *testing.T) {
	_, err := extract.PDF{}.Extract([]byte("not a pdf at all"))
	assert.Error(t, err)
}
