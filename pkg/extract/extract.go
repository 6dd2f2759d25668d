// Package extract turns raw document bytes into plain text. Each extractor
// implements the text-extraction contract consumed by the ingestion
// pipeline.
package extract

import (
	"fmt"
	"strings"

	"github.com/xhad/pdfchat/internal/types"
)

// ForContentType picks the extractor for an uploaded file's MIME type.
func ForContentType(contentType string) (types.TextExtractor, error) {
	mime := contentType
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(strings.ToLower(mime))

	switch mime {
	case "application/pdf":
		return PDF{}, nil
	case "text/html":
		return HTML{}, nil
	case "text/plain", "text/markdown":
		return Plain{}, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
}

// Plain passes text documents through after normalizing line endings.
type Plain struct{}

func (Plain) Extract(data []byte) (string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
