package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTML extracts readable text from HTML bytes, dropping script and style
// content.
type HTML struct{}

func (HTML) Extract(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	})

	out := strings.TrimSpace(sb.String())
	if out == "" {
		// Fall back to the whole body for pages without block markup.
		out = strings.TrimSpace(strings.Join(strings.Fields(root.Text()), " "))
	}
	if out == "" {
		return "", fmt.Errorf("HTML contains no extractable text")
	}
	return out, nil
}
