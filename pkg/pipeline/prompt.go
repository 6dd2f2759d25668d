package pipeline

import (
	"fmt"
	"strings"

	"github.com/xhad/pdfchat/internal/models"
)

const contextSeparator = "\n\n---\n\n"

// buildContext concatenates the surviving chunks in rank order, each
// prefixed with its formatted relevance percentage.
func buildContext(matches []models.QueryMatch) string {
	parts := make([]string, len(matches))
	for i, match := range matches {
		parts[i] = fmt.Sprintf("[Relevance: %.1f%%]\n%s", match.Score*100, match.Metadata.Text)
	}
	return strings.Join(parts, contextSeparator)
}

// buildPrompt grounds the generation model: answer strictly from the
// supplied context, decline when it is insufficient, cite relevant parts.
func buildPrompt(fileName, contextText, question string) string {
	return fmt.Sprintf(`You are a helpful AI assistant answering questions based on the provided document context.

Context from the document %q:
---
%s
---

User's Question:
%s

Instructions:
- Answer the question based ONLY on the information provided in the context above.
- If the context doesn't contain enough information to answer the question, say so honestly.
- Be concise, accurate, and helpful.
- Cite specific parts of the context when relevant.
- Do not make up information that is not in the context.

Answer:`, fileName, contextText, question)
}
