package app

import (
	"fmt"
	"unicode/utf8"

	"studyai/internal/model"
)

// Context assembly is deliberately simple: documents in upload order,
// no relevance ranking. Determinism and offline operation win over
// retrieval quality here; anything smarter changes which text the model
// sees and belongs in a documented extension.

func documentMarker(filename string) string {
	return fmt.Sprintf("--- Document: %s ---", filename)
}

// assembleContext concatenates extracted text in creation order, each
// document introduced by its boundary marker, until maxChars is spent.
// The last included document is truncated at a rune boundary rather
// than dropped, so partial context beats no context. Returns "" when
// the session has no documents; callers short-circuit to the
// no-context answer instead of invoking the model.
func assembleContext(docs []model.Document, maxChars int) string {
	if len(docs) == 0 {
		return ""
	}

	out := make([]byte, 0, maxChars)
	used := 0
	for i, doc := range docs {
		head := documentMarker(doc.Filename) + "\n"
		if i > 0 {
			head = "\n\n" + head
		}
		headLen := utf8.RuneCountInString(head)
		if used+headLen >= maxChars {
			break
		}
		out = append(out, head...)
		used += headLen

		text := truncateRunes(doc.ExtractedText, maxChars-used)
		out = append(out, text...)
		used += utf8.RuneCountInString(text)
		if used >= maxChars {
			break
		}
	}
	return string(out)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
