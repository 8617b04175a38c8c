package extract

import (
	"bytes"
	"fmt"

	"github.com/fumiama/go-docx"
)

// extractDOCX concatenates paragraph text in document order, one
// paragraph per line.
func extractDOCX(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var buf bytes.Buffer
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(para.String())
	}
	return normalize(buf.String()), nil
}
