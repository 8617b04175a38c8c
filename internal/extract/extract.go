// Package extract converts uploaded study documents into plain text.
// Extraction is a pure transform: no I/O beyond the bytes handed in.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"studyai/internal/model"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported document format")
	ErrUnsupportedEncoding = errors.New("unsupported text encoding")
)

// FormatFromFilename maps a file extension to a document format.
func FormatFromFilename(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return model.FormatPDF, nil
	case ".txt":
		return model.FormatTXT, nil
	case ".docx":
		return model.FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Extract converts raw file bytes into normalized plain text for the
// declared format. Zero-length input yields an empty string for every
// supported format.
func Extract(data []byte, format string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	switch format {
	case model.FormatPDF:
		return extractPDF(data)
	case model.FormatTXT:
		return extractTXT(data)
	case model.FormatDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

var (
	horizontalWS = regexp.MustCompile(`[ \t\f\v]+`)
	newlineWS    = regexp.MustCompile(` ?\n ?`)
	blankLines   = regexp.MustCompile(`\n{2,}`)
)

// normalize collapses whitespace runs while preserving line structure,
// and strips NUL bytes some PDF extractors leak into page text.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalWS.ReplaceAllString(text, " ")
	text = newlineWS.ReplaceAllString(text, "\n")
	text = blankLines.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
