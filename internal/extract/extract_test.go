package extract

import (
	"errors"
	"testing"

	"studyai/internal/model"
)

func TestFormatFromFilename(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"notes.pdf", model.FormatPDF},
		{"Notes.PDF", model.FormatPDF},
		{"readme.txt", model.FormatTXT},
		{"thesis.docx", model.FormatDOCX},
	}
	for _, tc := range cases {
		got, err := FormatFromFilename(tc.filename)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.filename, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.filename, got, tc.want)
		}
	}
}

func TestFormatFromFilenameUnsupported(t *testing.T) {
	for _, filename := range []string{"archive.xyz", "noext", "image.png"} {
		if _, err := FormatFromFilename(filename); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("%s: expected ErrUnsupportedFormat, got %v", filename, err)
		}
	}
}

func TestExtractZeroBytes(t *testing.T) {
	for _, format := range []string{model.FormatPDF, model.FormatTXT, model.FormatDOCX} {
		text, err := Extract(nil, format)
		if err != nil {
			t.Fatalf("%s: zero-byte input errored: %v", format, err)
		}
		if text != "" {
			t.Fatalf("%s: zero-byte input yielded %q", format, text)
		}
	}
}

func TestExtractUnknownFormat(t *testing.T) {
	if _, err := Extract([]byte("data"), "xyz"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractTXT(t *testing.T) {
	text, err := Extract([]byte("Mitochondria is the powerhouse of the cell."), model.FormatTXT)
	if err != nil {
		t.Fatalf("extract txt: %v", err)
	}
	if text != "Mitochondria is the powerhouse of the cell." {
		t.Fatalf("got %q", text)
	}
}

func TestExtractTXTStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...)
	text, err := Extract(data, model.FormatTXT)
	if err != nil {
		t.Fatalf("extract txt: %v", err)
	}
	if text != "hello" {
		t.Fatalf("got %q", text)
	}
}

func TestExtractTXTInvalidEncoding(t *testing.T) {
	if _, err := Extract([]byte{0xff, 0xfe, 0x41}, model.FormatTXT); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestExtractDOCXGarbage(t *testing.T) {
	if _, err := Extract([]byte("not a zip archive"), model.FormatDOCX); err == nil {
		t.Fatalf("expected error for garbage docx input")
	}
}

func TestExtractPDFGarbage(t *testing.T) {
	if _, err := Extract([]byte("not a pdf"), model.FormatPDF); err == nil {
		t.Fatalf("expected error for garbage pdf input")
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  hello   world  ", "hello world"},
		{"line1\n\n\nline2", "line1\nline2"},
		{"tabs\t\tand\r\nmore \x00text", "tabs and\nmore text"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalize(tc.in); got != tc.want {
			t.Fatalf("normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
