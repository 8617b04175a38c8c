package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndDeleteDocument(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	path, err := store.Save(3, 12, "bio notes.txt", []byte("mitochondria"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != "12_bio_notes.txt" {
		t.Fatalf("stored name wrong: %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil || string(raw) != "mitochondria" {
		t.Fatalf("stored bytes wrong: %q %v", raw, err)
	}

	if err := store.DeleteDocument(3, 12); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file survived delete")
	}

	// Deleting an absent document is a no-op.
	if err := store.DeleteDocument(3, 12); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSameNameDifferentDocumentsDoNotCollide(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	a, err := store.Save(1, 1, "notes.txt", []byte("first"))
	if err != nil {
		t.Fatalf("save a: %v", err)
	}
	b, err := store.Save(1, 2, "notes.txt", []byte("second"))
	if err != nil {
		t.Fatalf("save b: %v", err)
	}
	if a == b {
		t.Fatalf("uploads collided at %s", a)
	}
	raw, _ := os.ReadFile(a)
	if string(raw) != "first" {
		t.Fatalf("first upload overwritten: %q", raw)
	}
}

func TestDeleteSessionRemovesEverything(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	if _, err := store.Save(5, 1, "a.txt", []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save(5, 2, "b.pdf", []byte("y")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save(6, 3, "c.txt", []byte("z")); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.DeleteSession(5); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "5")); !os.IsNotExist(err) {
		t.Fatalf("session dir survived delete")
	}
	if _, err := os.Stat(filepath.Join(base, "6")); err != nil {
		t.Fatalf("other session touched: %v", err)
	}

	// Absent sessions delete cleanly.
	if err := store.DeleteSession(99); err != nil {
		t.Fatalf("delete absent session: %v", err)
	}
}

func TestSafeFilenameStripsPathComponents(t *testing.T) {
	cases := []struct{ in, want string }{
		{"notes.txt", "notes.txt"},
		{"my notes.txt", "my_notes.txt"},
		{"../../etc/passwd", "passwd"},
		{"/abs/path/x.pdf", "x.pdf"},
		{"", "upload"},
	}
	for _, c := range cases {
		if got := safeFilename(c.in); got != c.want {
			t.Errorf("safeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
