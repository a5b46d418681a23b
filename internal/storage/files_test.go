package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating file store: %v", err)
	}
	return fs
}

func TestNewFileStore_CreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "files")
	if _, err := NewFileStore(base); err != nil {
		t.Fatalf("creating file store: %v", err)
	}
	info, err := os.Stat(base)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected base directory")
	}
}

func TestSaveAndRead(t *testing.T) {
	fs := newTestStore(t)

	path, err := fs.Save("faktura.pdf", []byte("content"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(path, ".pdf") {
		t.Fatalf("expected .pdf extension, got %s", path)
	}
	if strings.Contains(path, string(os.PathSeparator)) {
		t.Fatalf("expected bare file name, got %s", path)
	}

	data, err := fs.Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestSave_UniqueNames(t *testing.T) {
	fs := newTestStore(t)

	a, err := fs.Save("doc.txt", []byte("a"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := fs.Save("doc.txt", []byte("b"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct names, both were %s", a)
	}
}

func TestRead_NotFound(t *testing.T) {
	fs := newTestStore(t)

	if _, err := fs.Read("missing.txt"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	fs := newTestStore(t)

	path, err := fs.Save("doc.txt", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := fs.Delete(path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fs.Read(path); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound after delete, got %v", err)
	}
}

func TestDelete_MissingIsOK(t *testing.T) {
	fs := newTestStore(t)

	if err := fs.Delete("never-existed.pdf"); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}

func TestReadText_PlainText(t *testing.T) {
	fs := newTestStore(t)

	path, err := fs.Save("vypis.txt", []byte("Faktura na 1 500 Kč."))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	text, err := fs.ReadText(path)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	if text != "Faktura na 1 500 Kč." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestReadText_InvalidPDF(t *testing.T) {
	fs := newTestStore(t)

	path, err := fs.Save("broken.pdf", []byte("not really a pdf"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := fs.ReadText(path); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestExtractPDFText_Empty(t *testing.T) {
	text, err := extractPDFText(nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}
