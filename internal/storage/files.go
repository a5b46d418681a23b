// Package storage reads and writes uploaded files on disk and extracts plain
// text from them for the ingestion pipeline.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// ErrFileNotFound is returned when a stored file path does not exist.
var ErrFileNotFound = errors.New("storage: file not found")

// FileStore saves and loads uploaded files under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save writes data under a generated name preserving the original extension
// and returns the storage path relative to the base directory.
func (f *FileStore) Save(fileName string, data []byte) (string, error) {
	ext := filepath.Ext(fileName)
	name := uuid.NewString() + ext
	path := filepath.Join(f.baseDir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return name, nil
}

// Read returns the raw bytes of a stored file.
func (f *FileStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Delete removes a stored file. Missing files are not an error.
func (f *FileStore) Delete(path string) error {
	err := os.Remove(filepath.Join(f.baseDir, path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// ReadText loads a stored file and extracts its plain text. PDF files go
// through the pdf extractor; everything else is treated as UTF-8 text.
func (f *FileStore) ReadText(path string) (string, error) {
	data, err := f.Read(path)
	if err != nil {
		return "", err
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := extractPDFText(data)
		if err != nil {
			return "", fmt.Errorf("extracting pdf text from %s: %w", path, err)
		}
		return text, nil
	}
	return string(data), nil
}

// extractPDFText pulls plain text out of a PDF. A PDF with no extractable
// text yields an empty string, not an error; the pipeline treats empty
// content as a data failure.
func extractPDFText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
