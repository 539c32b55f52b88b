package fs

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrNotPDF       = errors.New("only PDF files are allowed")
	ErrFileTooLarge = errors.New("file too large")
	ErrEmptyFile    = errors.New("file is empty")
)

// ValidateUpload checks an incoming file's name and size before it is stored.
func ValidateUpload(name string, size, maxSize int64) error {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return fmt.Errorf("%s: %w", name, ErrNotPDF)
	}
	if size == 0 {
		return fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("%s: %w: %d bytes exceeds %d", name, ErrFileTooLarge, size, maxSize)
	}
	return nil
}
