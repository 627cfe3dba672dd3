package common

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}

// DefaultWorkerCount returns min(NumCPU, MaxConcurrencyLimit).
func DefaultWorkerCount() int {
	workers := runtime.NumCPU()
	if workers > MaxConcurrencyLimit {
		workers = MaxConcurrencyLimit
	}
	return workers
}

// CompressedFilename derives "<base>_compressed.<ext>" from the original
// upload name. Names without an extension get ".pdf".
func CompressedFilename(original string) string {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(original), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "document.pdf"
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".pdf"
	}
	if base == "" {
		base = "document"
	}

	return base + CompressedSuffix + ext
}

// WriteFile writes data to dst, creating parent directories as needed.
func WriteFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), DefaultFilePermissions); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
