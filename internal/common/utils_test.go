package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateUUID(t *testing.T) {
	uuid1 := GenerateUUID()
	uuid2 := GenerateUUID()

	if uuid1 == "" || uuid2 == "" {
		t.Fatal("Expected non-empty UUID")
	}

	if uuid1 == uuid2 {
		t.Error("Expected different UUIDs")
	}

	if _, err := uuid.Parse(uuid1); err != nil {
		t.Errorf("Generated UUID is not valid: %v", err)
	}
}

func TestCompressedFilename(t *testing.T) {
	tests := []struct {
		name     string
		original string
		expected string
	}{
		{name: "pdf extension", original: "report.pdf", expected: "report_compressed.pdf"},
		{name: "upper case extension", original: "Scan.PDF", expected: "Scan_compressed.PDF"},
		{name: "no extension", original: "invoice", expected: "invoice_compressed.pdf"},
		{name: "multiple dots", original: "q3.final.pdf", expected: "q3.final_compressed.pdf"},
		{name: "path stripped", original: "/tmp/uploads/a.pdf", expected: "a_compressed.pdf"},
		{name: "windows path stripped", original: `C:\docs\b.pdf`, expected: "b_compressed.pdf"},
		{name: "empty", original: "", expected: "document_compressed.pdf"},
		{name: "dotfile", original: ".pdf", expected: "document_compressed.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompressedFilename(tt.original); got != tt.expected {
				t.Errorf("CompressedFilename(%q) = %q, want %q", tt.original, got, tt.expected)
			}
		})
	}
}

func TestWriteFile_CreateDirectory(t *testing.T) {
	tempDir := t.TempDir()
	dstPath := filepath.Join(tempDir, "subdir", "nested", "out.pdf")

	content := []byte("%PDF-1.4")
	if err := WriteFile(dstPath, content); err != nil {
		t.Fatalf("Expected no error writing file, got %v", err)
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("Failed to read destination file: %v", err)
	}

	if string(got) != string(content) {
		t.Errorf("Expected content %q, got %q", content, got)
	}
}

func TestDefaultWorkerCount(t *testing.T) {
	n := DefaultWorkerCount()
	if n < 1 || n > MaxConcurrencyLimit {
		t.Errorf("DefaultWorkerCount() = %d, want 1..%d", n, MaxConcurrencyLimit)
	}
}
