package pdfwriter

import (
	"strconv"
	"testing"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	if err != nil {
		t.Fatalf("atoi %q: %v", s, err)
	}
	return n
}
