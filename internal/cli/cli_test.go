package cli

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfsqueeze/internal/pdfwriter"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanSize(tt.in))
	}
}

// runCLI executes the root command from an empty working directory with
// scratch paths redirected into it.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	t.Setenv("PDFSQUEEZE_WORK_DIR", filepath.Join(dir, "work"))
	t.Setenv("PDFSQUEEZE_STATS_PATH", filepath.Join(dir, "stats.sqlite3"))
	t.Setenv("PDFSQUEEZE_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() {
		compressOutput = ""
		compressLevel = "medium"
		compressEngine = "auto"
	})

	err = rootCmd.Execute()
	return out.String(), err
}

func writeFixture(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	doc := pdfwriter.New(pdfwriter.DefaultOptions())
	img, err := doc.AddJPEG(buf.Bytes(), 4, 4)
	require.NoError(t, err)
	page, err := doc.NewImagePage(612, 792, img)
	require.NoError(t, err)
	require.NoError(t, doc.AttachPage(page))
	data, err := doc.Bytes()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestCompressCommandKeepsSmallerOriginal(t *testing.T) {
	input := filepath.Join(t.TempDir(), "tiny.pdf")
	writeFixture(t, input)
	original, err := os.ReadFile(input)
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "out.pdf")
	out, err := runCLI(t, "compress", input, "-l", "high", "-o", output, "--engine", "fallback")
	require.NoError(t, err, out)

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, original, written)
	assert.Contains(t, out, "original kept")
}

func TestCompressCommandRejectsNonPDF(t *testing.T) {
	input := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("hello"), 0644))

	_, err := runCLI(t, "compress", input, "--engine", "fallback")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a PDF")
}
