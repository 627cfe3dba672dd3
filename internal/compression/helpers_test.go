package compression

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"

	"pdfsqueeze/internal/pdfwriter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript creates an executable shell script standing in for Ghostscript.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func noisyJPEG(t *testing.T, rng *rand.Rand, w, h, quality int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

// imagePDF builds a document of letter-sized pages each carrying one noisy
// high-quality image of pxW x pxH pixels.
func imagePDF(t *testing.T, pages, pxW, pxH int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(pages*pxW + pxH)))
	doc := pdfwriter.New(pdfwriter.DefaultOptions())
	for i := 0; i < pages; i++ {
		img, err := doc.AddJPEG(noisyJPEG(t, rng, pxW, pxH, 95), pxW, pxH)
		require.NoError(t, err)
		page, err := doc.NewImagePage(612, 792, img)
		require.NoError(t, err)
		require.NoError(t, doc.AttachPage(page))
	}
	data, err := doc.Bytes()
	require.NoError(t, err)
	return data
}

// sizedPDF builds one page per entry of sizes, each [width, height] in points.
func sizedPDF(t *testing.T, sizes [][2]float64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(len(sizes))))
	doc := pdfwriter.New(pdfwriter.DefaultOptions())
	for _, size := range sizes {
		img, err := doc.AddJPEG(noisyJPEG(t, rng, 48, 48, 90), 48, 48)
		require.NoError(t, err)
		page, err := doc.NewImagePage(size[0], size[1], img)
		require.NoError(t, err)
		require.NoError(t, doc.AttachPage(page))
	}
	data, err := doc.Bytes()
	require.NoError(t, err)
	return data
}

func pageSizes(t *testing.T, data []byte) [][2]float64 {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	require.NoError(t, err)
	sizes := make([][2]float64, len(dims))
	for i, d := range dims {
		sizes[i] = [2]float64{d.Width, d.Height}
	}
	return sizes
}

// textPDF builds a minimal single-page document with one line of text.
func textPDF(t *testing.T) []byte {
	t.Helper()
	content := "BT /F1 18 Tf 72 720 Td (Hello, compression) Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func encryptedPDF(t *testing.T) []byte {
	t.Helper()
	plain := imagePDF(t, 1, 32, 32)
	var out bytes.Buffer
	conf := model.NewAESConfiguration("user-secret", "owner-secret", 256)
	require.NoError(t, api.Encrypt(bytes.NewReader(plain), &out, conf))
	return out.Bytes()
}

func countPages(t *testing.T, data []byte) int {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	require.NoError(t, err)
	return n
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
