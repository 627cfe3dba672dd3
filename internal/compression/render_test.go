package compression

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPreservesPageCount(t *testing.T) {
	tests := []struct {
		name  string
		pages int
		level Level
	}{
		{"one page low", 1, LevelLow},
		{"three pages medium", 3, LevelMedium},
		{"five pages high", 5, LevelHigh},
	}

	r := NewPageRenderTranscoder(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := imagePDF(t, tt.pages, 200, 260)

			out, err := r.Transcode(context.Background(), input, tt.level)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
			assert.Equal(t, tt.pages, countPages(t, out))
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r := NewPageRenderTranscoder(testLogger())
	input := imagePDF(t, 2, 120, 160)

	first, err := r.Transcode(context.Background(), input, LevelMedium)
	require.NoError(t, err)
	second, err := r.Transcode(context.Background(), input, LevelMedium)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderObserverSeesPagesInOrder(t *testing.T) {
	r := NewPageRenderTranscoder(testLogger())
	input := imagePDF(t, 4, 64, 64)

	var seen []int
	ctx := WithPageObserver(context.Background(), func(page, total int) {
		assert.Equal(t, 4, total)
		seen = append(seen, page)
	})

	_, err := r.Transcode(ctx, input, LevelHigh)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestRenderKeepsExactPageSizesInOrder(t *testing.T) {
	sizes := [][2]float64{
		{595.28, 841.89},
		{612, 792},
		{841.89, 595.28},
		{419.53, 595.28},
	}
	r := NewPageRenderTranscoder(testLogger())

	for _, level := range []Level{LevelLow, LevelMedium, LevelHigh} {
		t.Run(string(level), func(t *testing.T) {
			out, err := r.Transcode(context.Background(), sizedPDF(t, sizes), level)
			require.NoError(t, err)

			got := pageSizes(t, out)
			require.Len(t, got, len(sizes))
			for i, want := range sizes {
				assert.InDelta(t, want[0], got[i][0], 0.001, "page %d width", i+1)
				assert.InDelta(t, want[1], got[i][1], 0.001, "page %d height", i+1)
			}
		})
	}
}

func TestRenderHigherLevelIsSmaller(t *testing.T) {
	r := NewPageRenderTranscoder(testLogger())
	input := imagePDF(t, 1, 400, 520)

	low, err := r.Transcode(context.Background(), input, LevelLow)
	require.NoError(t, err)
	high, err := r.Transcode(context.Background(), input, LevelHigh)
	require.NoError(t, err)

	assert.Less(t, len(high), len(low))
}

func TestRenderEncryptedDocument(t *testing.T) {
	r := NewPageRenderTranscoder(testLogger())

	out, err := r.Transcode(context.Background(), encryptedPDF(t), LevelMedium)

	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrEncrypted)
	assert.Contains(t, err.Error(), "password")
}

func TestRenderGarbageInput(t *testing.T) {
	r := NewPageRenderTranscoder(testLogger())

	_, err := r.Transcode(context.Background(), []byte("%PDF-1.4\nthis is not really a pdf"), LevelMedium)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRenderCancelledContext(t *testing.T) {
	r := NewPageRenderTranscoder(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Transcode(ctx, imagePDF(t, 2, 32, 32), LevelMedium)
	assert.ErrorIs(t, err, ErrTranscode)
}
