package compression

import (
	"math"

	"pdfsqueeze/internal/common"
)

// AssembleResult packages the bytes chosen by the size check with the
// metadata the boundary layer reports.
func AssembleResult(data []byte, engine Engine, level Level, filename string, originalSize int64, unchanged bool) *Result {
	final := int64(len(data))

	var ratio float64
	if originalSize > 0 {
		ratio = math.Round(float64(originalSize-final)/float64(originalSize)*10000) / 100
	}

	return &Result{
		Data:         data,
		Engine:       engine,
		Level:        level,
		Filename:     common.CompressedFilename(filename),
		OriginalSize: originalSize,
		FinalSize:    final,
		Ratio:        ratio,
		Unchanged:    unchanged,
	}
}
