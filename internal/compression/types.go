package compression

import "context"

// Engine identifies which transcoding strategy produced a result.
type Engine string

const (
	EngineNative   Engine = "native"
	EngineFallback Engine = "fallback"
)

// Transcoder converts a document into a (hopefully) smaller document.
type Transcoder interface {
	Engine() Engine
	Transcode(ctx context.Context, doc []byte, level Level) ([]byte, error)
}

// PageObserver is notified after each output page is attached.
type PageObserver func(page, total int)

// Result is the engine's answer for one request.
type Result struct {
	Data         []byte  `json:"-"`
	Engine       Engine  `json:"engine"`
	Level        Level   `json:"level"`
	Filename     string  `json:"filename"`
	OriginalSize int64   `json:"original_size"`
	FinalSize    int64   `json:"final_size"`
	Ratio        float64 `json:"compression_ratio"`
	// Unchanged is set when the transcoded output was discarded in favour
	// of the submitted bytes.
	Unchanged bool `json:"unchanged"`
}

// Saved returns the number of bytes the result saves over the input.
func (r *Result) Saved() int64 {
	return r.OriginalSize - r.FinalSize
}
