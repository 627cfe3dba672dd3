package compression

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu would otherwise create a config directory under the user's home.
	api.DisableConfigDir()
}

// Optimizer performs a lossless rewrite of a document.
type Optimizer interface {
	Optimize(ctx context.Context, doc []byte) ([]byte, error)
}

// LosslessOptimizer removes redundant objects and recompresses streams with
// pdfcpu without touching image data.
type LosslessOptimizer struct{}

func NewLosslessOptimizer() *LosslessOptimizer {
	return &LosslessOptimizer{}
}

func (o *LosslessOptimizer) Optimize(ctx context.Context, doc []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(doc), &out, conf); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	return out.Bytes(), nil
}
