package compression

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdfsqueeze/internal/pdfwriter"
)

// nativeDPI is the resolution at which one page unit equals one pixel.
const nativeDPI = 72.0

type observerKey struct{}

// WithPageObserver returns a context that carries fn to the render engine.
func WithPageObserver(ctx context.Context, fn PageObserver) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

func pageObserverFrom(ctx context.Context) PageObserver {
	fn, _ := ctx.Value(observerKey{}).(PageObserver)
	return fn
}

// PageRenderTranscoder rebuilds a document in process: every page is
// rasterized, re-encoded as JPEG and placed as the sole content of a new page
// of the same size.
type PageRenderTranscoder struct {
	logger   *slog.Logger
	producer string
}

// NewPageRenderTranscoder creates the in-process engine.
func NewPageRenderTranscoder(logger *slog.Logger) *PageRenderTranscoder {
	return &PageRenderTranscoder{logger: logger, producer: "pdfsqueeze"}
}

func (r *PageRenderTranscoder) Engine() Engine {
	return EngineFallback
}

// Transcode renders doc page by page at the level's scale and quality.
// Pages are processed strictly in order and only one raster is alive at a
// time.
func (r *PageRenderTranscoder) Transcode(ctx context.Context, doc []byte, level Level) ([]byte, error) {
	src, err := fitz.NewFromMemory(doc)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, NewEncryptedDocumentError(err)
		}
		return nil, NewDecodeError("cannot open document", err)
	}
	defer src.Close()

	total := src.NumPage()
	if total < 1 {
		return nil, NewDecodeError("document has no pages", nil)
	}

	dims := r.pageSizes(doc, total)
	params := level.Params()
	observer := pageObserverFrom(ctx)
	start := time.Now()

	opts := pdfwriter.DefaultOptions()
	opts.Producer = r.producer
	out := pdfwriter.New(opts)

	for n := 0; n < total; n++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{
				Kind:    KindTranscode,
				Op:      "render",
				Message: fmt.Sprintf("stopped before page %d of %d", n+1, total),
				Err:     err,
				Timeout: isTimeout(err),
			}
		}

		var dim *types.Dim
		if dims != nil {
			dim = &dims[n]
		}
		if err := r.renderPage(src, out, n, dim, params); err != nil {
			return nil, err
		}

		if observer != nil {
			observer(n+1, total)
		}
	}

	data, err := out.Bytes()
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: "render", Message: "serialize output", Err: err}
	}

	r.logger.Debug("Page render finished",
		"level", level,
		"pages", total,
		"duration", time.Since(start),
		"input_size", len(doc),
		"output_size", len(data))

	return data, nil
}

// pageSizes reads the exact media box of every page. fitz only reports whole
// points, so it is used only when the document cannot be read this way.
func (r *PageRenderTranscoder) pageSizes(doc []byte, total int) []types.Dim {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	dims, err := api.PageDims(bytes.NewReader(doc), conf)
	if err != nil {
		r.logger.Debug("Falling back to rounded page sizes", "error", err)
		return nil
	}
	if len(dims) != total {
		r.logger.Debug("Page size count mismatch", "sizes", len(dims), "pages", total)
		return nil
	}
	return dims
}

// renderPage handles one page. The raster is local to encodePage so it is
// unreachable by the time the next page is rendered.
func (r *PageRenderTranscoder) renderPage(src *fitz.Document, out *pdfwriter.Document, n int, dim *types.Dim, params LevelParams) error {
	var width, height float64
	if dim != nil {
		width, height = dim.Width, dim.Height
	} else {
		bound, err := src.Bound(n)
		if err != nil {
			return NewDecodeError(fmt.Sprintf("page %d bounds", n+1), err)
		}
		width, height = float64(bound.Dx()), float64(bound.Dy())
	}
	if width <= 0 || height <= 0 {
		return NewDecodeError(fmt.Sprintf("page %d has an empty media box", n+1), nil)
	}

	encoded, pxWidth, pxHeight, err := encodePage(src, n, params)
	if err != nil {
		return err
	}

	img, err := out.AddJPEG(encoded, pxWidth, pxHeight)
	if err != nil {
		return &Error{Kind: KindInternal, Op: "render", Message: fmt.Sprintf("page %d image", n+1), Err: err}
	}

	page, err := out.NewImagePage(width, height, img)
	if err != nil {
		return &Error{Kind: KindInternal, Op: "render", Message: fmt.Sprintf("page %d", n+1), Err: err}
	}

	if err := out.AttachPage(page); err != nil {
		return &Error{Kind: KindInternal, Op: "render", Message: fmt.Sprintf("attach page %d", n+1), Err: err}
	}

	return nil
}

func encodePage(src *fitz.Document, n int, params LevelParams) ([]byte, int, int, error) {
	raster, err := src.ImageDPI(n, nativeDPI*params.RenderScale)
	if err != nil {
		return nil, 0, 0, NewDecodeError(fmt.Sprintf("rasterize page %d", n+1), err)
	}

	size := raster.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, 0, 0, NewDecodeError(fmt.Sprintf("page %d rendered empty", n+1), nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: params.JPEGQuality}); err != nil {
		return nil, 0, 0, &Error{Kind: KindInternal, Op: "render", Message: fmt.Sprintf("encode page %d", n+1), Err: err}
	}

	return buf.Bytes(), size.X, size.Y, nil
}
