package pdfwriter

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

var (
	ErrUnknownObject   = errors.New("pdfwriter: unknown object")
	ErrNotAPage        = errors.New("pdfwriter: object is not a page")
	ErrAlreadyAttached = errors.New("pdfwriter: page already attached")
	ErrInvalidSize     = errors.New("pdfwriter: width and height must be positive")
)

const (
	catalogRef Ref = 1
	pagesRef   Ref = 2
)

// Options control serialization.
type Options struct {
	// Version is written in the header, e.g. "1.7".
	Version string
	// CompressStreams applies FlateDecode to every stream that does not
	// already carry a filter.
	CompressStreams bool
	// CompressionLevel is the zlib level used when CompressStreams is set.
	CompressionLevel int
	// Producer, when set, is recorded in the document information dictionary.
	Producer string
}

// DefaultOptions returns the serialization settings used by the render engine.
func DefaultOptions() Options {
	return Options{
		Version:          "1.7",
		CompressStreams:  true,
		CompressionLevel: zlib.BestCompression,
	}
}

// Document accumulates objects and an ordered page list. Creating a page and
// attaching it to the page tree are separate steps: a page that is created
// but never attached is serialized as an unreachable object and does not
// appear in the output's page sequence.
type Document struct {
	objects  []*object
	attached []Ref
	isPage   map[Ref]bool
	opts     Options
}

// New creates an empty document. Object 1 is the catalog and object 2 the
// page tree root.
func New(opts Options) *Document {
	if opts.Version == "" {
		opts.Version = "1.7"
	}
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = zlib.DefaultCompression
	}

	d := &Document{
		isPage: make(map[Ref]bool),
		opts:   opts,
	}
	d.add(Dict{"Type": Name("Catalog"), "Pages": pagesRef}, nil, false)
	d.add(nil, nil, false) // page tree, filled in at serialization
	return d
}

func (d *Document) add(dict Dict, stream []byte, raw bool) Ref {
	ref := Ref(len(d.objects) + 1)
	d.objects = append(d.objects, &object{ref: ref, dict: dict, stream: stream, raw: raw})
	return ref
}

func (d *Document) lookup(ref Ref) (*object, bool) {
	if ref < 1 || int(ref) > len(d.objects) {
		return nil, false
	}
	return d.objects[ref-1], true
}

// AddJPEG registers DCT-encoded RGB image data as an image XObject sized
// width x height pixels.
func (d *Document) AddJPEG(data []byte, width, height int) (Ref, error) {
	if width <= 0 || height <= 0 {
		return 0, ErrInvalidSize
	}
	dict := Dict{
		"Type":             Name("XObject"),
		"Subtype":          Name("Image"),
		"Width":            width,
		"Height":           height,
		"ColorSpace":       Name("DeviceRGB"),
		"BitsPerComponent": 8,
		"Filter":           Name("DCTDecode"),
	}
	return d.add(dict, data, true), nil
}

// AddStream registers an unfiltered stream object with the given dictionary.
func (d *Document) AddStream(dict Dict, data []byte) Ref {
	if dict == nil {
		dict = Dict{}
	}
	if data == nil {
		data = []byte{}
	}
	return d.add(dict, data, false)
}

// NewImagePage creates a page of width x height points whose only content
// is image scaled to cover it. The page is not part of the page tree until
// AttachPage is called.
func (d *Document) NewImagePage(width, height float64, image Ref) (Ref, error) {
	if width <= 0 || height <= 0 {
		return 0, ErrInvalidSize
	}
	if _, ok := d.lookup(image); !ok {
		return 0, fmt.Errorf("%w: image %d", ErrUnknownObject, image)
	}

	content := fmt.Sprintf("q\n%s 0 0 %s 0 0 cm\n/Im0 Do\nQ\n", formatNumber(width), formatNumber(height))
	contentRef := d.AddStream(Dict{}, []byte(content))

	page := d.add(Dict{
		"Type":      Name("Page"),
		"Parent":    pagesRef,
		"MediaBox":  Array{0, 0, width, height},
		"Resources": Dict{"XObject": Dict{"Im0": image}},
		"Contents":  contentRef,
	}, nil, false)
	d.isPage[page] = true

	return page, nil
}

// AttachPage appends a created page to the end of the page tree.
func (d *Document) AttachPage(page Ref) error {
	if _, ok := d.lookup(page); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, page)
	}
	if !d.isPage[page] {
		return fmt.Errorf("%w: %d", ErrNotAPage, page)
	}
	for _, r := range d.attached {
		if r == page {
			return fmt.Errorf("%w: %d", ErrAlreadyAttached, page)
		}
	}
	d.attached = append(d.attached, page)
	return nil
}

// PageCount returns the number of attached pages.
func (d *Document) PageCount() int {
	return len(d.attached)
}

// ObjectCount returns the number of objects created so far, attached or not.
func (d *Document) ObjectCount() int {
	return len(d.objects)
}

// WriteTo serializes the document. Every created object is written; no
// reachability pruning is done.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%%PDF-%s\n", d.opts.Version)
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	kids := make(Array, len(d.attached))
	for i, r := range d.attached {
		kids[i] = r
	}
	d.objects[pagesRef-1].dict = Dict{
		"Type":  Name("Pages"),
		"Kids":  kids,
		"Count": len(d.attached),
	}

	var infoRef Ref
	if d.opts.Producer != "" {
		infoRef = d.add(Dict{"Producer": d.opts.Producer}, nil, false)
		defer func() { d.objects = d.objects[:len(d.objects)-1] }()
	}

	offsets := make([]int, len(d.objects))
	for i, obj := range d.objects {
		offsets[i] = buf.Len()
		if err := d.writeObject(&buf, obj); err != nil {
			return 0, err
		}
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(d.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	trailer := Dict{"Size": len(d.objects) + 1, "Root": catalogRef}
	if infoRef != 0 {
		trailer["Info"] = infoRef
	}
	buf.WriteString("trailer\n")
	formatDict(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xref)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (d *Document) writeObject(buf *bytes.Buffer, obj *object) error {
	fmt.Fprintf(buf, "%d 0 obj\n", int(obj.ref))

	if !obj.isStream() {
		formatDict(buf, obj.dict)
		buf.WriteString("\nendobj\n")
		return nil
	}

	data := obj.stream
	dict := make(Dict, len(obj.dict)+2)
	for k, v := range obj.dict {
		dict[k] = v
	}

	if d.opts.CompressStreams && !obj.raw && len(data) > 0 {
		compressed, err := deflate(data, d.opts.CompressionLevel)
		if err != nil {
			return fmt.Errorf("pdfwriter: compress object %d: %w", obj.ref, err)
		}
		data = compressed
		dict["Filter"] = Name("FlateDecode")
	}
	dict["Length"] = len(data)

	formatDict(buf, dict)
	buf.WriteString("\nstream\n")
	buf.Write(data)
	buf.WriteString("\nendstream\nendobj\n")
	return nil
}

func deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Bytes returns the serialized document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
