package compression

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// magicWindow is how far into the input the %PDF- marker may appear.
const magicWindow = 1024

var pdfMagic = []byte("%PDF-")

type state string

const (
	stateIdle            state = "idle"
	stateEngineSelection state = "engine_selection"
	stateTranscoding     state = "transcoding"
	stateSizeCheck       state = "size_check"
	stateDone            state = "done"
	stateError           state = "error"
)

// EnginePreference restricts which engine the selector may choose.
type EnginePreference string

const (
	PreferAuto     EnginePreference = "auto"
	PreferNative   EnginePreference = "native"
	PreferFallback EnginePreference = "fallback"
)

// ParseEnginePreference maps a flag value to a preference; unknown values
// mean auto.
func ParseEnginePreference(s string) EnginePreference {
	switch EnginePreference(strings.ToLower(strings.TrimSpace(s))) {
	case PreferNative:
		return PreferNative
	case PreferFallback:
		return PreferFallback
	default:
		return PreferAuto
	}
}

// NativeFactory builds a native transcoder for a freshly probed binary.
type NativeFactory func(bin Binary) Transcoder

// SelectorOptions tune the selector's policy.
type SelectorOptions struct {
	// FallbackOnNativeFailure reruns a failed native transcode with the
	// render engine in the same request.
	FallbackOnNativeFailure bool
	// Prepass, when set, is tried before the chosen engine and replaces the
	// input when it produces fewer bytes.
	Prepass Optimizer
	// MaxInputBytes rejects larger inputs; zero disables the ceiling.
	MaxInputBytes int64
}

// Request is one compression job handed over by the boundary.
type Request struct {
	Data     []byte
	Level    Level
	Filename string
	Engine   EnginePreference
}

// Selector chooses an engine per request, runs it and guarantees the result
// is never larger than the input.
type Selector struct {
	prober   Prober
	native   NativeFactory
	fallback Transcoder
	opts     SelectorOptions
	logger   *slog.Logger
}

func NewSelector(prober Prober, native NativeFactory, fallback Transcoder, opts SelectorOptions, logger *slog.Logger) *Selector {
	return &Selector{
		prober:   prober,
		native:   native,
		fallback: fallback,
		opts:     opts,
		logger:   logger,
	}
}

// Compress runs one request to completion. Every returned error is an *Error.
func (s *Selector) Compress(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	s.transition(stateIdle, stateEngineSelection, "filename", req.Filename, "size", len(req.Data))

	if err := s.validate(req.Data); err != nil {
		return nil, s.fail(stateEngineSelection, err)
	}

	originalSize := int64(len(req.Data))
	baseline := s.prepass(ctx, req.Data)

	engine, err := s.choose(ctx, req.Engine)
	if err != nil {
		return nil, s.fail(stateEngineSelection, err)
	}

	s.transition(stateEngineSelection, stateTranscoding, "engine", engine.Engine(), "level", req.Level)
	output, err := engine.Transcode(ctx, baseline, req.Level)
	if err != nil && engine.Engine() == EngineNative && s.opts.FallbackOnNativeFailure && errors.Is(err, ErrTranscode) {
		s.logger.Warn("Native engine failed, retrying with render engine", "error", err)
		engine = s.fallback
		output, err = engine.Transcode(ctx, baseline, req.Level)
	}
	if err != nil {
		s.logger.Warn("Transcode failed", "engine", engine.Engine(), "error", err)
		return nil, s.fail(stateTranscoding, err)
	}

	s.transition(stateTranscoding, stateSizeCheck, "output_size", len(output), "baseline_size", len(baseline))
	data, unchanged := sizeCheck(baseline, output)

	result := AssembleResult(data, engine.Engine(), req.Level, req.Filename, originalSize, unchanged)
	s.transition(stateSizeCheck, stateDone,
		"engine", result.Engine,
		"original_size", result.OriginalSize,
		"final_size", result.FinalSize,
		"unchanged", result.Unchanged,
		"duration", time.Since(start))

	return result, nil
}

func (s *Selector) validate(data []byte) error {
	if len(data) == 0 {
		return NewValidationError("document is empty")
	}
	if s.opts.MaxInputBytes > 0 && int64(len(data)) > s.opts.MaxInputBytes {
		return NewPayloadTooLargeError(int64(len(data)), s.opts.MaxInputBytes)
	}
	head := data
	if len(head) > magicWindow {
		head = head[:magicWindow]
	}
	if !bytes.Contains(head, pdfMagic) {
		return NewValidationError("input is not a PDF document")
	}
	return nil
}

// choose probes on every call; availability is never cached.
func (s *Selector) choose(ctx context.Context, pref EnginePreference) (Transcoder, error) {
	if pref == PreferFallback {
		return s.fallback, nil
	}

	bin, ok := s.prober.Probe(ctx)
	switch {
	case ok:
		s.logger.Debug("Native engine available", "path", bin.Path, "version", bin.Version)
		return s.native(bin), nil
	case pref == PreferNative:
		return nil, NewTranscodeError("ghostscript not found", nil)
	default:
		s.logger.Debug("Native engine unavailable, using render engine")
		return s.fallback, nil
	}
}

func (s *Selector) prepass(ctx context.Context, data []byte) []byte {
	if s.opts.Prepass == nil {
		return data
	}

	optimized, err := s.opts.Prepass.Optimize(ctx, data)
	if err != nil {
		s.logger.Warn("Lossless pre-pass failed, continuing with original", "error", err)
		return data
	}
	if len(optimized) == 0 || len(optimized) >= len(data) {
		return data
	}

	s.logger.Debug("Lossless pre-pass reduced input", "before", len(data), "after", len(optimized))
	return optimized
}

func (s *Selector) transition(from, to state, args ...any) {
	s.logger.Debug("Compression state", append([]any{"from", from, "to", to}, args...)...)
}

func (s *Selector) fail(from state, err error) error {
	e := Classify(err)
	s.transition(from, stateError, "kind", e.Kind)
	if e.Kind == KindInternal {
		s.logger.Error("Unclassified compression failure", "error", err)
	}
	return e
}

// sizeCheck returns output unless it is not smaller than input, in which
// case input is returned and unchanged is true.
func sizeCheck(input, output []byte) (data []byte, unchanged bool) {
	if len(output) == 0 || len(output) >= len(input) {
		return input, true
	}
	return output, false
}
