package compression

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultGhostscriptCandidates are tried in order after any configured path.
var DefaultGhostscriptCandidates = []string{
	"/usr/bin/gs",
	"/usr/local/bin/gs",
	"/opt/homebrew/bin/gs",
	"/opt/local/bin/gs",
}

// Binary describes a working Ghostscript executable.
type Binary struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Prober reports whether a native transcoder can be used.
type Prober interface {
	Probe(ctx context.Context) (Binary, bool)
}

// GhostscriptProbe locates Ghostscript by walking a fixed candidate list and
// checking each one answers --version.
type GhostscriptProbe struct {
	candidates []string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewGhostscriptProbe creates a probe. A non-empty configured path is tried
// before the candidates; "gs" on $PATH is tried last.
func NewGhostscriptProbe(configured string, candidates []string, timeout time.Duration, logger *slog.Logger) *GhostscriptProbe {
	if len(candidates) == 0 {
		candidates = DefaultGhostscriptCandidates
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	list := make([]string, 0, len(candidates)+2)
	if configured != "" {
		list = append(list, configured)
	}
	list = append(list, candidates...)
	if p, err := exec.LookPath("gs"); err == nil {
		list = append(list, p)
	}

	return &GhostscriptProbe{
		candidates: dedupe(list),
		timeout:    timeout,
		logger:     logger,
	}
}

// Candidates returns the ordered list of paths the probe will try.
func (p *GhostscriptProbe) Candidates() []string {
	return append([]string(nil), p.candidates...)
}

// Probe returns the first candidate that is executable and answers
// --version. Absence is a normal outcome and is never an error.
func (p *GhostscriptProbe) Probe(ctx context.Context) (Binary, bool) {
	for _, path := range p.candidates {
		if !isExecutable(path) {
			continue
		}

		version, err := p.check(ctx, path)
		if err != nil {
			p.logger.Debug("Ghostscript candidate failed liveness check", "path", path, "error", err)
			continue
		}

		p.logger.Debug("Ghostscript found", "path", path, "version", version)
		return Binary{Path: path, Version: version}, true
	}

	return Binary{}, false
}

func (p *GhostscriptProbe) check(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Stdout = &out
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func isExecutable(path string) bool {
	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() {
		return false
	}
	return stat.Mode()&0111 != 0
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
