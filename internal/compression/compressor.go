package compression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"pdfsqueeze/internal/common"
)

// NativeTranscoder re-encodes documents out of process with Ghostscript.
type NativeTranscoder struct {
	ghostscriptPath string
	workDir         string
	timeout         time.Duration
	logger          *slog.Logger
}

// NewNativeTranscoder creates a transcoder bound to a discovered binary.
func NewNativeTranscoder(ghostscriptPath, workDir string, timeout time.Duration, logger *slog.Logger) *NativeTranscoder {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if timeout <= 0 {
		timeout = common.DefaultNativeTimeout
	}
	return &NativeTranscoder{
		ghostscriptPath: ghostscriptPath,
		workDir:         workDir,
		timeout:         timeout,
		logger:          logger,
	}
}

func (c *NativeTranscoder) Engine() Engine {
	return EngineNative
}

// Transcode writes doc to a request-scoped temp file, runs Ghostscript and
// reads the produced file back. Both temp files are removed on every path.
func (c *NativeTranscoder) Transcode(ctx context.Context, doc []byte, level Level) ([]byte, error) {
	if c.ghostscriptPath == "" {
		return nil, NewTranscodeError("ghostscript not found", nil)
	}

	if err := os.MkdirAll(c.workDir, common.DefaultFilePermissions); err != nil {
		return nil, NewTranscodeError("create work dir", err)
	}

	id := common.GenerateUUID()
	inputPath := filepath.Join(c.workDir, "gs-in-"+id+".pdf")
	outputPath := filepath.Join(c.workDir, "gs-out-"+id+".pdf")
	defer c.cleanup(inputPath, outputPath)

	if err := os.WriteFile(inputPath, doc, 0600); err != nil {
		return nil, NewTranscodeError("write input", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := ghostscriptArgs(level, inputPath, outputPath)
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.ghostscriptPath, args...)
	cmd.WaitDelay = 2 * time.Second
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, NewTranscodeError(fmt.Sprintf("ghostscript timed out after %s", c.timeout), ctxErr)
		}
		if passwordProtected(output) {
			return nil, nativeEncryptedError(output)
		}
		return nil, NewTranscodeError("ghostscript failed", fmt.Errorf("%w, output: %s", err, trimOutput(output)))
	}

	data, err := os.ReadFile(outputPath)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		if passwordProtected(output) {
			return nil, nativeEncryptedError(output)
		}
		return nil, NewTranscodeError("ghostscript did not create output file", nil)
	}
	if err != nil {
		return nil, NewTranscodeError("read output", err)
	}

	c.logger.Debug("Ghostscript finished",
		"level", level,
		"duration", time.Since(start),
		"input_size", len(doc),
		"output_size", len(data))

	return data, nil
}

func ghostscriptArgs(level Level, inputPath, outputPath string) []string {
	args := []string{
		"-sDEVICE=pdfwrite",
		"-dPDFSETTINGS=" + level.Params().PDFSettings,
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dAutoRotatePages=/None",
		"-dDetectDuplicateImages=true",
		"-dCompressFonts=true",
	}

	if level == LevelHigh {
		args = append(args, "-dCompressStreams=true")
	}

	return append(args, "-sOutputFile="+outputPath, inputPath)
}

func (c *NativeTranscoder) cleanup(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to remove temp file", "path", p, "error", err)
		}
	}
}

// passwordMarkers are fragments of Ghostscript's diagnostics for encrypted
// input, matched case-insensitively.
var passwordMarkers = []string{
	"requires a password",
	"password did not work",
	"encrypted",
	"encryption",
}

func passwordProtected(output []byte) bool {
	s := strings.ToLower(string(output))
	for _, m := range passwordMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func nativeEncryptedError(output []byte) *Error {
	e := NewEncryptedDocumentError(errors.New(trimOutput(output)))
	e.Op = "native"
	return e
}

func trimOutput(output []byte) string {
	const max = 512
	s := strings.TrimSpace(string(output))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
