package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pdfsqueeze/internal/common"
	"pdfsqueeze/internal/compression"
)

var (
	compressLevel  string
	compressOutput string
	compressEngine string
)

var compressCmd = &cobra.Command{
	Use:   "compress <input.pdf>",
	Short: "Compress a single PDF file",
	Long: `Compresses one PDF and writes <name>_compressed.pdf next to it unless -o is
given. The output is never larger than the input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd, args[0])
	},
}

func init() {
	compressCmd.Flags().StringVarP(&compressLevel, "level", "l", common.DefaultCompressionLevel, "compression level: low, medium or high")
	compressCmd.Flags().StringVarP(&compressOutput, "output", "o", "", "output file (default: <input>_compressed.pdf)")
	compressCmd.Flags().StringVar(&compressEngine, "engine", string(compression.PreferAuto), "engine: auto, native or fallback")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, input string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	level := compression.ParseLevel(compressLevel)
	pref := compression.ParseEnginePreference(compressEngine)

	printInfo(out, "Compressing %s (%s) at level %s", filepath.Base(input), humanSize(int64(len(data))), level)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
	defer cancel()

	// The spinner covers probing and the native run; the first rendered
	// page swaps it for a progress bar.
	spin := newSpinner(errOut, "compressing")
	spin.Start()
	spinning := true

	var bar *progressbar.ProgressBar
	ctx = compression.WithPageObserver(ctx, func(page, total int) {
		if spinning {
			spin.Stop()
			spinning = false
		}
		if bar == nil {
			bar = newPageBar(errOut, total)
		}
		bar.Set(page)
	})

	selector := newSelector(cfg, newProber(cfg))
	result, err := selector.Compress(ctx, compression.Request{
		Data:     data,
		Level:    level,
		Filename: input,
		Engine:   pref,
	})
	if spinning {
		spin.Stop()
	}
	if err != nil {
		e := compression.Classify(err)
		cfg.Logger.Debug("Compression failed", "error", err)
		return errors.New(e.UserMessage())
	}

	dst := compressOutput
	if dst == "" {
		dst = filepath.Join(filepath.Dir(input), result.Filename)
	}
	if err := common.WriteFile(dst, result.Data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if result.Unchanged {
		printWarning(out, "%s engine could not shrink the file; original kept (%s)", result.Engine, humanSize(result.FinalSize))
	} else {
		printSuccess(out, "%s → %s (saved %s, %.1f%%) with %s engine",
			humanSize(result.OriginalSize), humanSize(result.FinalSize),
			humanSize(result.Saved()), result.Ratio, result.Engine)
	}
	printInfo(out, "Wrote %s", dst)

	return nil
}
