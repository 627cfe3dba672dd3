// Package cli wires configuration to the engine and exposes the commands.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pdfsqueeze/internal/config"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfsqueeze",
	Short: "Shrink PDF documents with Ghostscript or in-process page re-rendering",
	Long: `pdfsqueeze re-encodes the raster content of PDF documents. It uses Ghostscript
when one is installed and otherwise re-renders every page as a JPEG image. The
result is never larger than the input.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
		cfg.Logger = config.NewLogger(rootCmd.ErrOrStderr(), cfg.Log)
	}
	return cfg, nil
}
