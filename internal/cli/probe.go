package cli

import (
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report whether Ghostscript is available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		prober := newProber(cfg)
		for _, c := range prober.Candidates() {
			printInfo(out, "candidate %s", c)
		}

		bin, ok := prober.Probe(cmd.Context())
		if !ok {
			printWarning(out, "Ghostscript not found; the render engine will be used")
			return nil
		}

		printSuccess(out, "Ghostscript %s at %s", bin.Version, bin.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
