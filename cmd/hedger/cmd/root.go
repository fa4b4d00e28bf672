package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hedger",
	Short: "A hedge-mode futures trading bot",
	Long: `Hedger runs one control loop per configured trading pair on a futures
exchange in hedge mode, holding independent long and short positions.

It provides tools for:
  - Running the bot live or against a paper exchange
  - Generating and validating configuration files
  - Inspecting the persisted position state
  - Listing the trade journal

Complete documentation is available at https://github.com/rustyeddy/hedger`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file (YAML or JSON)")
}
