package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hedger/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage the bot configuration file.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  hedger config init -o config.yaml
  hedger config validate -c config.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new paper-trading configuration with one BTCUSDT pair.

Example:
  hedger config init -o config.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check that a configuration file loads, every strategy resolves, and the
bot would be allowed to start.

Example:
  hedger config validate -c config.yaml`,
	RunE: runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "config.yaml", "output config file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  hedger run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := cfg.CheckLive(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	mode := "live"
	if cfg.Exchange.DryRun {
		mode = fmt.Sprintf("paper ($%.2f)", cfg.Exchange.PaperBalance)
	} else if cfg.Exchange.Testnet {
		mode = "testnet"
	}

	fmt.Printf("✓ Configuration valid: %s\n", configPath)
	fmt.Printf("  Mode: %s\n", mode)
	fmt.Printf("  Risk: %.2f%% per trade\n", cfg.Risk.Fraction*100)
	fmt.Printf("  State: %s (%s)\n", cfg.State.Type, cfg.State.Path)
	for _, p := range cfg.EnabledPairs() {
		fmt.Printf("  Pair: %s %s x%d %s (long %v, short %v)\n",
			p.Symbol, p.Interval, p.Leverage, p.Strategy, p.Long.Enabled, p.Short.Enabled)
	}
	return nil
}
