package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted position state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted state document as JSON",
	Long: `Print every symbol's persisted record: the open flags of both sides and
the entry time and price of each open side.

Example:
  hedger state show -c config.yaml`,
	Args: cobra.NoArgs,
	RunE: runStateShow,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
}

func runStateShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := state.Open(cfg.State.Type, cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer st.Close()

	doc, err := st.Dump(cmd.Context())
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
