package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade journal",
	Long: `Query trade journal records from the SQLite database named by
journal.db_path, or by --db.

Examples:
  hedger journal list
  hedger journal list BTCUSDT -n 20`,
}

var journalListCmd = &cobra.Command{
	Use:   "list [symbol]",
	Short: "List journaled trades, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalList,
}

var (
	journalDBPath string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (overrides the config)")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "maximum rows, 0 for all")
}

func journalPath() (string, error) {
	if journalDBPath != "" {
		return journalDBPath, nil
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if cfg.Journal.DBPath == "" {
		return "", fmt.Errorf("journal.db_path is not set")
	}
	return cfg.Journal.DBPath, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	path, err := journalPath()
	if err != nil {
		return err
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	symbol := ""
	if len(args) == 1 {
		symbol = args[0]
	}
	trades, err := j.List(cmd.Context(), symbol, journalLimit)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Println("no trades")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPENED\tSYMBOL\tSIDE\tQTY\tENTRY\tSL\tTP\tPROTECTED\tCLOSED\tREASON")
	for _, t := range trades {
		closed := "-"
		if !t.Open() {
			closed = t.CloseTime.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%g\t%g\t%v\t%s\t%s\n",
			t.OpenTime.Local().Format(time.DateTime), t.Symbol, t.Side, t.Quantity,
			t.EntryPrice, t.StopLoss, t.TakeProfit, t.Protected, closed, t.CloseReason)
	}
	return w.Flush()
}
