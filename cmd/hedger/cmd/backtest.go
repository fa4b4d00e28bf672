package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/hedger/backtest"
	"github.com/rustyeddy/hedger/bot"
	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/internal/logx"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through a trading pair",
	Long: `Backtest runs one configured trading pair against the paper exchange on a
simulated clock, using the same loop, sizing, brackets and timeouts as a
live run.

The bars file is CSV: time,open,high,low,close[,volume] with time in
RFC3339 or Unix milliseconds.

Example:
  hedger backtest -c config.yaml --bars data/btcusdt-1h.csv --symbol BTCUSDT`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	btBarsPath string
	btSymbol   string
	btBalance  float64
	btStep     string
	btTick     string
	btMinQty   string
	btCloseEnd bool
	btVerbose  bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to bar CSV (required)")
	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "s", "", "trading pair to replay (default: first enabled pair)")
	backtestCmd.Flags().Float64Var(&btBalance, "balance", 0, "starting balance (default: exchange.paper_balance)")
	backtestCmd.Flags().StringVar(&btStep, "step", "0.001", "quantity step size")
	backtestCmd.Flags().StringVar(&btTick, "tick", "0.1", "price tick size")
	backtestCmd.Flags().StringVar(&btMinQty, "min-qty", "0", "minimum order quantity")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "close open positions at the last bar")
	backtestCmd.Flags().BoolVarP(&btVerbose, "verbose", "v", false, "log every loop event")

	backtestCmd.MarkFlagRequired("bars")
}

func pickPair(cfg *config.Config, symbol string) (config.PairConfig, error) {
	for _, p := range cfg.TradingPairs {
		if (symbol == "" && p.Enabled) || (symbol != "" && p.Symbol == symbol) {
			return p, nil
		}
	}
	if symbol == "" {
		return config.PairConfig{}, fmt.Errorf("no trading pair is enabled")
	}
	return config.PairConfig{}, fmt.Errorf("pair %s is not configured", symbol)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pair, err := pickPair(cfg, btSymbol)
	if err != nil {
		return err
	}
	gen, err := pair.NewGenerator()
	if err != nil {
		return err
	}

	var rules broker.Rules
	if rules.StepSize, err = decimal.NewFromString(btStep); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	if rules.TickSize, err = decimal.NewFromString(btTick); err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	if rules.MinQty, err = decimal.NewFromString(btMinQty); err != nil {
		return fmt.Errorf("min-qty: %w", err)
	}

	bars, err := backtest.LoadCSV(btBarsPath)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	level := "warn"
	if btVerbose {
		level = "debug"
	}
	lg := logx.Setup(level, false, os.Stderr)

	balance := btBalance
	if balance <= 0 {
		balance = cfg.Exchange.PaperBalance
	}
	if balance <= 0 {
		return fmt.Errorf("no starting balance: set --balance or exchange.paper_balance")
	}

	fmt.Printf("Running backtest with strategy: %s\n", gen.Name())
	fmt.Printf("  Pair: %s %s\n", pair.Symbol, pair.Interval)
	fmt.Printf("  Bars: %s (%d)\n\n", btBarsPath, len(bars))

	res, err := backtest.Run(cmd.Context(), bars, gen, backtest.Options{
		Loop: bot.Config{
			Symbol:   pair.Symbol,
			Interval: pair.Interval,
			Long:     bot.SideSettings{Enabled: pair.Long.Enabled, MaxHolding: pair.Long.MaxHolding()},
			Short:    bot.SideSettings{Enabled: pair.Short.Enabled, MaxHolding: pair.Short.MaxHolding()},
			Risk:     cfg.RiskInputs(),
		},
		Rules:    rules,
		Balance:  balance,
		FeeRate:  cfg.Risk.FeeRate,
		CloseEnd: btCloseEnd,
		Logger:   &lg,
	})
	if err != nil {
		log.Error().Err(err).Msg("backtest failed")
		return err
	}

	printResult(os.Stdout, res)
	return nil
}

func printResult(w io.Writer, r backtest.Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format("2006-01-02 15:04"))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	if r.Unprotected > 0 {
		fmt.Fprintf(w, "Unprotected:   %d\n", r.Unprotected)
	}
	reasons := make([]string, 0, len(r.Closed))
	for k := range r.Closed {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		fmt.Fprintf(w, "Closed (%s): %d\n", k, r.Closed[k])
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Start Balance: %.2f\n", r.StartBalance)
	fmt.Fprintf(w, "End Balance:   %.2f\n", r.Balance)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.Balance-r.StartBalance)
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.ReturnPct())
}

