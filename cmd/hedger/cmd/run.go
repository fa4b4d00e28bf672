package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/hedger/bot"
	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/broker/binance"
	"github.com/rustyeddy/hedger/broker/sim"
	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/internal/api"
	"github.com/rustyeddy/hedger/internal/logx"
	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/notify"
	"github.com/rustyeddy/hedger/position"
	"github.com/rustyeddy/hedger/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loops",
	Long: `Start one control loop per enabled trading pair and run until interrupted.

With exchange.dry_run set, orders go to an in-memory paper exchange fed
with live market data. Otherwise the bot trades on Binance futures in
hedge mode and refuses to start without API credentials.

Example:
  hedger run -c config.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runNoColor bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "disable colored console logs")
}

// exchange is what the run command needs from a venue.
type exchange interface {
	broker.Exchange
	broker.RulesSource
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Log.JSON {
		logx.JSON(cfg.Log.Level, nil)
	} else {
		logx.Setup(cfg.Log.Level, runNoColor, nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	note := newNotifier(cfg.Telegram)
	defer note.Close()

	if len(cfg.EnabledPairs()) == 0 {
		note.Notify(ctx, notify.Event{Kind: notify.Shutdown, Text: "⚠️ No trading bots enabled. Check the configuration."})
	}
	if err := cfg.CheckLive(); err != nil {
		return err
	}

	ex, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	rules, err := broker.LoadResolver(ctx, ex)
	if err != nil {
		return fmt.Errorf("load precision rules: %w", err)
	}
	log.Info().Str("exchange", ex.Name()).Int("symbols", rules.Len()).Msg("precision rules loaded")

	st, err := state.Open(cfg.State.Type, cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer st.Close()

	jr, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer jr.Close()

	var loops []*bot.Loop
	for _, p := range cfg.EnabledPairs() {
		l, err := newLoop(ctx, cfg, p, bot.Deps{Exchange: ex, Rules: rules, Notifier: note, Journal: jr}, st)
		if err != nil {
			log.Error().Err(err).Str("symbol", p.Symbol).Msg("pair not started")
			continue
		}
		loops = append(loops, l)
	}
	if len(loops) == 0 {
		return errors.New("no trading loop could be created")
	}

	note.Notify(ctx, notify.Event{Kind: notify.Startup, Text: fmt.Sprintf("🤖 Hedger started on %s with %d bots", ex.Name(), len(loops))})
	log.Info().Int("loops", len(loops)).Bool("dry_run", cfg.Exchange.DryRun).Msg("hedger started")

	// A loop that fails to start only takes its own pair down.
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		l := l
		g.Go(func() error {
			_ = l.Run(gctx)
			return nil
		})
	}
	if cfg.Server.Addr != "" {
		g.Go(func() error {
			if err := api.Serve(gctx, cfg.Server.Addr, statusOf(loops)); err != nil {
				log.Error().Err(err).Str("addr", cfg.Server.Addr).Msg("status server stopped")
			}
			return nil
		})
	}
	err = g.Wait()

	note.Notify(context.WithoutCancel(ctx), notify.Event{Kind: notify.Shutdown, Text: "🛑 Hedger stopped"})
	log.Info().Msg("hedger stopped")
	return err
}

// connect returns the live connector, or a paper exchange fed by it when
// dry-run is set. Market data and precision rules are public, so the paper
// exchange needs no credentials.
func connect(ctx context.Context, cfg *config.Config) (exchange, error) {
	live := binance.New(binance.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Testnet:   cfg.Exchange.Testnet,
	})
	if err := live.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", live.Name(), err)
	}
	if !cfg.Exchange.DryRun {
		return live, nil
	}
	return sim.New(live, cfg.Exchange.PaperBalance, sim.WithFeeRate(cfg.Risk.FeeRate)), nil
}

type notifier interface {
	notify.Notifier
	Close() error
}

type nopCloser struct{ notify.Nop }

func (nopCloser) Close() error { return nil }

func newNotifier(tc config.TelegramConfig) notifier {
	if !tc.Usable() {
		return nopCloser{}
	}
	tg, err := notify.NewTelegram(tc.BotToken, tc.ChatID, "")
	if err != nil {
		log.Warn().Err(err).Msg("telegram unavailable, notifications disabled")
		return nopCloser{}
	}
	return tg
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	if jc.DBPath == "" {
		return journal.Nop{}, nil
	}
	j, err := journal.NewSQLite(jc.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

func newLoop(ctx context.Context, cfg *config.Config, p config.PairConfig, d bot.Deps, st state.Store) (*bot.Loop, error) {
	book, err := position.Load(ctx, p.Symbol, st)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	gen, err := p.NewGenerator()
	if err != nil {
		return nil, err
	}

	lg := log.With().Str("strategy", gen.Name()).Logger()
	d.Book = book
	d.Generator = gen
	d.Logger = &lg

	return bot.New(bot.Config{
		Symbol:     p.Symbol,
		Interval:   p.Interval,
		Leverage:   p.Leverage,
		Long:       bot.SideSettings{Enabled: p.Long.Enabled, MaxHolding: p.Long.MaxHolding()},
		Short:      bot.SideSettings{Enabled: p.Short.Enabled, MaxHolding: p.Short.MaxHolding()},
		Risk:       cfg.RiskInputs(),
		WindowSize: market.WindowSize,
	}, d)
}

func statusOf(loops []*bot.Loop) api.StatusFunc {
	return func() []api.LoopStatus {
		out := make([]api.LoopStatus, 0, len(loops))
		for _, l := range loops {
			st := l.Status()
			out = append(out, api.LoopStatus{
				Symbol:    st.Symbol,
				Interval:  st.Interval,
				Running:   st.Running,
				LastError: st.LastError,
				Positions: st.Positions,
			})
		}
		return out
	}
}
