// Package binance connects the bot to Binance USDⓈ-M futures in hedge mode.
package binance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/market"
)

const (
	// codeReduceOnlyRejected is returned when a reducing order finds no
	// position left to reduce.
	codeReduceOnlyRejected = -2022

	settlementAsset = "USDT"
	resyncEvery     = time.Hour
)

type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	BaseURL   string // overrides the endpoint, used by tests
}

type Client struct {
	api *futures.Client
	now func() time.Time

	syncMu   sync.Mutex
	lastSync time.Time
}

func New(cfg Config) *Client {
	if cfg.Testnet {
		futures.UseTestnet = true
	}
	api := gobinance.NewFuturesClient(cfg.APIKey, cfg.APISecret)
	if cfg.BaseURL != "" {
		api.BaseURL = cfg.BaseURL
	}
	return &Client{api: api, now: time.Now}
}

func (c *Client) Name() string { return "binance-futures" }

// Connect syncs the clock offset and verifies the credentials.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.syncTime(ctx, true); err != nil {
		return err
	}
	if _, err := c.api.NewGetAccountService().Do(ctx); err != nil {
		return fmt.Errorf("binance account check: %w", err)
	}
	return nil
}

// syncTime refreshes the server time offset once an hour, or always when
// force is set.
func (c *Client) syncTime(ctx context.Context, force bool) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	if !force && !c.lastSync.IsZero() && c.now().Sub(c.lastSync) < resyncEvery {
		return nil
	}
	offset, err := c.api.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return fmt.Errorf("binance time sync: %w", err)
	}
	c.lastSync = c.now()
	log.Info().Int64("offset_ms", offset).Msg("synced binance server time")
	return nil
}

func (c *Client) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]market.Bar, error) {
	if err := c.syncTime(ctx, false); err != nil {
		return nil, err
	}
	// One extra so the in-progress bar can be dropped.
	klines, err := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	nowMs := c.now().UnixMilli() + c.api.TimeOffset
	bars := make([]market.Bar, 0, len(klines))
	for _, k := range klines {
		if k.CloseTime >= nowMs {
			continue
		}
		b, err := toBar(k)
		if err != nil {
			return nil, fmt.Errorf("kline %s: %w", symbol, err)
		}
		bars = append(bars, b)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func toBar(k *futures.Kline) (market.Bar, error) {
	var (
		b   = market.Bar{Time: time.UnixMilli(k.OpenTime).UTC()}
		err error
	)
	fields := []struct {
		dst *float64
		src string
	}{
		{&b.Open, k.Open}, {&b.High, k.High}, {&b.Low, k.Low}, {&b.Close, k.Close}, {&b.Volume, k.Volume},
	}
	for _, f := range fields {
		if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
			return market.Bar{}, err
		}
	}
	return b, nil
}

func (c *Client) FetchBalance(ctx context.Context) (float64, error) {
	if err := c.syncTime(ctx, false); err != nil {
		return 0, err
	}
	acct, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("account: %w", err)
	}
	for _, a := range acct.Assets {
		if a.Asset == settlementAsset {
			return strconv.ParseFloat(a.WalletBalance, 64)
		}
	}
	return 0, nil
}

func (c *Client) LivePosition(ctx context.Context, symbol string, side market.Side) (*broker.Position, error) {
	if err := c.syncTime(ctx, false); err != nil {
		return nil, err
	}
	risks, err := c.api.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("position risk %s: %w", symbol, err)
	}
	for _, r := range risks {
		if r.Symbol != symbol || r.PositionSide != string(side) {
			continue
		}
		amt, err := strconv.ParseFloat(r.PositionAmt, 64)
		if err != nil {
			return nil, fmt.Errorf("position amount %q: %w", r.PositionAmt, err)
		}
		if amt == 0 {
			return nil, nil
		}
		entry, err := strconv.ParseFloat(r.EntryPrice, 64)
		if err != nil {
			return nil, fmt.Errorf("entry price %q: %w", r.EntryPrice, err)
		}
		return &broker.Position{Symbol: symbol, Side: side, Size: math.Abs(amt), EntryPrice: entry}, nil
	}
	return nil, nil
}

func (c *Client) SubmitMarketOrder(ctx context.Context, o broker.MarketOrder) (broker.OrderAck, error) {
	if err := c.syncTime(ctx, false); err != nil {
		return broker.OrderAck{}, err
	}
	res, err := c.api.NewCreateOrderService().
		Symbol(o.Symbol).
		Side(futures.SideType(o.Direction)).
		PositionSide(futures.PositionSideType(o.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(o.Quantity.String()).
		NewClientOrderID(clientID(o.ClientOrderID)).
		Do(ctx)
	if err != nil {
		return broker.OrderAck{}, fmt.Errorf("market %s %s: %w", o.Direction, o.Symbol, err)
	}
	return ack(res), nil
}

func (c *Client) SubmitStopOrder(ctx context.Context, o broker.StopOrder) (broker.OrderAck, error) {
	if err := c.syncTime(ctx, false); err != nil {
		return broker.OrderAck{}, err
	}
	typ := futures.OrderTypeStopMarket
	if o.Kind == broker.TakeProfit {
		typ = futures.OrderTypeTakeProfitMarket
	}
	res, err := c.api.NewCreateOrderService().
		Symbol(o.Symbol).
		Side(futures.SideType(o.Direction)).
		PositionSide(futures.PositionSideType(o.Side)).
		Type(typ).
		StopPrice(o.TriggerPrice.String()).
		ClosePosition(true).
		TimeInForce(futures.TimeInForceType("GTE_GTC")).
		NewClientOrderID(clientID(o.ClientOrderID)).
		Do(ctx)
	if err != nil {
		return broker.OrderAck{}, fmt.Errorf("%s %s %s: %w", typ, o.Side, o.Symbol, err)
	}
	return ack(res), nil
}

// ClosePosition reduces the side at market. A -2022 rejection means the
// position is already gone and is reported as success.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side market.Side, qty decimal.Decimal) (broker.OrderAck, error) {
	if err := c.syncTime(ctx, false); err != nil {
		return broker.OrderAck{}, err
	}
	res, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side.Exit())).
		PositionSide(futures.PositionSideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty.String()).
		NewClientOrderID(clientID("")).
		Do(ctx)
	if err != nil {
		if alreadyClosed(err) {
			log.Warn().Str("symbol", symbol).Str("side", string(side)).Msg("close rejected, position already closed")
			return broker.OrderAck{Time: c.now().UTC()}, nil
		}
		return broker.OrderAck{}, fmt.Errorf("close %s %s: %w", side, symbol, err)
	}
	return ack(res), nil
}

func alreadyClosed(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeReduceOnlyRejected
}

func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	if err := c.syncTime(ctx, false); err != nil {
		return err
	}
	if err := c.api.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return fmt.Errorf("cancel all %s: %w", symbol, err)
	}
	return nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := c.syncTime(ctx, false); err != nil {
		return err
	}
	if _, err := c.api.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx); err != nil {
		return fmt.Errorf("leverage %s: %w", symbol, err)
	}
	return nil
}

// ExchangeRules reads LOT_SIZE and PRICE_FILTER for every symbol. Symbols
// missing either filter are skipped.
func (c *Client) ExchangeRules(ctx context.Context) (map[string]broker.Rules, error) {
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	out := make(map[string]broker.Rules, len(info.Symbols))
	for _, s := range info.Symbols {
		var (
			r              broker.Rules
			hasLot, hasPrc bool
		)
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "LOT_SIZE":
				r.StepSize, r.MinQty = filterDecimal(f, "stepSize"), filterDecimal(f, "minQty")
				hasLot = r.StepSize.Sign() > 0
			case "PRICE_FILTER":
				r.TickSize, r.MinPrice = filterDecimal(f, "tickSize"), filterDecimal(f, "minPrice")
				hasPrc = r.TickSize.Sign() > 0
			}
		}
		if hasLot && hasPrc {
			out[s.Symbol] = r
		}
	}
	log.Info().Int("symbols", len(out)).Msg("loaded exchange precision rules")
	return out, nil
}

func filterDecimal(f map[string]interface{}, key string) decimal.Decimal {
	s, ok := f[key].(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func clientID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func ack(res *futures.CreateOrderResponse) broker.OrderAck {
	return broker.OrderAck{
		OrderID:       strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		Time:          time.UnixMilli(res.UpdateTime).UTC(),
	}
}
