package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/market"
)

func TestFormatOrderOpened(t *testing.T) {
	got := Format(Event{
		Kind:       OrderOpened,
		Symbol:     "BTCUSDT",
		Side:       market.Long,
		Quantity:   "0.012",
		EntryPrice: "64000.1",
		StopLoss:   "63000",
		TakeProfit: "66000.3",
	})
	assert.Contains(t, got, "NEW POSITION")
	assert.Contains(t, got, "`BTCUSDT`")
	assert.Contains(t, got, "*LONG*")
	assert.Contains(t, got, "quantity: `0.012`")
	assert.Contains(t, got, "take profit: `66000.3`")
}

func TestFormatUnprotected(t *testing.T) {
	got := Format(Event{Kind: UnprotectedPosition, Symbol: "ETHUSDT", Side: market.Short, Err: "boom"})
	assert.Contains(t, got, "CRITICAL")
	assert.Contains(t, got, "*SHORT*")
	assert.Contains(t, got, "`ETHUSDT`")
	assert.Contains(t, got, "Error: `boom`")
}

func TestFormatTimeout(t *testing.T) {
	got := Format(Event{Kind: TimeoutClose, Symbol: "ETHUSDT", Side: market.Long, Held: 73*time.Hour + 30*time.Minute})
	assert.Contains(t, got, "73.50 hours")
}

func TestSilent(t *testing.T) {
	assert.True(t, Event{Kind: Startup}.Silent())
	assert.False(t, Event{Kind: UnprotectedPosition}.Silent())
}

type sent struct {
	chatID, text, parseMode, silent string
}

func fakeTelegram(t *testing.T) (*httptest.Server, func() []sent) {
	t.Helper()
	var mu sync.Mutex
	var msgs []sent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"hedger","username":"hedger_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			mu.Lock()
			msgs = append(msgs, sent{
				chatID:    r.Form.Get("chat_id"),
				text:      r.Form.Get("text"),
				parseMode: r.Form.Get("parse_mode"),
				silent:    r.Form.Get("disable_notification"),
			})
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []sent {
		mu.Lock()
		defer mu.Unlock()
		return append([]sent(nil), msgs...)
	}
}

func TestTelegramDelivers(t *testing.T) {
	srv, got := fakeTelegram(t)

	tg, err := NewTelegram("TOKEN", 42, srv.URL+"/bot%s/%s")
	require.NoError(t, err)

	tg.Notify(context.Background(), Event{Kind: UnprotectedPosition, Symbol: "BTCUSDT", Side: market.Long, Err: "x"})
	tg.Notify(context.Background(), Event{Kind: Startup, Text: "hedger started"})
	require.NoError(t, tg.Close())

	msgs := got()
	require.Len(t, msgs, 2)
	assert.Equal(t, "42", msgs[0].chatID)
	assert.Equal(t, "Markdown", msgs[0].parseMode)
	assert.Contains(t, msgs[0].text, "CRITICAL")
	assert.NotEqual(t, "true", msgs[0].silent)
	assert.Equal(t, "hedger started", msgs[1].text)
	assert.Equal(t, "true", msgs[1].silent)
}

func TestTelegramMissingToken(t *testing.T) {
	_, err := NewTelegram("", 1, "")
	assert.Error(t, err)
}

func TestFuncNotifier(t *testing.T) {
	var got []Kind
	var n Notifier = Func(func(_ context.Context, e Event) { got = append(got, e.Kind) })
	n.Notify(context.Background(), Event{Kind: TimeoutClose})
	Nop{}.Notify(context.Background(), Event{Kind: TimeoutClose})
	assert.Equal(t, []Kind{TimeoutClose}, got)
}
