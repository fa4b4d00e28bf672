// Package notify delivers human-facing alerts. Delivery is fire-and-forget:
// nothing here may influence trading state.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/hedger/market"
)

// Kind is the event type.
type Kind int

const (
	OrderOpened Kind = iota
	UnprotectedPosition
	TimeoutClose
	Startup
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case OrderOpened:
		return "order-opened"
	case UnprotectedPosition:
		return "critical-unprotected-position"
	case TimeoutClose:
		return "timeout-close"
	case Startup:
		return "startup"
	case Shutdown:
		return "shutdown"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one notification. Fields irrelevant to the kind are zero.
type Event struct {
	Kind       Kind
	Symbol     string
	Side       market.Side
	Quantity   string
	EntryPrice string
	StopLoss   string
	TakeProfit string
	Held       time.Duration
	Err        string
	Text       string // free text for Startup/Shutdown
}

// Silent events are delivered without a sound on the operator's device.
func (e Event) Silent() bool {
	return e.Kind == Startup || e.Kind == Shutdown
}

// Notifier accepts events. Implementations must not block the caller on
// delivery and must swallow (log) their own failures.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, e Event)

func (f Func) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Format renders e as Telegram Markdown.
func Format(e Event) string {
	var sb strings.Builder
	switch e.Kind {
	case OrderOpened:
		sb.WriteString("🚀 *NEW POSITION* 🚀\n\n")
		fmt.Fprintf(&sb, "pair: `%s`\n", e.Symbol)
		fmt.Fprintf(&sb, "side: *%s*\n\n", e.Side)
		fmt.Fprintf(&sb, "quantity: `%s`\n", e.Quantity)
		fmt.Fprintf(&sb, "entry: `%s`\n", e.EntryPrice)
		fmt.Fprintf(&sb, "stop loss: `%s`\n", e.StopLoss)
		fmt.Fprintf(&sb, "take profit: `%s`", e.TakeProfit)
	case UnprotectedPosition:
		sb.WriteString("🚨 *CRITICAL* 🚨\n\n")
		fmt.Fprintf(&sb, "Could not place SL/TP for the *%s* position on `%s`.\n\n", e.Side, e.Symbol)
		sb.WriteString("*THE POSITION MAY BE OPEN WITHOUT PROTECTION!*\n\n")
		sb.WriteString("Check the exchange immediately.\n\n")
		fmt.Fprintf(&sb, "Error: `%s`", e.Err)
	case TimeoutClose:
		sb.WriteString("⌛️ *CLOSED ON TIMEOUT* ⌛️\n\n")
		fmt.Fprintf(&sb, "pair: `%s`\n", e.Symbol)
		fmt.Fprintf(&sb, "side: *%s*\n\n", e.Side)
		fmt.Fprintf(&sb, "The position was closed automatically after being held for %.2f hours.", e.Held.Hours())
	default:
		sb.WriteString(e.Text)
	}
	return sb.String()
}
