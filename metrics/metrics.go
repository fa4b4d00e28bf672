// Package metrics holds the Prometheus collectors the control loops update.
//
//   - hedger_orders_total{symbol,side,leg,result}  bracket legs submitted (leg: entry|take_profit|stop_loss)
//   - hedger_signals_total{symbol,signal}          generator output per evaluated bar
//   - hedger_rejections_total{symbol,code}         sizing rejections
//   - hedger_transitions_total{symbol,side,to,cause}  state machine transitions
//   - hedger_loop_errors_total{symbol}             aborted iterations
//   - hedger_unprotected_total{symbol,side}        brackets left without protection
//   - hedger_open_positions{symbol,side}           1 while a side is tracked open
//
// Collectors register with the default registry in init() and are served
// at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hedger_orders_total",
			Help: "Bracket legs submitted, by result (ok|error).",
		},
		[]string{"symbol", "side", "leg", "result"},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hedger_signals_total",
			Help: "Signals produced per evaluated bar (NONE|LONG|SHORT).",
		},
		[]string{"symbol", "signal"},
	)

	Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hedger_rejections_total",
			Help: "Orders rejected by sizing before submission.",
		},
		[]string{"symbol", "code"},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hedger_transitions_total",
			Help: "Position state transitions (to: OPEN|CLOSED; cause: order|adopt|exchange|timeout).",
		},
		[]string{"symbol", "side", "to", "cause"},
	)

	LoopErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hedger_loop_errors_total",
			Help: "Control loop iterations aborted by an error.",
		},
		[]string{"symbol"},
	)

	Unprotected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hedger_unprotected_total",
			Help: "Positions opened whose protective orders failed.",
		},
		[]string{"symbol", "side"},
	)

	OpenPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hedger_open_positions",
			Help: "1 while the side is tracked open.",
		},
		[]string{"symbol", "side"},
	)
)

func init() {
	prometheus.MustRegister(Orders, Signals, Rejections, Transitions)
	prometheus.MustRegister(LoopErrors, Unprotected, OpenPositions)
}

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// SetOpen flips the open-position gauge for (symbol, side).
func SetOpen(symbol, side string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	OpenPositions.WithLabelValues(symbol, side).Set(v)
}
