package strategy

import "github.com/rustyeddy/hedger/market"

func init() {
	Register(func(string, SideConfig, SideConfig) (Generator, error) { return Noop{}, nil }, "noop", "none")
}

// Noop never signals. A pair running it only reconciles and enforces
// holding limits on positions opened elsewhere.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Generate(market.Frame) market.Signal { return market.NoSignal }
