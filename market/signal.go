package market

// SignalKind tags the outcome of one signal evaluation.
type SignalKind int

const (
	None SignalKind = iota
	GoLong
	GoShort
)

func (k SignalKind) String() string {
	switch k {
	case GoLong:
		return "LONG"
	case GoShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Signal is produced once per evaluation cycle. The prices are only
// meaningful when Kind is not None.
type Signal struct {
	Kind       SignalKind
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// Side maps the signal to the position side it would open. ok is false for
// None.
func (s Signal) Side() (side Side, ok bool) {
	switch s.Kind {
	case GoLong:
		return Long, true
	case GoShort:
		return Short, true
	}
	return "", false
}

// NoSignal is the zero evaluation result.
var NoSignal = Signal{Kind: None}
