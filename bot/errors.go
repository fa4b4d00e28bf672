package bot

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/hedger/market"
)

// ErrInsufficientBackfill stops a loop before it starts: the exchange did
// not return a full window of history.
var ErrInsufficientBackfill = errors.New("insufficient backfill")

// EntryError is a failed entry order. Nothing was opened.
type EntryError struct {
	Symbol string
	Side   market.Side
	Err    error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s %s failed: %v", e.Side, e.Symbol, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// UnprotectedError reports an entry that filled while one or both
// protective orders failed. The position is open without automatic
// limits.
type UnprotectedError struct {
	Symbol     string
	Side       market.Side
	TakeProfit error
	StopLoss   error
}

func (e *UnprotectedError) Error() string {
	return fmt.Sprintf("%s %s position is unprotected: %v", e.Side, e.Symbol, e.Unwrap())
}

func (e *UnprotectedError) Unwrap() error {
	return errors.Join(e.TakeProfit, e.StopLoss)
}
