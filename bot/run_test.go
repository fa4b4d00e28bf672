package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/broker/sim"
	"github.com/rustyeddy/hedger/market"
)

func TestRunCoolsDownAfterError(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var asked []time.Duration
	h.loop.sleep = func(ctx context.Context, d time.Duration) error {
		asked = append(asked, d)
		cancel()
		return h.clk.Sleep(ctx, d)
	}
	h.ex.FailNext(sim.OpPosition, errors.New("exchange down"))

	require.NoError(t, h.loop.Run(ctx))
	assert.Equal(t, []time.Duration{ErrorCooldown}, asked)
	st := h.loop.Status()
	assert.Contains(t, st.LastError, "exchange down")
	assert.False(t, st.Running)
}

func TestRunRecoversAndContinues(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// cooldown, the wait of the retried iteration, then stop
	calls := 0
	h.loop.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		switch calls {
		case 2:
			h.push(100)
		case 3:
			cancel()
		}
		return h.clk.Sleep(ctx, d)
	}
	h.ex.FailNext(sim.OpPosition, errors.New("exchange down"))
	h.signal(longSignal())

	require.NoError(t, h.loop.Run(ctx))
	require.Len(t, h.clk.sleeps, 2)
	assert.Equal(t, ErrorCooldown, h.clk.sleeps[0])
	assert.True(t, h.book.IsOpen(market.Long))
	assert.Empty(t, h.loop.Status().LastError)
}

type panicky struct{}

func (panicky) Name() string                        { return "panicky" }
func (panicky) Generate(market.Frame) market.Signal { panic("index out of range") }

func TestIterationPanicIsRecovered(t *testing.T) {
	h := newHarness(t, nil).started(t)
	h.loop.gen = panicky{}
	h.push(100)

	err := h.loop.safeIterate(context.Background())
	assert.ErrorContains(t, err, "index out of range")
}

func TestStatusReportsPositions(t *testing.T) {
	h := newHarness(t, nil).started(t)
	h.ex.Open(sym, market.Short, 1, 100)
	require.NoError(t, h.loop.Reconcile(context.Background()))

	st := h.loop.Status()
	require.Len(t, st.Positions, 1)
	assert.Equal(t, market.Short, st.Positions[0].Side)
	assert.Equal(t, "1h", st.Interval)
}
