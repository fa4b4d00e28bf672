package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func btcRules() Rules {
	return Rules{
		StepSize: dec("0.001"),
		TickSize: dec("0.10"),
		MinQty:   dec("0.001"),
		MinPrice: dec("556.80"),
	}
}

func TestRulesDecimals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		step string
		want int32
	}{
		{"0.001", 3},
		{"0.00100000", 3},
		{"0.1", 1},
		{"1", 0},
		{"10", 0},
	}
	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			assert.Equal(t, tt.want, Rules{StepSize: dec(tt.step)}.QtyDecimals())
		})
	}
}

func TestFloorQtyAndPrice(t *testing.T) {
	t.Parallel()

	rl := btcRules()
	assert.Equal(t, "0.123", rl.FloorQty(dec("0.12399")).String())
	assert.Equal(t, "50", rl.FloorQty(dec("50")).String())
	assert.Equal(t, "0", rl.FloorQty(dec("0.0009")).String())
	assert.Equal(t, "64123.4", rl.FloorPrice(dec("64123.49")).String())
}

func TestResolverStepOfOneTenth(t *testing.T) {
	t.Parallel()

	r := NewResolver(map[string]Rules{"ETHUSDT": {StepSize: dec("0.1"), TickSize: dec("0.01")}})

	q, err := r.Quantity("ETHUSDT", 50)
	require.NoError(t, err)
	assert.True(t, q.Equal(dec("50.0")), "got %s", q)

	q, err = r.Quantity("ETHUSDT", 12.3456)
	require.NoError(t, err)
	assert.Equal(t, "12.3", q.String())

	p, err := r.Price("ETHUSDT", 2456.789)
	require.NoError(t, err)
	assert.Equal(t, "2456.78", p.String())
}

func TestResolverUnknownSymbol(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	_, err := r.Quantity("DOGEUSDT", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSymbol))
}

type rulesFunc func(ctx context.Context) (map[string]Rules, error)

func (f rulesFunc) ExchangeRules(ctx context.Context) (map[string]Rules, error) { return f(ctx) }

func TestLoadResolver(t *testing.T) {
	t.Parallel()

	r, err := LoadResolver(context.Background(), rulesFunc(func(context.Context) (map[string]Rules, error) {
		return map[string]Rules{"BTCUSDT": btcRules()}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	_, err = LoadResolver(context.Background(), rulesFunc(func(context.Context) (map[string]Rules, error) {
		return nil, errors.New("boom")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load exchange rules")
}

func TestPositionOpen(t *testing.T) {
	t.Parallel()

	var p *Position
	assert.False(t, p.Open())
	assert.False(t, (&Position{}).Open())
	assert.True(t, (&Position{Size: 0.01}).Open())
}
