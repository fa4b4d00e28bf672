// Package strategy holds the signal generators and the registry that maps
// a configured strategy name to its constructor.
package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/hedger/market"
)

// Generator evaluates a window of closed bars and returns at most one
// signal. It must not keep references to the frame's slices.
type Generator interface {
	Name() string
	Generate(f market.Frame) market.Signal
}

// Params are the numeric strategy parameters configured for one side.
type Params map[string]float64

// SideConfig is the per-side strategy configuration.
type SideConfig struct {
	Enabled bool
	Params  Params
}

// Factory builds a generator for one symbol. It returns an error for
// missing or invalid parameters so bad configuration fails at load time.
type Factory func(symbol string, long, short SideConfig) (Generator, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a factory under name and any aliases. Registering a name
// twice panics.
func Register(f Factory, name string, aliases ...string) {
	mu.Lock()
	defer mu.Unlock()
	for _, n := range append([]string{name}, aliases...) {
		k := key(n)
		if _, dup := registry[k]; dup {
			panic(fmt.Sprintf("strategy %q registered twice", n))
		}
		registry[k] = f
	}
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[key(name)]
	return f, ok
}

// New builds the named generator.
func New(name, symbol string, long, short SideConfig) (Generator, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	g, err := f(symbol, long, short)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}
	return g, nil
}

// Names lists every registered name, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Require returns the named parameters or an error listing the missing
// ones.
func (p Params) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := p[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing params: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Int returns p[name] truncated to an int.
func (p Params) Int(name string) int {
	return int(p[name])
}
