package strategy

import (
	"errors"
	"fmt"

	"trading-botv1/internal/model"
)

// ErrUnknownStrategy is returned for a strategy selector the engine
// does not recognize.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Info describes a registered strategy for the /api/strategies surface.
type Info struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  map[string]float64 `json:"parameters"`
}

// Engine dispatches evaluation over a closed set of strategies.
// The set is fixed at construction; there is no open-ended string dispatch.
type Engine struct {
	order      []string
	strategies map[string]Strategy
}

// NewEngine creates an engine with the four built-in strategies registered.
func NewEngine() *Engine {
	e := &Engine{strategies: make(map[string]Strategy)}
	e.register(NewSMACrossover())
	e.register(NewRSIStrategy())
	e.register(NewMACDStrategy())
	e.register(NewBollingerStrategy())
	return e
}

func (e *Engine) register(s Strategy) {
	if _, dup := e.strategies[s.Name()]; !dup {
		e.order = append(e.order, s.Name())
	}
	e.strategies[s.Name()] = s
}

// Has reports whether name is a known strategy selector.
func (e *Engine) Has(name string) bool {
	_, ok := e.strategies[name]
	return ok
}

// Evaluate runs the named strategy on the series.
// Returns ErrUnknownStrategy for an unknown name; indicator errors propagate.
func (e *Engine) Evaluate(series model.PriceSeries, name string) (Signal, error) {
	s, ok := e.strategies[name]
	if !ok {
		return Signal{}, fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
	}
	if err := series.Validate(); err != nil {
		return Signal{}, err
	}
	return s.Evaluate(series)
}

// Names returns the registered strategy names in registration order.
func (e *Engine) Names() []string {
	return append([]string(nil), e.order...)
}

// List returns the registered strategies in registration order.
func (e *Engine) List() []Info {
	out := make([]Info, 0, len(e.order))
	for _, name := range e.order {
		s := e.strategies[name]
		out = append(out, Info{
			Name:        s.Name(),
			Description: s.Description(),
			Parameters:  s.Params(),
		})
	}
	return out
}
