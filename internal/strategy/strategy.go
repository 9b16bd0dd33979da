package strategy

import (
	"sort"

	"swingbot/internal/types"
)

// Decision is the outcome of evaluating one price sample.
type Decision int

const (
	DecisionHold Decision = iota
	DecisionBuy
	DecisionSell
)

func (d Decision) String() string {
	switch d {
	case DecisionBuy:
		return "buy"
	case DecisionSell:
		return "sell"
	default:
		return "hold"
	}
}

// State is the snapshot an algorithm decides against. Algorithms never
// mutate it; position and guard transitions belong to the engine.
type State struct {
	Threshold types.Threshold
	Position  types.Position
	Guard     types.Guard
}

// Algorithm decides whether a price sample should trigger a trade.
// Implementations may keep private history between calls (e.g. a price
// window for indicator-based variants).
type Algorithm interface {
	Name() string
	Decide(price float64, s State) Decision
}

// registry maps algorithm names to constructors. Selection happens by
// name through New, never by dynamic lookup.
var registry = map[string]func() Algorithm{
	ThresholdAlgoName:    func() Algorithm { return NewThresholdAlgo() },
	RSIReversionAlgoName: func() Algorithm { return NewRSIReversionAlgo() },
	SMACrossoverAlgoName: func() Algorithm { return NewSMACrossoverAlgo() },
}

// New constructs a fresh algorithm instance by name.
func New(name string) (Algorithm, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, types.NewValidationError("algorithm", "unknown algorithm: %s", name)
	}
	return ctor(), nil
}

// Names returns the available algorithm names in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
