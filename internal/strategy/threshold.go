package strategy

// ThresholdAlgoName identifies the buy-low/sell-high threshold algorithm.
// It is the only algorithm that honors user threshold updates.
const ThresholdAlgoName = "threshold"

// ThresholdAlgo is a two-state machine per symbol: Flat (no position) and
// Long (capital committed by a buy).
//
//   - Flat -> Long when price <= buy threshold and the guard is not already
//     latched at that threshold. Without the guard a price oscillating below
//     a static buy threshold would re-buy every poll cycle; the guard
//     enforces at most one open position per threshold regime.
//   - Long -> Flat when price >= sell threshold, for the full held quantity.
//
// The guard only gates the Flat -> Long transition: a guard reset while Long
// never triggers a buy by itself, and a sell is driven solely by price
// against the current sell threshold.
type ThresholdAlgo struct{}

// NewThresholdAlgo creates the threshold algorithm.
func NewThresholdAlgo() *ThresholdAlgo {
	return &ThresholdAlgo{}
}

func (a *ThresholdAlgo) Name() string { return ThresholdAlgoName }

// Decide evaluates one price sample against the threshold state machine.
func (a *ThresholdAlgo) Decide(price float64, s State) Decision {
	if s.Position.InPosition {
		if price >= s.Threshold.Sell {
			return DecisionSell
		}
		return DecisionHold
	}

	if price <= s.Threshold.Buy && !s.Guard.Latched(s.Threshold.Buy) {
		return DecisionBuy
	}
	return DecisionHold
}
