package ledger

import (
	"swingbot/internal/types"
)

// ReplayState is the position and profit state reconstructed from a
// persisted trade stream.
type ReplayState struct {
	Positions        map[string]types.Position
	CumulativeProfit float64
}

// Replay folds an ordered trade stream into per-symbol positions and the
// global cumulative profit. The fold is pure: replaying the same stream
// always produces the same state, and replaying records produced by a live
// run reproduces that run's final state.
func Replay(records []types.TradeRecord) ReplayState {
	state := ReplayState{Positions: make(map[string]types.Position)}

	for _, rec := range records {
		pos := state.Positions[rec.Symbol]
		switch rec.Side {
		case types.SideBuy:
			pos.ApplyBuy(rec.Price, rec.Amount)
		case types.SideSell:
			state.CumulativeProfit += pos.ApplySell(rec.Price, rec.Amount)
		}
		state.Positions[rec.Symbol] = pos
	}

	return state
}
