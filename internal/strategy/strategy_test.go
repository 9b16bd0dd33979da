package strategy

import (
	"errors"
	"testing"

	"swingbot/internal/types"
)

func thresholdState(buy, sell float64, inPosition bool, guard types.Guard) State {
	return State{
		Threshold: types.Threshold{Buy: buy, Sell: sell},
		Position:  types.Position{InPosition: inPosition, QuantityHeld: boolQty(inPosition)},
		Guard:     guard,
	}
}

func boolQty(inPosition bool) float64 {
	if inPosition {
		return 1
	}
	return 0
}

func TestThresholdAlgo_Decide(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		state State
		want  Decision
	}{
		{
			name:  "flat price between thresholds holds",
			price: 105,
			state: thresholdState(100, 110, false, types.Guard{}),
			want:  DecisionHold,
		},
		{
			name:  "flat price at buy threshold buys",
			price: 100,
			state: thresholdState(100, 110, false, types.Guard{}),
			want:  DecisionBuy,
		},
		{
			name:  "flat price below buy threshold buys",
			price: 99,
			state: thresholdState(100, 110, false, types.Guard{}),
			want:  DecisionBuy,
		},
		{
			name:  "guard latched at current threshold blocks re-buy",
			price: 98,
			state: thresholdState(100, 110, false, types.Guard{BuyExecuted: true, ExecutedAtThreshold: 100}),
			want:  DecisionHold,
		},
		{
			name:  "guard latched at stale threshold does not block",
			price: 98,
			state: thresholdState(100, 110, false, types.Guard{BuyExecuted: true, ExecutedAtThreshold: 95}),
			want:  DecisionBuy,
		},
		{
			name:  "long price below sell threshold holds",
			price: 102,
			state: thresholdState(100, 110, true, types.Guard{BuyExecuted: true, ExecutedAtThreshold: 100}),
			want:  DecisionHold,
		},
		{
			name:  "long price at sell threshold sells",
			price: 110,
			state: thresholdState(100, 110, true, types.Guard{BuyExecuted: true, ExecutedAtThreshold: 100}),
			want:  DecisionSell,
		},
		{
			name:  "long ignores buy threshold",
			price: 90,
			state: thresholdState(100, 110, true, types.Guard{}),
			want:  DecisionHold,
		},
		{
			name:  "inverted thresholds still follow the machine",
			price: 125,
			state: thresholdState(130, 120, true, types.Guard{}),
			want:  DecisionSell,
		},
	}

	algo := NewThresholdAlgo()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := algo.Decide(tt.price, tt.state); got != tt.want {
				t.Errorf("Decide(%v) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

// Runs a price sequence through the threshold algorithm applying position
// and guard transitions the way the engine does, and returns the decisions
// that fired.
func runSequence(t *testing.T, algo Algorithm, buy, sell float64, prices []float64) []Decision {
	t.Helper()

	state := State{Threshold: types.Threshold{Buy: buy, Sell: sell}}
	var fired []Decision
	for _, price := range prices {
		switch algo.Decide(price, state) {
		case DecisionBuy:
			fired = append(fired, DecisionBuy)
			state.Position = types.Position{InPosition: true, QuantityHeld: 1, NetInvested: price}
			state.Guard = types.Guard{BuyExecuted: true, ExecutedAtThreshold: state.Threshold.Buy}
		case DecisionSell:
			fired = append(fired, DecisionSell)
			state.Position = types.Position{}
			state.Guard = types.Guard{}
		}
	}
	return fired
}

func TestThresholdAlgo_BuyThenSellSequence(t *testing.T) {
	algo := NewThresholdAlgo()

	fired := runSequence(t, algo, 100, 110, []float64{105, 99, 102, 111})
	want := []Decision{DecisionBuy, DecisionSell}
	if len(fired) != len(want) {
		t.Fatalf("fired %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired %v, want %v", fired, want)
		}
	}
}

func TestThresholdAlgo_SingleBuyPerRegime(t *testing.T) {
	algo := NewThresholdAlgo()

	fired := runSequence(t, algo, 100, 110, []float64{99, 98, 97})
	if len(fired) != 1 || fired[0] != DecisionBuy {
		t.Fatalf("fired %v, want exactly one buy", fired)
	}
}

func TestThresholdAlgo_NeverTwoConsecutiveBuys(t *testing.T) {
	algo := NewThresholdAlgo()

	// Oscillates around both thresholds repeatedly.
	prices := []float64{105, 99, 95, 99, 111, 99, 98, 112, 90, 130, 85}
	fired := runSequence(t, algo, 100, 110, prices)

	last := DecisionHold
	for _, d := range fired {
		if d == DecisionBuy && last == DecisionBuy {
			t.Fatalf("two consecutive buys without an intervening sell: %v", fired)
		}
		last = d
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New("does_not_exist")
	if err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestNames_ContainsAllVariants(t *testing.T) {
	names := Names()
	want := map[string]bool{
		ThresholdAlgoName:    false,
		RSIReversionAlgoName: false,
		SMACrossoverAlgoName: false,
	}
	for _, n := range names {
		if _, ok := want[n]; !ok {
			t.Errorf("unexpected algorithm name %q", n)
		}
		want[n] = true
	}
	for n, seen := range want {
		if !seen {
			t.Errorf("algorithm %q missing from Names()", n)
		}
	}
}

func TestRSIReversionAlgo_BuysOversold(t *testing.T) {
	algo := NewRSIReversionAlgo()
	state := State{}

	// Steady decline drives RSI to zero; the first decidable sample after
	// the warmup window should fire a buy.
	var got Decision
	price := 100.0
	for i := 0; i < 30; i++ {
		got = algo.Decide(price, state)
		if got == DecisionBuy {
			break
		}
		price -= 1
	}
	if got != DecisionBuy {
		t.Fatal("expected a buy on a steadily declining series")
	}
}

func TestRSIReversionAlgo_SellsOverbought(t *testing.T) {
	algo := NewRSIReversionAlgo()
	state := State{Position: types.Position{InPosition: true, QuantityHeld: 1}}

	var got Decision
	price := 100.0
	for i := 0; i < 30; i++ {
		got = algo.Decide(price, state)
		if got == DecisionSell {
			break
		}
		price += 1
	}
	if got != DecisionSell {
		t.Fatal("expected a sell on a steadily rising series")
	}
}

func TestSMACrossoverAlgo_BuysOnCrossUp(t *testing.T) {
	algo := NewSMACrossoverAlgo()
	state := State{}

	// Flat series to fill the window, then a jump above the average.
	var got Decision
	for i := 0; i < 25; i++ {
		got = algo.Decide(100, state)
		if got != DecisionHold {
			t.Fatalf("unexpected decision %v during warmup", got)
		}
	}
	got = algo.Decide(110, state)
	if got != DecisionBuy {
		t.Fatalf("Decide after cross up = %v, want buy", got)
	}
}
