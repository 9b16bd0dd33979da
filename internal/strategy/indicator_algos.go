package strategy

import (
	"swingbot/internal/indicators"
)

const (
	// RSIReversionAlgoName identifies the RSI mean-reversion algorithm.
	RSIReversionAlgoName = "rsi_reversion"
	// SMACrossoverAlgoName identifies the price/SMA crossover algorithm.
	SMACrossoverAlgoName = "sma_crossover"

	rsiPeriod     = 14
	rsiOversold   = 30.0
	rsiOverbought = 70.0

	smaPeriod = 20

	// maxWindow bounds the price history an algorithm retains.
	maxWindow = 200
)

// RSIReversionAlgo buys oversold dips and sells overbought rallies. It
// ignores the user thresholds and keeps its own price window between calls.
type RSIReversionAlgo struct {
	window []float64
}

// NewRSIReversionAlgo creates an RSI reversion algorithm with an empty window.
func NewRSIReversionAlgo() *RSIReversionAlgo {
	return &RSIReversionAlgo{window: make([]float64, 0, maxWindow)}
}

func (a *RSIReversionAlgo) Name() string { return RSIReversionAlgoName }

func (a *RSIReversionAlgo) Decide(price float64, s State) Decision {
	a.window = appendBounded(a.window, price)
	if len(a.window) < rsiPeriod+1 {
		return DecisionHold
	}

	rsi := indicators.RSI(a.window, rsiPeriod)
	switch {
	case !s.Position.InPosition && rsi < rsiOversold:
		return DecisionBuy
	case s.Position.InPosition && rsi > rsiOverbought:
		return DecisionSell
	default:
		return DecisionHold
	}
}

// SMACrossoverAlgo buys when price crosses above its moving average and
// sells when it crosses back below while in position.
type SMACrossoverAlgo struct {
	window    []float64
	lastPrice float64
	lastSMA   float64
	primed    bool
}

// NewSMACrossoverAlgo creates an SMA crossover algorithm with an empty window.
func NewSMACrossoverAlgo() *SMACrossoverAlgo {
	return &SMACrossoverAlgo{window: make([]float64, 0, maxWindow)}
}

func (a *SMACrossoverAlgo) Name() string { return SMACrossoverAlgoName }

func (a *SMACrossoverAlgo) Decide(price float64, s State) Decision {
	a.window = appendBounded(a.window, price)
	if len(a.window) < smaPeriod {
		return DecisionHold
	}

	sma := indicators.SMA(a.window, smaPeriod)
	defer func() {
		a.lastPrice = price
		a.lastSMA = sma
		a.primed = true
	}()

	if !a.primed {
		return DecisionHold
	}

	crossedUp := a.lastPrice <= a.lastSMA && price > sma
	crossedDown := a.lastPrice >= a.lastSMA && price < sma

	switch {
	case !s.Position.InPosition && crossedUp:
		return DecisionBuy
	case s.Position.InPosition && crossedDown:
		return DecisionSell
	default:
		return DecisionHold
	}
}

func appendBounded(window []float64, price float64) []float64 {
	window = append(window, price)
	if len(window) > maxWindow {
		window = window[len(window)-maxWindow:]
	}
	return window
}
