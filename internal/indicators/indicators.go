package indicators

// SMA calculates Simple Moving Average over the trailing period.
// With fewer samples than the period it averages what is available.
func SMA(values []float64, period int) float64 {
	if len(values) < period {
		return average(values)
	}
	return average(values[len(values)-period:])
}

// EMA calculates Exponential Moving Average, seeded with the SMA of the
// first period samples.
func EMA(values []float64, period int) float64 {
	if len(values) < period {
		return average(values)
	}

	multiplier := 2.0 / float64(period+1)
	ema := average(values[:period])
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
	}
	return ema
}

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// Returns a neutral 50 when there are not enough samples.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := average(gains[:period])
	avgLoss := average(losses[:period])
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*(float64(period)-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*(float64(period)-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
