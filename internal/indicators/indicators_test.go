package indicators

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected float64
	}{
		{
			name:     "Not enough data",
			values:   []float64{1, 2, 3},
			period:   5,
			expected: 2.0, // Average of available
		},
		{
			name:     "Exact period",
			values:   []float64{1, 2, 3, 4, 5},
			period:   5,
			expected: 3.0,
		},
		{
			name:     "More data than period",
			values:   []float64{1, 2, 3, 4, 5, 6, 7},
			period:   5,
			expected: 5.0, // (3+4+5+6+7)/5
		},
		{
			name:     "Empty",
			values:   []float64{},
			period:   5,
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.values, tt.period)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("SMA() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected float64
	}{
		{
			name:     "Not enough data falls back to average",
			values:   []float64{2, 4},
			period:   3,
			expected: 3.0,
		},
		{
			name:   "Constant series",
			values: []float64{5, 5, 5, 5, 5, 5},
			period: 3,
			// EMA of a constant series is the constant
			expected: 5.0,
		},
		{
			name:   "Rising series",
			values: []float64{1, 2, 3, 4, 5},
			period: 3,
			// SMA(1,2,3)=2; then (4-2)*0.5+2=3; (5-3)*0.5+3=4
			expected: 4.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EMA(tt.values, tt.period)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("EMA() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRSI(t *testing.T) {
	t.Run("Not enough data returns neutral", func(t *testing.T) {
		got := RSI([]float64{100, 101, 102}, 14)
		if got != 50 {
			t.Errorf("RSI() = %v, want neutral 50", got)
		}
	})

	t.Run("All gains returns 100", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 100 + float64(i)
		}
		got := RSI(closes, 14)
		if got != 100 {
			t.Errorf("RSI() = %v, want 100", got)
		}
	})

	t.Run("All losses approaches 0", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 100 - float64(i)
		}
		got := RSI(closes, 14)
		if got > 0.0001 {
			t.Errorf("RSI() = %v, want ~0", got)
		}
	})

	t.Run("Mixed series stays in range", func(t *testing.T) {
		closes := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10,
			45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03}
		got := RSI(closes, 14)
		if got <= 50 || got >= 100 {
			t.Errorf("RSI() = %v, want between 50 and 100 for a net-rising series", got)
		}
	})
}
