package types

import (
	"time"
)

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Threshold holds the buy/sell price pair in effect for the active symbol.
// Both values are finite and non-negative; buy >= sell is allowed but
// warned about (a user may intentionally invert for a one-shot strategy).
type Threshold struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// Position holds the capital currently committed to the active symbol.
// Invariant: InPosition == (QuantityHeld > 0).
type Position struct {
	InPosition   bool    `json:"in_position"`
	QuantityHeld float64 `json:"quantity_held"`
	NetInvested  float64 `json:"net_invested"`
}

// Guard prevents re-firing a buy while price stays below an unchanged
// buy threshold. Reset when thresholds change or a sell closes the position.
type Guard struct {
	BuyExecuted         bool    `json:"buy_executed"`
	ExecutedAtThreshold float64 `json:"executed_at_threshold"`
}

// Latched reports whether the guard blocks a buy at the given threshold.
func (g Guard) Latched(buyThreshold float64) bool {
	return g.BuyExecuted && g.ExecutedAtThreshold == buyThreshold
}

// TradeRecord is an immutable record of an executed trade. Profit is nil
// on buy records; sells carry the realized gain against average cost basis.
type TradeRecord struct {
	ID               string    `json:"id"`
	Seq              int64     `json:"seq"`
	Timestamp        time.Time `json:"timestamp"`
	Symbol           string    `json:"symbol"`
	Side             Side      `json:"side"`
	Price            float64   `json:"price"`
	Amount           float64   `json:"amount"`
	DollarAmount     float64   `json:"dollar_amount"`
	Profit           *float64  `json:"profit,omitempty"`
	CumulativeProfit float64   `json:"cumulative_profit"`
	NetInvestedAfter float64   `json:"net_invested_after"`
	Description      string    `json:"description"`
}

// CoinConfig holds the default trading parameters for one symbol.
type CoinConfig struct {
	Symbol        string  `yaml:"symbol" json:"symbol"`
	BuyThreshold  float64 `yaml:"buy_threshold" json:"buy_threshold"`
	SellThreshold float64 `yaml:"sell_threshold" json:"sell_threshold"`
	Quantity      float64 `yaml:"quantity" json:"quantity"`
}

// OrderRequest represents a trade order to be executed
type OrderRequest struct {
	Symbol   string
	Side     Side
	Quantity float64
	Price    float64
}

// OrderResult represents the result of an order execution
type OrderResult struct {
	OrderID   string
	FilledQty float64
	AvgPrice  float64
}

// SessionStatus is the orchestrator state exposed to the web layer.
type SessionStatus struct {
	Running          bool      `json:"running"`
	Symbol           string    `json:"symbol"`
	Algorithm        string    `json:"algorithm"`
	Quantity         float64   `json:"quantity"`
	Threshold        Threshold `json:"thresholds"`
	Position         Position  `json:"position"`
	CumulativeProfit float64   `json:"cumulative_profit"`
	LastAction       string    `json:"last_action"`
}
