// Package metrics exposes the Prometheus instrumentation the bot updates
// during operation, served at /metrics in text exposition format:
//
//   - bot_decisions_total{signal}  – decisions taken (buy|sell|hold)
//   - bot_orders_total{side,outcome} – order placements by outcome
//   - bot_trades_total{side}       – durably recorded trades
//   - bot_current_price            – last evaluated price (gauge)
//   - bot_in_position              – 1 while holding, 0 while flat
//   - bot_quantity_held            – units held in the open position
//   - bot_net_invested             – capital committed to the open position
//   - bot_cumulative_profit        – running realized profit over sells
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swingbot/internal/types"
)

var (
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Decisions taken by the active algorithm",
		},
		[]string{"signal"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders placed, by side and outcome",
		},
		[]string{"side", "outcome"},
	)

	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Trades durably recorded in the ledger",
		},
		[]string{"side"},
	)

	CurrentPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_current_price",
			Help: "Last evaluated price for the active symbol",
		},
	)

	InPosition = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_in_position",
			Help: "Whether the bot currently holds a position (0 or 1)",
		},
	)

	QuantityHeld = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_quantity_held",
			Help: "Units held in the open position",
		},
	)

	NetInvested = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_net_invested",
			Help: "Capital currently committed to the open position",
		},
	)

	CumulativeProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_cumulative_profit",
			Help: "Running realized profit over sell trades",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Decisions,
		Orders,
		Trades,
		CurrentPrice,
		InPosition,
		QuantityHeld,
		NetInvested,
		CumulativeProfit,
	)
}

// SetPosition updates the position gauges from one snapshot.
func SetPosition(p types.Position) {
	if p.InPosition {
		InPosition.Set(1)
	} else {
		InPosition.Set(0)
	}
	QuantityHeld.Set(p.QuantityHeld)
	NetInvested.Set(p.NetInvested)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
