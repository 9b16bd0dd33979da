package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"swingbot/internal/exchange"
	"swingbot/internal/ledger"
	"swingbot/internal/metrics"
	"swingbot/internal/strategy"
	"swingbot/internal/types"
)

const (
	defaultPollInterval = 1500 * time.Millisecond
	defaultMaxHistory   = 1000
)

// PricePoint is one dashboard price sample.
type PricePoint struct {
	Time  int64   `json:"t"`
	Price float64 `json:"price"`
}

// Bot is the trading orchestrator. It owns one active session at a time:
// the symbol, quantity, thresholds, position and duplicate-buy guard, plus
// the selected decision algorithm.
//
// All session state lives inside a single mutual-exclusion domain: a
// threshold update never interleaves with an in-flight evaluation, so the
// guard reset and the buy/sell decision cannot race. Price fetching is
// network I/O and happens outside the lock; callers fetch first, then call
// Evaluate with the sample.
type Bot struct {
	logger   *slog.Logger
	feed     exchange.PriceFeed
	executor exchange.Executor
	ledger   *ledger.Ledger

	pollInterval time.Duration
	maxHistory   int

	mu         sync.RWMutex
	running    bool
	symbol     string
	quantity   float64
	threshold  types.Threshold
	position   types.Position
	guard      types.Guard
	algo       strategy.Algorithm
	lastAction string
	history    []PricePoint
	stopPoll   context.CancelFunc
}

// Option configures the bot.
type Option func(*Bot)

// WithPollInterval overrides how often the background loop samples price.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bot) {
		b.pollInterval = d
	}
}

// WithMaxHistory bounds the dashboard price history buffer.
func WithMaxHistory(n int) Option {
	return func(b *Bot) {
		b.maxHistory = n
	}
}

// New creates a trading bot.
func New(feed exchange.PriceFeed, executor exchange.Executor, ldg *ledger.Ledger, logger *slog.Logger, opts ...Option) *Bot {
	b := &Bot{
		logger:       logger,
		feed:         feed,
		executor:     executor,
		ledger:       ldg,
		pollInterval: defaultPollInterval,
		maxHistory:   defaultMaxHistory,
		lastAction:   "None",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start begins a fresh trading session for symbol. Position, thresholds
// and guard are reset; trade history for prior symbols stays in the
// ledger. A running session is stopped first.
//
// The polling loop runs on a session-owned context so its lifetime is
// bound to Start/Stop, never to the caller's request.
func (b *Bot) Start(symbol, algoName string, buy, sell, quantity float64) error {
	if symbol == "" {
		return types.NewValidationError("symbol", "symbol is required")
	}
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return types.NewValidationError("quantity", "quantity must be a positive number")
	}
	if err := validateThreshold(buy, sell); err != nil {
		return err
	}

	algo, err := strategy.New(algoName)
	if err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	b.mu.Lock()
	if b.running {
		b.stopPoll()
	}
	b.running = true
	b.symbol = symbol
	b.quantity = quantity
	b.threshold = types.Threshold{Buy: buy, Sell: sell}
	b.position = types.Position{}
	b.guard = types.Guard{}
	b.algo = algo
	b.lastAction = "None"
	b.history = nil
	b.stopPoll = cancel
	b.mu.Unlock()

	if buy >= sell {
		b.logger.Warn("[ENGINE] Buy threshold is not below sell threshold",
			"symbol", symbol,
			"buy", buy,
			"sell", sell,
		)
	}

	metrics.SetPosition(types.Position{})

	go b.pollLoop(pollCtx)

	b.logger.Info("[ENGINE] Trading session started",
		"symbol", symbol,
		"algorithm", algoName,
		"buy_threshold", buy,
		"sell_threshold", sell,
		"quantity", quantity,
	)
	return nil
}

// Stop ends the active session. Safe to call when no session is running.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	b.running = false
	b.stopPoll()

	b.logger.Info("[ENGINE] Trading session stopped", "symbol", b.symbol)
}

// Running reports whether a session is active.
func (b *Bot) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Symbol returns the active session's symbol, empty when stopped.
func (b *Bot) Symbol() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running {
		return ""
	}
	return b.symbol
}

// Thresholds returns the threshold pair currently in effect.
func (b *Bot) Thresholds() types.Threshold {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.threshold
}

// PositionState returns a snapshot of the current position.
func (b *Bot) PositionState() types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

// Status returns the full session snapshot for the web layer.
func (b *Bot) Status() types.SessionStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := types.SessionStatus{
		Running:          b.running,
		Symbol:           b.symbol,
		Quantity:         b.quantity,
		Threshold:        b.threshold,
		Position:         b.position,
		CumulativeProfit: b.ledger.CumulativeProfit(),
		LastAction:       b.lastAction,
	}
	if b.algo != nil {
		status.Algorithm = b.algo.Name()
	}
	return status
}

// PriceHistory returns the bounded dashboard price buffer.
func (b *Bot) PriceHistory() []PricePoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]PricePoint, len(b.history))
	copy(out, b.history)
	return out
}

// SupportsThresholdUpdates reports whether the active algorithm honors
// user threshold edits.
func (b *Bot) SupportsThresholdUpdates() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.algo != nil && b.algo.Name() == strategy.ThresholdAlgoName
}

// UpdateThresholds replaces the threshold regime and resets the duplicate
// buy guard. An inverted pair (buy >= sell) is warned about but accepted.
// The caller is expected to follow up with an Evaluate against a fresh
// price so the new regime takes effect immediately.
func (b *Bot) UpdateThresholds(buy, sell float64) (types.Threshold, error) {
	if err := validateThreshold(buy, sell); err != nil {
		return types.Threshold{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return types.Threshold{}, types.ErrNotRunning
	}
	if b.algo.Name() != strategy.ThresholdAlgoName {
		return types.Threshold{}, types.NewValidationError("algorithm",
			"algorithm %s does not support threshold settings", b.algo.Name())
	}

	old := b.threshold
	b.threshold = types.Threshold{Buy: buy, Sell: sell}
	b.guard = types.Guard{}

	if buy >= sell {
		b.logger.Warn("[ENGINE] Buy threshold is not below sell threshold",
			"symbol", b.symbol,
			"buy", buy,
			"sell", sell,
		)
	}

	b.logger.Info("[ENGINE] Thresholds updated",
		"symbol", b.symbol,
		"old_buy", old.Buy,
		"old_sell", old.Sell,
		"new_buy", buy,
		"new_sell", sell,
	)
	return b.threshold, nil
}

// Evaluate runs one price sample through the decision engine and, when a
// trade fires, executes and records it. It is the single entry point for
// both the polling loop and the threshold-update path.
//
// On execution failure the session state does not advance: the guard stays
// unlatched and the position keeps its previous state, so the next
// evaluation retries under the same condition. A trade whose ledger append
// fails is likewise not reflected in the session state.
func (b *Bot) Evaluate(ctx context.Context, price float64) (*types.TradeRecord, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, types.NewValidationError("price", "price must be a positive number, got %v", price)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil, types.ErrNotRunning
	}

	b.recordPrice(price)
	metrics.CurrentPrice.Set(price)

	decision := b.algo.Decide(price, strategy.State{
		Threshold: b.threshold,
		Position:  b.position,
		Guard:     b.guard,
	})
	metrics.Decisions.WithLabelValues(decision.String()).Inc()

	switch decision {
	case strategy.DecisionBuy:
		return b.executeBuy(ctx, price)
	case strategy.DecisionSell:
		return b.executeSell(ctx, price)
	default:
		return nil, nil
	}
}

// executeBuy places the order, appends the record, then commits the
// position and latches the guard. Caller holds the lock.
func (b *Bot) executeBuy(ctx context.Context, price float64) (*types.TradeRecord, error) {
	result, err := b.executor.PlaceOrder(ctx, types.OrderRequest{
		Symbol:   b.symbol,
		Side:     types.SideBuy,
		Quantity: b.quantity,
		Price:    price,
	})
	if err != nil {
		metrics.Orders.WithLabelValues(string(types.SideBuy), "error").Inc()
		return nil, &types.ExecutionError{Symbol: b.symbol, Side: types.SideBuy, Err: err}
	}
	metrics.Orders.WithLabelValues(string(types.SideBuy), "success").Inc()

	newPos := b.position
	newPos.ApplyBuy(price, b.quantity)

	rec := &types.TradeRecord{
		Timestamp:        time.Now(),
		Symbol:           b.symbol,
		Side:             types.SideBuy,
		Price:            price,
		Amount:           b.quantity,
		DollarAmount:     price * b.quantity,
		NetInvestedAfter: newPos.NetInvested,
		Description:      fmt.Sprintf("Bought %v %s at $%.2f", b.quantity, b.symbol, price),
	}
	if err := b.ledger.Append(ctx, rec); err != nil {
		b.logger.Error("[ENGINE] Buy executed but could not be recorded, keeping prior state",
			"symbol", b.symbol,
			"order_id", result.OrderID,
			"error", err,
		)
		return nil, err
	}

	b.position = newPos
	b.guard = types.Guard{BuyExecuted: true, ExecutedAtThreshold: b.threshold.Buy}
	b.lastAction = fmt.Sprintf("Bought at $%.2f", price)

	metrics.Trades.WithLabelValues(string(types.SideBuy)).Inc()
	metrics.SetPosition(b.position)

	b.logger.Info("[ENGINE] Buy executed",
		"symbol", b.symbol,
		"order_id", result.OrderID,
		"price", price,
		"amount", b.quantity,
		"net_invested", b.position.NetInvested,
	)
	return rec, nil
}

// executeSell closes the full position. Caller holds the lock.
func (b *Bot) executeSell(ctx context.Context, price float64) (*types.TradeRecord, error) {
	amount := b.position.QuantityHeld

	result, err := b.executor.PlaceOrder(ctx, types.OrderRequest{
		Symbol:   b.symbol,
		Side:     types.SideSell,
		Quantity: amount,
		Price:    price,
	})
	if err != nil {
		metrics.Orders.WithLabelValues(string(types.SideSell), "error").Inc()
		return nil, &types.ExecutionError{Symbol: b.symbol, Side: types.SideSell, Err: err}
	}
	metrics.Orders.WithLabelValues(string(types.SideSell), "success").Inc()

	newPos := b.position
	profit := newPos.ApplySell(price, amount)

	rec := &types.TradeRecord{
		Timestamp:        time.Now(),
		Symbol:           b.symbol,
		Side:             types.SideSell,
		Price:            price,
		Amount:           amount,
		DollarAmount:     price * amount,
		Profit:           &profit,
		NetInvestedAfter: newPos.NetInvested,
		Description:      fmt.Sprintf("Sold %v %s at $%.2f (profit $%.2f)", amount, b.symbol, price, profit),
	}
	if err := b.ledger.Append(ctx, rec); err != nil {
		b.logger.Error("[ENGINE] Sell executed but could not be recorded, keeping prior state",
			"symbol", b.symbol,
			"order_id", result.OrderID,
			"error", err,
		)
		return nil, err
	}

	b.position = newPos
	b.guard = types.Guard{}
	b.lastAction = fmt.Sprintf("Sold at $%.2f", price)

	metrics.Trades.WithLabelValues(string(types.SideSell)).Inc()
	metrics.SetPosition(b.position)
	metrics.CumulativeProfit.Set(b.ledger.CumulativeProfit())

	b.logger.Info("[ENGINE] Sell executed",
		"symbol", b.symbol,
		"order_id", result.OrderID,
		"price", price,
		"amount", amount,
		"profit", profit,
		"cumulative_profit", rec.CumulativeProfit,
	)
	return rec, nil
}

// recordPrice appends a dashboard sample. Caller holds the lock.
func (b *Bot) recordPrice(price float64) {
	b.history = append(b.history, PricePoint{
		Time:  time.Now().UnixMilli(),
		Price: price,
	})
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
}

// pollLoop samples the feed at the configured interval and evaluates
// every obtained price. Feed unavailability is a retryable no-op. The
// context is the session's own, cancelled by Stop or a restart.
func (b *Bot) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pollOnce(ctx)
		}
	}
}

func (b *Bot) pollOnce(ctx context.Context) {
	symbol := b.Symbol()
	if symbol == "" {
		return
	}

	price, err := b.feed.CurrentPrice(ctx, symbol, false)
	if err != nil {
		if errors.Is(err, types.ErrPriceUnavailable) {
			b.logger.Warn("[ENGINE] No price data available, waiting", "symbol", symbol)
		} else {
			b.logger.Error("[ENGINE] Price fetch failed", "symbol", symbol, "error", err)
		}
		return
	}

	if _, err := b.Evaluate(ctx, price); err != nil && !errors.Is(err, types.ErrNotRunning) {
		b.logger.Error("[ENGINE] Evaluation failed",
			"symbol", symbol,
			"price", price,
			"error", err,
		)
	}
}

func validateThreshold(buy, sell float64) error {
	if buy < 0 || math.IsNaN(buy) || math.IsInf(buy, 0) {
		return types.NewValidationError("buy_threshold", "must be a finite non-negative number")
	}
	if sell < 0 || math.IsNaN(sell) || math.IsInf(sell, 0) {
		return types.NewValidationError("sell_threshold", "must be a finite non-negative number")
	}
	return nil
}
