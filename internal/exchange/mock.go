package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"swingbot/internal/types"
)

// MockFeed implements PriceFeed for testing and mock mode. Tests inject
// prices directly; simulation mode random-walks a price per symbol so the
// server is usable without an exchange connection.
type MockFeed struct {
	logger *slog.Logger

	mu       sync.Mutex
	prices   map[string]float64
	down     bool
	simulate bool
	rng      *rand.Rand
}

// MockFeedOption configures the mock feed.
type MockFeedOption func(*MockFeed)

// WithPrice preloads a price for a symbol.
func WithPrice(symbol string, price float64) MockFeedOption {
	return func(m *MockFeed) {
		m.prices[symbol] = price
	}
}

// WithSimulation makes unknown symbols start a random walk instead of
// reporting the feed unavailable.
func WithSimulation(seed int64) MockFeedOption {
	return func(m *MockFeed) {
		m.simulate = true
		m.rng = rand.New(rand.NewSource(seed))
	}
}

// NewMockFeed creates a mock price feed.
func NewMockFeed(logger *slog.Logger, opts ...MockFeedOption) *MockFeed {
	m := &MockFeed{
		logger: logger,
		prices: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetPrice injects the current price for a symbol.
func (m *MockFeed) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetDown simulates feed unavailability.
func (m *MockFeed) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// CurrentPrice returns the injected price, or ErrPriceUnavailable when the
// feed is down or the symbol has no price. In simulation mode the price
// random-walks around its last value.
func (m *MockFeed) CurrentPrice(ctx context.Context, symbol string, forceFresh bool) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.down {
		return 0, fmt.Errorf("%w: feed down", types.ErrPriceUnavailable)
	}
	price, ok := m.prices[symbol]
	if !ok {
		if !m.simulate {
			return 0, fmt.Errorf("%w: %s", types.ErrPriceUnavailable, symbol)
		}
		price = simBasePrice(symbol)
	}
	if m.simulate {
		// Drift up to half a percent per sample.
		price *= 1 + (m.rng.Float64()-0.5)*0.01
		m.prices[symbol] = price
	}
	return price, nil
}

func simBasePrice(symbol string) float64 {
	switch symbol {
	case "BTCUSDT":
		return 86000
	case "ETHUSDT":
		return 3050
	case "LTCUSDT":
		return 155
	default:
		return 100
	}
}

// MockExecutor implements Executor for testing without real trades.
type MockExecutor struct {
	logger      *slog.Logger
	mu          sync.RWMutex
	orders      []types.OrderRequest
	orderIDSeq  atomic.Int64
	shouldFail  bool
	failMessage string
}

// MockExecutorOption configures the mock executor.
type MockExecutorOption func(*MockExecutor)

// WithFailure makes the mock executor fail orders.
func WithFailure(msg string) MockExecutorOption {
	return func(m *MockExecutor) {
		m.shouldFail = true
		m.failMessage = msg
	}
}

// NewMockExecutor creates a new mock executor for testing.
func NewMockExecutor(logger *slog.Logger, opts ...MockExecutorOption) *MockExecutor {
	m := &MockExecutor{logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFailing toggles order failure at runtime.
func (m *MockExecutor) SetFailing(fail bool, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
	m.failMessage = msg
}

// PlaceOrder simulates order execution by recording the request.
func (m *MockExecutor) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFail {
		m.logger.Error("[MOCK] Order failed (configured)",
			"symbol", req.Symbol,
			"side", req.Side,
			"error", m.failMessage,
		)
		return nil, errors.New(m.failMessage)
	}

	orderID := fmt.Sprintf("MOCK-%d", m.orderIDSeq.Add(1))
	m.orders = append(m.orders, req)

	m.logger.Info("[MOCK] Order executed",
		"order_id", orderID,
		"symbol", req.Symbol,
		"side", req.Side,
		"quantity", req.Quantity,
		"price", req.Price,
	)

	return &types.OrderResult{
		OrderID:   orderID,
		FilledQty: req.Quantity,
		AvgPrice:  req.Price,
	}, nil
}

// GetOrders returns all orders placed so far.
func (m *MockExecutor) GetOrders() []types.OrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.OrderRequest, len(m.orders))
	copy(out, m.orders)
	return out
}

// Close cleans up resources.
func (m *MockExecutor) Close() error {
	return nil
}
