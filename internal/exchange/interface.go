package exchange

import (
	"context"

	"swingbot/internal/types"
)

// PriceFeed supplies the current price for a symbol on demand.
// Implementations may serve a cached value; forceFresh bypasses any cache.
// An unobtainable price is reported as types.ErrPriceUnavailable, which
// callers treat as a retryable no-op rather than a failure.
type PriceFeed interface {
	CurrentPrice(ctx context.Context, symbol string, forceFresh bool) (float64, error)
}

// Executor places orders on the exchange.
type Executor interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResult, error)

	// Close cleans up resources
	Close() error
}
