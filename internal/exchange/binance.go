package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	"swingbot/internal/types"
)

const defaultPriceCacheTTL = 1 * time.Second

type cachedPrice struct {
	price     float64
	fetchedAt time.Time
}

// BinanceClient wraps the Binance API client as both price feed and
// order executor. Prices are cached for a short TTL so dashboard reads
// do not hammer the REST API between poll cycles.
type BinanceClient struct {
	client   *binance.Client
	logger   *slog.Logger
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cachedPrice
}

// BinanceOption configures the Binance client.
type BinanceOption func(*BinanceClient)

// WithPriceCacheTTL overrides how long fetched prices are served from cache.
func WithPriceCacheTTL(ttl time.Duration) BinanceOption {
	return func(b *BinanceClient) {
		b.cacheTTL = ttl
	}
}

// NewBinanceClient creates a new Binance API client. Set useTestnet for
// the Binance spot testnet.
func NewBinanceClient(apiKey, secretKey string, useTestnet bool, logger *slog.Logger, opts ...BinanceOption) *BinanceClient {
	binance.UseTestnet = useTestnet
	b := &BinanceClient{
		client:   binance.NewClient(apiKey, secretKey),
		logger:   logger,
		cacheTTL: defaultPriceCacheTTL,
		cache:    make(map[string]cachedPrice),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CurrentPrice returns the latest ticker price for symbol, served from
// cache within the TTL unless forceFresh is set.
func (b *BinanceClient) CurrentPrice(ctx context.Context, symbol string, forceFresh bool) (float64, error) {
	if !forceFresh {
		b.mu.Lock()
		cached, ok := b.cache[symbol]
		b.mu.Unlock()
		if ok && time.Since(cached.fetchedAt) < b.cacheTTL {
			return cached.price, nil
		}
	}

	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		b.logger.Warn("[BINANCE] Price fetch failed",
			"symbol", symbol,
			"error", err,
		)
		return 0, fmt.Errorf("%w: %s", types.ErrPriceUnavailable, symbol)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w: %s", types.ErrPriceUnavailable, symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad price %q for %s", types.ErrPriceUnavailable, prices[0].Price, symbol)
	}

	b.mu.Lock()
	b.cache[symbol] = cachedPrice{price: price, fetchedAt: time.Now()}
	b.mu.Unlock()

	return price, nil
}

// PlaceOrder places a market order on Binance.
func (b *BinanceClient) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResult, error) {
	var side binance.SideType
	if req.Side == types.SideBuy {
		side = binance.SideTypeBuy
	} else {
		side = binance.SideTypeSell
	}

	quantityStr := strconv.FormatFloat(req.Quantity, 'f', 8, 64)

	order, err := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(quantityStr).
		Do(ctx)
	if err != nil {
		b.logger.Error("[BINANCE] Order failed",
			"symbol", req.Symbol,
			"side", req.Side,
			"error", err,
		)
		return nil, err
	}

	filledQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	avgPrice := averageFillPrice(order.Fills, req.Price)

	b.logger.Info("[BINANCE] Order placed",
		"order_id", order.OrderID,
		"symbol", req.Symbol,
		"side", req.Side,
		"status", order.Status,
		"filled_qty", filledQty,
	)

	return &types.OrderResult{
		OrderID:   strconv.FormatInt(order.OrderID, 10),
		FilledQty: filledQty,
		AvgPrice:  avgPrice,
	}, nil
}

// averageFillPrice computes the quantity-weighted fill price, falling back
// to the reference price when the exchange reports no fills.
func averageFillPrice(fills []*binance.Fill, fallback float64) float64 {
	var totalQty, totalCost float64
	for _, fill := range fills {
		price, perr := strconv.ParseFloat(fill.Price, 64)
		qty, qerr := strconv.ParseFloat(fill.Quantity, 64)
		if perr != nil || qerr != nil {
			continue
		}
		totalQty += qty
		totalCost += price * qty
	}
	if totalQty == 0 {
		return fallback
	}
	return totalCost / totalQty
}

// Close cleans up resources.
func (b *BinanceClient) Close() error {
	return nil
}

// IsPriceUnavailable reports whether err is the retryable missing-price
// condition.
func IsPriceUnavailable(err error) bool {
	return errors.Is(err, types.ErrPriceUnavailable)
}
