// Package receiver exposes the trading bot over HTTP. All control and
// dashboard endpoints answer JSON envelopes: a "status" field of
// "success" or "error", with validation failures reported in-band at 200
// so the dashboard can surface the message. Only an unavailable price
// feed maps to 503.
package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"swingbot/internal/engine"
	"swingbot/internal/exchange"
	"swingbot/internal/ledger"
	"swingbot/internal/metrics"
	"swingbot/internal/strategy"
	"swingbot/internal/types"
)

// HTTPReceiver handles incoming control requests and dashboard queries.
type HTTPReceiver struct {
	server *http.Server
	logger *slog.Logger
	bot    *engine.Bot
	feed   exchange.PriceFeed
	ledger *ledger.Ledger
	coins  []types.CoinConfig
	port   int
}

// StartTradingRequest is the body of POST /start_trading. Threshold and
// quantity fields are optional; omitted values fall back to the coin
// catalogue entry for the symbol.
type StartTradingRequest struct {
	Symbol        string   `json:"symbol"`
	Algorithm     string   `json:"algorithm,omitempty"`
	BuyThreshold  *float64 `json:"buy_threshold,omitempty"`
	SellThreshold *float64 `json:"sell_threshold,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
}

// UpdateThresholdsRequest is the body of POST /update_thresholds. Either
// absolute thresholds or percentage offsets from the current price may be
// given; percentages win when both are present.
type UpdateThresholdsRequest struct {
	BuyThreshold   *float64 `json:"buy_threshold,omitempty"`
	SellThreshold  *float64 `json:"sell_threshold,omitempty"`
	BuyPercentage  *float64 `json:"buy_percentage,omitempty"`
	SellPercentage *float64 `json:"sell_percentage,omitempty"`
}

// NewHTTPReceiver creates a new HTTP receiver.
func NewHTTPReceiver(port int, bot *engine.Bot, feed exchange.PriceFeed, ldg *ledger.Ledger, coins []types.CoinConfig, logger *slog.Logger) *HTTPReceiver {
	return &HTTPReceiver{
		port:   port,
		bot:    bot,
		feed:   feed,
		ledger: ldg,
		coins:  coins,
		logger: logger,
	}
}

// Start starts the HTTP server.
func (r *HTTPReceiver) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// Control endpoints
	mux.HandleFunc("/start_trading", r.handleStartTrading)
	mux.HandleFunc("/stop_trading", r.handleStopTrading)
	mux.HandleFunc("/update_thresholds", r.handleUpdateThresholds)

	// Dashboard endpoints
	mux.HandleFunc("/thresholds", r.handleThresholds)
	mux.HandleFunc("/position", r.handlePosition)
	mux.HandleFunc("/trades", r.handleTrades)
	mux.HandleFunc("/profit", r.handleProfit)
	mux.HandleFunc("/current_price", r.handleCurrentPrice)
	mux.HandleFunc("/update", r.handleUpdate)
	mux.HandleFunc("/available_coins", r.handleAvailableCoins)
	mux.HandleFunc("/available_algorithms", r.handleAvailableAlgorithms)

	// Health and info endpoints
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", r.handleHealth)
	mux.HandleFunc("/", r.handleRoot)

	r.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", r.port),
		Handler:      r.loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	r.logger.Info("[RECEIVER] Starting HTTP server",
		"port", r.port,
		"address", r.server.Addr,
	)

	// Run server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait briefly to check for immediate errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts down the HTTP server.
func (r *HTTPReceiver) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}

	r.logger.Info("[RECEIVER] Shutting down HTTP server")
	return r.server.Shutdown(ctx)
}

// loggingMiddleware logs all incoming requests
func (r *HTTPReceiver) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, req)

		r.logger.Info("[RECEIVER] Request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote", req.RemoteAddr,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// sendSuccess writes the success envelope plus any extra fields.
func (r *HTTPReceiver) sendSuccess(w http.ResponseWriter, fields map[string]interface{}) {
	body := map[string]interface{}{"status": "success"}
	for k, v := range fields {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

// sendError writes the error envelope. Validation failures go out at 200
// so dashboard clients read the message instead of a transport error.
func (r *HTTPReceiver) sendError(w http.ResponseWriter, httpStatus int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "error",
		"message": message,
	})
}

// sendForError maps an error from the engine to the right envelope.
func (r *HTTPReceiver) sendForError(w http.ResponseWriter, err error) {
	if exchange.IsPriceUnavailable(err) {
		r.sendError(w, http.StatusServiceUnavailable, "Price feed unavailable")
		return
	}
	r.sendError(w, http.StatusOK, err.Error())
}

// handleRoot handles requests to the root path
func (r *HTTPReceiver) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service": "swingbot",
		"version": "1.0.0",
		"endpoints": []string{
			"POST /start_trading - Start a trading session",
			"POST /stop_trading - Stop the active session",
			"POST /update_thresholds - Update buy/sell thresholds",
			"GET /thresholds - Current thresholds",
			"GET /position - Current position",
			"GET /trades?symbol=xxx - Trade history",
			"GET /profit - Cumulative profit",
			"GET /current_price - Latest price for the active symbol",
			"GET /update - Combined dashboard payload",
			"GET /available_coins - Coin catalogue",
			"GET /available_algorithms - Decision algorithms",
			"GET /metrics - Prometheus metrics",
			"GET /health - Health check",
		},
	})
}

// handleHealth handles health check requests
func (r *HTTPReceiver) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleStartTrading handles POST /start_trading. A session that is
// already running is replaced.
func (r *HTTPReceiver) handleStartTrading(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var startReq StartTradingRequest
	if err := json.NewDecoder(req.Body).Decode(&startReq); err != nil {
		r.sendError(w, http.StatusOK, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	if startReq.Symbol == "" {
		r.sendError(w, http.StatusOK, "symbol is required")
		return
	}

	algo := startReq.Algorithm
	if algo == "" {
		algo = strategy.ThresholdAlgoName
	}

	buy, sell, quantity, err := r.resolveSessionParams(&startReq)
	if err != nil {
		r.sendError(w, http.StatusOK, err.Error())
		return
	}

	if err := r.bot.Start(startReq.Symbol, algo, buy, sell, quantity); err != nil {
		r.sendForError(w, err)
		return
	}

	r.sendSuccess(w, map[string]interface{}{
		"message":        fmt.Sprintf("Trading started for %s", startReq.Symbol),
		"symbol":         startReq.Symbol,
		"algorithm":      algo,
		"buy_threshold":  buy,
		"sell_threshold": sell,
		"quantity":       quantity,
	})
}

// resolveSessionParams fills omitted thresholds and quantity from the
// coin catalogue entry for the requested symbol.
func (r *HTTPReceiver) resolveSessionParams(req *StartTradingRequest) (buy, sell, quantity float64, err error) {
	var catalogued *types.CoinConfig
	for i := range r.coins {
		if r.coins[i].Symbol == req.Symbol {
			catalogued = &r.coins[i]
			break
		}
	}

	needsDefaults := req.BuyThreshold == nil || req.SellThreshold == nil || req.Quantity == nil
	if needsDefaults && catalogued == nil {
		return 0, 0, 0, fmt.Errorf("%s is not in the coin catalogue, buy_threshold, sell_threshold and quantity are required", req.Symbol)
	}

	if req.BuyThreshold != nil {
		buy = *req.BuyThreshold
	} else {
		buy = catalogued.BuyThreshold
	}
	if req.SellThreshold != nil {
		sell = *req.SellThreshold
	} else {
		sell = catalogued.SellThreshold
	}
	if req.Quantity != nil {
		quantity = *req.Quantity
	} else {
		quantity = catalogued.Quantity
	}
	return buy, sell, quantity, nil
}

// handleStopTrading handles POST /stop_trading.
func (r *HTTPReceiver) handleStopTrading(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !r.bot.Running() {
		r.sendError(w, http.StatusOK, "Trading is not currently active")
		return
	}

	symbol := r.bot.Symbol()
	r.bot.Stop()

	r.sendSuccess(w, map[string]interface{}{
		"message": fmt.Sprintf("Trading stopped for %s", symbol),
	})
}

// handleUpdateThresholds handles POST /update_thresholds. After a
// successful update the new regime is evaluated against a fresh price
// immediately, so a trade can fire in the same request.
func (r *HTTPReceiver) handleUpdateThresholds(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var updateReq UpdateThresholdsRequest
	if err := json.NewDecoder(req.Body).Decode(&updateReq); err != nil {
		r.sendError(w, http.StatusOK, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	if !r.bot.Running() {
		r.sendError(w, http.StatusOK, "Trading is not currently active")
		return
	}

	ctx := req.Context()
	buy, sell, price, err := r.resolveThresholds(ctx, &updateReq)
	if err != nil {
		r.sendForError(w, err)
		return
	}

	updated, err := r.bot.UpdateThresholds(buy, sell)
	if err != nil {
		r.sendForError(w, err)
		return
	}

	// Apply the new regime right away instead of waiting for the next
	// poll tick.
	if price == 0 {
		price, err = r.feed.CurrentPrice(ctx, r.bot.Symbol(), true)
	}
	fields := map[string]interface{}{
		"message":        "Thresholds updated",
		"buy_threshold":  updated.Buy,
		"sell_threshold": updated.Sell,
	}
	if err != nil {
		r.logger.Warn("[RECEIVER] Could not evaluate new thresholds immediately",
			"error", err,
		)
		r.sendSuccess(w, fields)
		return
	}

	trade, err := r.bot.Evaluate(ctx, price)
	if err != nil && !errors.Is(err, types.ErrNotRunning) {
		r.logger.Error("[RECEIVER] Evaluation after threshold update failed", "error", err)
	}
	if trade != nil {
		fields["trade"] = trade
	}
	r.sendSuccess(w, fields)
}

// resolveThresholds turns the request into an absolute threshold pair.
// Percentage mode computes offsets from a force-fresh price and returns
// that price so the caller can reuse it.
func (r *HTTPReceiver) resolveThresholds(ctx context.Context, req *UpdateThresholdsRequest) (buy, sell, price float64, err error) {
	if req.BuyPercentage != nil || req.SellPercentage != nil {
		if req.BuyPercentage == nil || req.SellPercentage == nil {
			return 0, 0, 0, fmt.Errorf("both buy_percentage and sell_percentage are required in percentage mode")
		}

		price, err = r.feed.CurrentPrice(ctx, r.bot.Symbol(), true)
		if err != nil {
			return 0, 0, 0, err
		}
		buy = price * (1 + *req.BuyPercentage/100)
		sell = price * (1 + *req.SellPercentage/100)
		return buy, sell, price, nil
	}

	if req.BuyThreshold == nil || req.SellThreshold == nil {
		return 0, 0, 0, fmt.Errorf("buy_threshold and sell_threshold are required")
	}
	return *req.BuyThreshold, *req.SellThreshold, 0, nil
}

// handleThresholds handles GET /thresholds.
func (r *HTTPReceiver) handleThresholds(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	th := r.bot.Thresholds()
	r.sendSuccess(w, map[string]interface{}{
		"buy_threshold":  th.Buy,
		"sell_threshold": th.Sell,
	})
}

// handlePosition handles GET /position.
func (r *HTTPReceiver) handlePosition(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.sendSuccess(w, map[string]interface{}{
		"position": r.bot.PositionState(),
	})
}

// handleTrades handles GET /trades with an optional symbol filter.
func (r *HTTPReceiver) handleTrades(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var trades []types.TradeRecord
	if symbol := req.URL.Query().Get("symbol"); symbol != "" {
		trades = r.ledger.Query(symbol)
	} else {
		trades = r.ledger.All()
	}

	r.sendSuccess(w, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// handleProfit handles GET /profit.
func (r *HTTPReceiver) handleProfit(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.sendSuccess(w, map[string]interface{}{
		"cumulative_profit": r.ledger.CumulativeProfit(),
	})
}

// handleCurrentPrice handles GET /current_price. The symbol defaults to
// the active session's; ?force=true bypasses the feed cache.
func (r *HTTPReceiver) handleCurrentPrice(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	symbol := req.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = r.bot.Symbol()
	}
	if symbol == "" {
		r.sendError(w, http.StatusOK, "symbol is required when no session is active")
		return
	}

	force := req.URL.Query().Get("force") == "true"
	price, err := r.feed.CurrentPrice(req.Context(), symbol, force)
	if err != nil {
		r.sendForError(w, err)
		return
	}

	r.sendSuccess(w, map[string]interface{}{
		"symbol": symbol,
		"price":  price,
	})
}

// handleUpdate handles GET /update, the combined dashboard poll payload.
func (r *HTTPReceiver) handleUpdate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status := r.bot.Status()

	var trades []types.TradeRecord
	if status.Symbol != "" {
		trades = r.ledger.Query(status.Symbol)
	} else {
		trades = r.ledger.All()
	}

	r.sendSuccess(w, map[string]interface{}{
		"session":           status,
		"price_history":     r.bot.PriceHistory(),
		"trades":            trades,
		"cumulative_profit": r.ledger.CumulativeProfit(),
	})
}

// handleAvailableCoins handles GET /available_coins.
func (r *HTTPReceiver) handleAvailableCoins(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.sendSuccess(w, map[string]interface{}{
		"coins": r.coins,
	})
}

// handleAvailableAlgorithms handles GET /available_algorithms.
func (r *HTTPReceiver) handleAvailableAlgorithms(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.sendSuccess(w, map[string]interface{}{
		"algorithms": strategy.Names(),
	})
}
