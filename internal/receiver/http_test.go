package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swingbot/internal/engine"
	"swingbot/internal/exchange"
	"swingbot/internal/ledger"
	"swingbot/internal/types"
)

type memStore struct {
	records []types.TradeRecord
}

func (m *memStore) Load(ctx context.Context) ([]types.TradeRecord, error) {
	return append([]types.TradeRecord(nil), m.records...), nil
}

func (m *memStore) Append(ctx context.Context, rec types.TradeRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Close() error { return nil }

type fixture struct {
	receiver *HTTPReceiver
	bot      *engine.Bot
	feed     *exchange.MockFeed
	ledger   *ledger.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ldg := ledger.New(&memStore{}, logger)
	feed := exchange.NewMockFeed(logger, exchange.WithPrice("BTCUSDT", 105))
	executor := exchange.NewMockExecutor(logger)
	bot := engine.New(feed, executor, ldg, logger, engine.WithPollInterval(time.Hour))
	coins := []types.CoinConfig{
		{Symbol: "BTCUSDT", BuyThreshold: 100, SellThreshold: 110, Quantity: 1},
	}
	recv := NewHTTPReceiver(0, bot, feed, ldg, coins, logger)
	t.Cleanup(bot.Stop)
	return &fixture{receiver: recv, bot: bot, feed: feed, ledger: ldg}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return decode(t, w)
}

func getPath(t *testing.T, handler http.HandlerFunc, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler(w, req)
	return decode(t, w)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp := w.Result()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, body
}

func TestStartTradingWithCatalogueDefaults(t *testing.T) {
	f := newFixture(t)

	resp, body := postJSON(t, f.receiver.handleStartTrading, "/start_trading",
		StartTradingRequest{Symbol: "BTCUSDT"})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want 200", resp.Status)
	}
	if body["status"] != "success" {
		t.Fatalf("envelope status = %v, body = %v", body["status"], body)
	}
	if body["buy_threshold"] != 100.0 || body["sell_threshold"] != 110.0 {
		t.Errorf("catalogue defaults not applied: %v", body)
	}
	if !f.bot.Running() {
		t.Error("bot not running after start_trading")
	}
}

func TestStartTradingWithExplicitParams(t *testing.T) {
	f := newFixture(t)

	buy, sell, qty := 50.0, 60.0, 2.0
	resp, body := postJSON(t, f.receiver.handleStartTrading, "/start_trading",
		StartTradingRequest{
			Symbol:        "ETHUSDT",
			BuyThreshold:  &buy,
			SellThreshold: &sell,
			Quantity:      &qty,
		})

	if resp.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("unexpected response: %v %v", resp.Status, body)
	}
	if got := f.bot.Symbol(); got != "ETHUSDT" {
		t.Errorf("symbol = %q, want ETHUSDT", got)
	}
}

func TestStartTradingValidationErrors(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		payload StartTradingRequest
	}{
		{"missing symbol", StartTradingRequest{}},
		{"unknown coin without params", StartTradingRequest{Symbol: "DOGEUSDT"}},
		{"unknown algorithm", StartTradingRequest{Symbol: "BTCUSDT", Algorithm: "martingale"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postJSON(t, f.receiver.handleStartTrading, "/start_trading", tc.payload)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("validation failures report at 200, got %v", resp.Status)
			}
			if body["status"] != "error" || body["message"] == "" {
				t.Errorf("expected error envelope with message, got %v", body)
			}
		})
	}

	if f.bot.Running() {
		t.Error("bot started despite validation failures")
	}
}

func TestStopTrading(t *testing.T) {
	f := newFixture(t)

	// Stopping without a session is a validation error, not a 4xx.
	resp, body := postJSON(t, f.receiver.handleStopTrading, "/stop_trading", struct{}{})
	if resp.StatusCode != http.StatusOK || body["status"] != "error" {
		t.Errorf("stop without session: %v %v", resp.Status, body)
	}

	postJSON(t, f.receiver.handleStartTrading, "/start_trading",
		StartTradingRequest{Symbol: "BTCUSDT"})

	resp, body = postJSON(t, f.receiver.handleStopTrading, "/stop_trading", struct{}{})
	if resp.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("stop failed: %v %v", resp.Status, body)
	}
	if f.bot.Running() {
		t.Error("bot still running after stop_trading")
	}
}

func TestUpdateThresholdsAbsolute(t *testing.T) {
	f := newFixture(t)
	postJSON(t, f.receiver.handleStartTrading, "/start_trading",
		StartTradingRequest{Symbol: "BTCUSDT"})

	buy, sell := 95.0, 105.0
	resp, body := postJSON(t, f.receiver.handleUpdateThresholds, "/update_thresholds",
		UpdateThresholdsRequest{BuyThreshold: &buy, SellThreshold: &sell})

	if resp.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("update failed: %v %v", resp.Status, body)
	}
	if got := f.bot.Thresholds(); got.Buy != 95 || got.Sell != 105 {
		t.Errorf("thresholds = %+v, want {95 105}", got)
	}
}

func TestUpdateThresholdsPercentage(t *testing.T) {
	f := newFixture(t)
	postJSON(t, f.receiver.handleStartTrading, "/start_trading",
		StartTradingRequest{Symbol: "BTCUSDT"})
	f.feed.SetPrice("BTCUSDT", 200)

	buyPct, sellPct := -10.0, 5.0
	resp, body := postJSON(t, f.receiver.handleUpdateThresholds, "/update_thresholds",
		UpdateThresholdsRequest{BuyPercentage: &buyPct, SellPercentage: &sellPct})

	if resp.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("update failed: %v %v", resp.Status, body)
	}
	got := f.bot.Thresholds()
	if got.Buy != 180 || got.Sell != 210 {
		t.Errorf("thresholds = %+v, want {180 210}", got)
	}
}

func TestUpdateThresholdsFiresImmediateTrade(t *testing.T) {
	f := newFixture(t)
	postJSON(t, f.receiver.handleStartTrading, "/start_trading",
		StartTradingRequest{Symbol: "BTCUSDT"})
	f.feed.SetPrice("BTCUSDT", 105) // above the catalogue buy threshold of 100

	// Raising the buy threshold over the current price triggers a buy in
	// the same request.
	buy, sell := 106.0, 120.0
	resp, body := postJSON(t, f.receiver.handleUpdateThresholds, "/update_thresholds",
		UpdateThresholdsRequest{BuyThreshold: &buy, SellThreshold: &sell})

	if resp.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("update failed: %v %v", resp.Status, body)
	}
	if body["trade"] == nil {
		t.Fatal("expected an immediate trade in the response")
	}
	if !f.bot.PositionState().InPosition {
		t.Error("bot should be long after immediate buy")
	}
}

func TestUpdateThresholdsPercentageFeedDown(t *testing.T) {
	f := newFixture(t)
	postJSON(t, f.receiver.handleStartTrading, "/start_trading",
		StartTradingRequest{Symbol: "BTCUSDT"})
	f.feed.SetDown(true)

	buyPct, sellPct := -10.0, 5.0
	resp, body := postJSON(t, f.receiver.handleUpdateThresholds, "/update_thresholds",
		UpdateThresholdsRequest{BuyPercentage: &buyPct, SellPercentage: &sellPct})

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("feed down should map to 503, got %v", resp.Status)
	}
	if body["status"] != "error" {
		t.Errorf("expected error envelope, got %v", body)
	}
}

func TestUpdateThresholdsWithoutSession(t *testing.T) {
	f := newFixture(t)

	buy, sell := 95.0, 105.0
	resp, body := postJSON(t, f.receiver.handleUpdateThresholds, "/update_thresholds",
		UpdateThresholdsRequest{BuyThreshold: &buy, SellThreshold: &sell})

	if resp.StatusCode != http.StatusOK || body["status"] != "error" {
		t.Errorf("update without session: %v %v", resp.Status, body)
	}
}

func TestCurrentPrice(t *testing.T) {
	f := newFixture(t)

	// No session and no symbol param.
	resp, body := getPath(t, f.receiver.handleCurrentPrice, "/current_price")
	if resp.StatusCode != http.StatusOK || body["status"] != "error" {
		t.Errorf("expected validation error, got %v %v", resp.Status, body)
	}

	resp, body = getPath(t, f.receiver.handleCurrentPrice, "/current_price?symbol=BTCUSDT")
	if resp.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("price lookup failed: %v %v", resp.Status, body)
	}
	if body["price"] != 105.0 {
		t.Errorf("price = %v, want 105", body["price"])
	}

	f.feed.SetDown(true)
	resp, _ = getPath(t, f.receiver.handleCurrentPrice, "/current_price?symbol=BTCUSDT&force=true")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("feed down should map to 503, got %v", resp.Status)
	}
}

func TestTradesFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, sym := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"} {
		rec := &types.TradeRecord{Symbol: sym, Side: types.SideBuy, Price: 1, Amount: 1}
		if err := f.ledger.Append(ctx, rec); err != nil {
			t.Fatalf("seed append: %v", err)
		}
	}

	_, body := getPath(t, f.receiver.handleTrades, "/trades?symbol=BTCUSDT")
	if body["count"] != 2.0 {
		t.Errorf("filtered count = %v, want 2", body["count"])
	}

	_, body = getPath(t, f.receiver.handleTrades, "/trades")
	if body["count"] != 3.0 {
		t.Errorf("unfiltered count = %v, want 3", body["count"])
	}
}

func TestDashboardEndpoints(t *testing.T) {
	f := newFixture(t)
	postJSON(t, f.receiver.handleStartTrading, "/start_trading",
		StartTradingRequest{Symbol: "BTCUSDT"})

	_, body := getPath(t, f.receiver.handleThresholds, "/thresholds")
	if body["buy_threshold"] != 100.0 {
		t.Errorf("thresholds payload: %v", body)
	}

	_, body = getPath(t, f.receiver.handlePosition, "/position")
	if body["position"] == nil {
		t.Errorf("position payload: %v", body)
	}

	_, body = getPath(t, f.receiver.handleProfit, "/profit")
	if body["cumulative_profit"] != 0.0 {
		t.Errorf("profit payload: %v", body)
	}

	_, body = getPath(t, f.receiver.handleAvailableCoins, "/available_coins")
	if body["coins"] == nil {
		t.Errorf("coins payload: %v", body)
	}

	_, body = getPath(t, f.receiver.handleAvailableAlgorithms, "/available_algorithms")
	algos, ok := body["algorithms"].([]interface{})
	if !ok || len(algos) < 3 {
		t.Errorf("algorithms payload: %v", body)
	}

	_, body = getPath(t, f.receiver.handleUpdate, "/update")
	if body["session"] == nil || body["price_history"] == nil {
		t.Errorf("update payload: %v", body)
	}
}

func TestPollingOutlivesStartRequest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ldg := ledger.New(&memStore{}, logger)
	feed := exchange.NewMockFeed(logger, exchange.WithPrice("BTCUSDT", 99))
	executor := exchange.NewMockExecutor(logger)
	bot := engine.New(feed, executor, ldg, logger, engine.WithPollInterval(5*time.Millisecond))
	coins := []types.CoinConfig{
		{Symbol: "BTCUSDT", BuyThreshold: 100, SellThreshold: 110, Quantity: 1},
	}
	recv := NewHTTPReceiver(0, bot, feed, ldg, coins, logger)
	t.Cleanup(bot.Stop)

	// A real server cancels the request context once the handler returns.
	// The poll loop must keep running on the session's own lifetime.
	srv := httptest.NewServer(http.HandlerFunc(recv.handleStartTrading))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json",
		bytes.NewReader([]byte(`{"symbol":"BTCUSDT"}`)))
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %v", resp.Status)
	}

	deadline := time.After(2 * time.Second)
	for ldg.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("poll loop stopped trading after the start request finished")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := ldg.All()[0].Side; got != types.SideBuy {
		t.Errorf("first polled trade = %s, want BUY", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/start_trading", nil)
	w := httptest.NewRecorder()
	f.receiver.handleStartTrading(w, req)

	resp, _ := decode(t, w)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %v, want 405", resp.Status)
	}
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)

	resp, body := getPath(t, f.receiver.handleHealth, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %v, want 200", resp.Status)
	}
	if body["status"] != "healthy" {
		t.Errorf("health payload: %v", body)
	}
}

func TestStartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ldg := ledger.New(&memStore{}, logger)
	feed := exchange.NewMockFeed(logger)
	executor := exchange.NewMockExecutor(logger)
	bot := engine.New(feed, executor, ldg, logger)
	recv := NewHTTPReceiver(48127, bot, feed, ldg, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := recv.Start(ctx); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	resp, err := http.Get("http://127.0.0.1:48127/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %v", resp.Status)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := recv.Stop(shutdownCtx); err != nil {
		t.Errorf("stop failed: %v", err)
	}

	if _, err := http.Get("http://127.0.0.1:48127/health"); err == nil {
		t.Error("server still reachable after stop")
	}
}

func TestStopWithoutStart(t *testing.T) {
	f := newFixture(t)
	if err := f.receiver.Stop(context.Background()); err != nil {
		t.Errorf("stop without start: %v", err)
	}
}
