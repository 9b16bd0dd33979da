package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"swingbot/internal/config"
	"swingbot/internal/engine"
	"swingbot/internal/exchange"
	"swingbot/internal/ledger"
	"swingbot/internal/metrics"
	"swingbot/internal/receiver"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := config.Load()
	logger := setupLogger(cfg.LogLevel)

	logger.Info("Starting SwingBot Server",
		"mock_mode", cfg.MockMode,
		"port", cfg.Port,
		"postgres_mode", cfg.PostgresMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Coin catalogue
	coins, err := config.LoadCoins(cfg.CoinsFile)
	if err != nil {
		logger.Error("Failed to load coin catalogue", "error", err)
		os.Exit(1)
	}

	// Trade store: PostgreSQL when POSTGRES_HOST is set, JSON files
	// otherwise.
	var store ledger.Store
	if cfg.PostgresMode {
		logger.Info("Using PostgreSQL trade store")
		store, err = ledger.NewPostgresStore(ctx, logger)
	} else {
		logger.Info("Using file trade store", "data_dir", cfg.DataDir)
		store, err = ledger.NewFileStore(cfg.DataDir, logger)
	}
	if err != nil {
		logger.Error("Failed to initialize trade store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Load trade history and replay it so the cumulative profit survives
	// restarts.
	ldg := ledger.New(store, logger)
	if err := ldg.Load(ctx); err != nil {
		logger.Error("Failed to load trade history", "error", err)
		os.Exit(1)
	}
	replayed := ledger.Replay(ldg.All())
	metrics.CumulativeProfit.Set(replayed.CumulativeProfit)
	logger.Info("Trade history loaded",
		"trades", ldg.Len(),
		"cumulative_profit", replayed.CumulativeProfit,
	)
	for symbol, pos := range replayed.Positions {
		if pos.InPosition {
			logger.Warn("Replayed history leaves an open position, it is not resumed automatically",
				"symbol", symbol,
				"quantity_held", pos.QuantityHeld,
				"net_invested", pos.NetInvested,
			)
		}
	}

	// Price feed and order executor
	var feed exchange.PriceFeed
	var executor exchange.Executor

	if cfg.MockMode {
		logger.Info("Running in MOCK MODE - no real trades will be executed")
		feed = exchange.NewMockFeed(logger, exchange.WithSimulation(time.Now().UnixNano()))
		executor = exchange.NewMockExecutor(logger)
	} else {
		if cfg.APIKey == "" || cfg.SecretKey == "" {
			logger.Error("API_KEY and SECRET_KEY are required for live trading")
			os.Exit(1)
		}
		client := exchange.NewBinanceClient(cfg.APIKey, cfg.SecretKey, cfg.UseTestnet, logger)
		feed = client
		executor = client
	}

	bot := engine.New(feed, executor, ldg, logger,
		engine.WithPollInterval(cfg.PriceCheckInterval),
		engine.WithMaxHistory(cfg.MaxPriceHistory),
	)

	httpReceiver := receiver.NewHTTPReceiver(cfg.Port, bot, feed, ldg, coins, logger)
	if err := httpReceiver.Start(ctx); err != nil {
		logger.Error("Failed to start HTTP receiver", "error", err)
		os.Exit(1)
	}

	logger.Info("SwingBot Server is running",
		"http_endpoint", "http://127.0.0.1:"+strconv.Itoa(cfg.Port),
	)
	logger.Info("Send POST /start_trading to begin a session")
	logger.Info("Press Ctrl+C to stop")

	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop HTTP receiver first so no new commands arrive mid-shutdown
	if err := httpReceiver.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP receiver", "error", err)
	}

	bot.Stop()

	if err := executor.Close(); err != nil {
		logger.Error("Error closing executor", "error", err)
	}

	logger.Info("SwingBot Server stopped gracefully")
}

// setupLogger configures the structured logger
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}
