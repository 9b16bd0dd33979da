// Package config loads server configuration from the environment and the
// optional coin catalogue file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"swingbot/internal/types"
)

// Config holds the application configuration.
type Config struct {
	APIKey             string
	SecretKey          string
	Port               int
	MockMode           bool
	UseTestnet         bool
	DataDir            string
	CoinsFile          string
	LogLevel           string
	PriceCheckInterval time.Duration
	MaxPriceHistory    int
	PostgresMode       bool // Use PostgreSQL instead of file persistence
}

// Load reads configuration from environment variables. Every value has a
// safe default; mock mode is on unless explicitly disabled.
func Load() Config {
	port := 9090
	if p := os.Getenv("PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}

	mockMode := true // Default to mock mode for safety
	if m := os.Getenv("MOCK_MODE"); m != "" {
		mockMode = isTruthy(m)
	}

	useTestnet := false
	if v := os.Getenv("USE_TESTNET"); v != "" {
		useTestnet = isTruthy(v)
	}

	// PostgreSQL mode is enabled if POSTGRES_HOST is set
	postgresMode := os.Getenv("POSTGRES_HOST") != ""

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	coinsFile := os.Getenv("COINS_FILE")

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	interval := 1500 * time.Millisecond
	if v := os.Getenv("PRICE_CHECK_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	maxHistory := 1000
	if v := os.Getenv("MAX_PRICE_HISTORY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxHistory = parsed
		}
	}

	return Config{
		APIKey:             os.Getenv("API_KEY"),
		SecretKey:          os.Getenv("SECRET_KEY"),
		Port:               port,
		MockMode:           mockMode,
		UseTestnet:         useTestnet,
		DataDir:            dataDir,
		CoinsFile:          coinsFile,
		LogLevel:           logLevel,
		PriceCheckInterval: interval,
		MaxPriceHistory:    maxHistory,
		PostgresMode:       postgresMode,
	}
}

func isTruthy(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}

// DefaultCoins is the built-in coin catalogue used when no coins file is
// configured.
func DefaultCoins() []types.CoinConfig {
	return []types.CoinConfig{
		{Symbol: "BTCUSDT", BuyThreshold: 85985, SellThreshold: 85990, Quantity: 0.001},
		{Symbol: "ETHUSDT", BuyThreshold: 3000, SellThreshold: 3100, Quantity: 0.01},
		{Symbol: "LTCUSDT", BuyThreshold: 150, SellThreshold: 160, Quantity: 0.1},
	}
}

type coinsFile struct {
	Coins []types.CoinConfig `yaml:"coins"`
}

// LoadCoins reads the coin catalogue from a YAML file. An empty path
// returns the built-in defaults.
func LoadCoins(path string) ([]types.CoinConfig, error) {
	if path == "" {
		return DefaultCoins(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading coins file %s: %w", path, err)
	}

	var parsed coinsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing coins file %s: %w", path, err)
	}
	if len(parsed.Coins) == 0 {
		return nil, fmt.Errorf("coins file %s defines no coins", path)
	}

	for _, c := range parsed.Coins {
		if c.Symbol == "" {
			return nil, fmt.Errorf("coins file %s has an entry without a symbol", path)
		}
		if c.Quantity <= 0 {
			return nil, fmt.Errorf("coins file %s: %s quantity must be positive", path, c.Symbol)
		}
	}
	return parsed.Coins, nil
}
