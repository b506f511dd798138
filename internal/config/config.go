package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the trading venue
type Config struct {
	// Server
	HTTPAddr string
	Debug    bool

	// Database
	DatabaseURL string

	// Venue feeds
	BinanceWSURL     string
	BinanceSymbols   []string // lower-case stream symbols, e.g. btcusdt
	CoinbaseWSURL    string
	CoinbaseProducts []string // hyphen form, e.g. BTC-USD
	CoinbaseAPIURL   string

	// Fees
	MarketFeeRate decimal.Decimal // taker, applied to MARKET fills
	LimitFeeRate  decimal.Decimal // maker, applied to LIMIT fills

	// Accounts
	InitialBalance  decimal.Decimal
	DefaultLeverage int

	// Loop cadences
	EngineInterval   time.Duration
	EquityInterval   time.Duration
	ReconnectBackoff time.Duration

	// Telegram (optional fill notifications)
	TelegramToken  string
	TelegramChatID int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
		Debug:    getEnvBool("DEBUG", false),

		DatabaseURL: getEnv("DATABASE_URL", "data/papertrade.db"),

		BinanceWSURL:     getEnv("BINANCE_WS_URL", "wss://fstream.binance.com"),
		BinanceSymbols:   getEnvList("BINANCE_SYMBOLS", []string{"btcusdt", "ethusdt", "solusdt"}),
		CoinbaseWSURL:    getEnv("COINBASE_WS_URL", "wss://advanced-trade-ws.coinbase.com"),
		CoinbaseProducts: getEnvList("COINBASE_PRODUCTS", []string{"BTC-USD", "ETH-USD", "SOL-USD"}),
		CoinbaseAPIURL:   getEnv("COINBASE_API_URL", "https://api.coinbase.com/api/v3/brokerage"),

		MarketFeeRate: getEnvDecimal("MARKET_FEE_RATE", decimal.NewFromFloat(0.00045)),
		LimitFeeRate:  getEnvDecimal("LIMIT_FEE_RATE", decimal.NewFromFloat(0.00018)),

		InitialBalance:  getEnvDecimal("INITIAL_BALANCE", decimal.NewFromInt(10000)),
		DefaultLeverage: getEnvInt("DEFAULT_LEVERAGE", 20),

		EngineInterval:   getEnvDuration("ENGINE_INTERVAL", time.Second),
		EquityInterval:   getEnvDuration("EQUITY_INTERVAL", 60*time.Second),
		ReconnectBackoff: getEnvDuration("RECONNECT_BACKOFF", 5*time.Second),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err == nil {
			cfg.TelegramChatID = id
		}
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
