// Papertrade - leveraged futures paper-trading venue
//
// Real marks stream in from Binance and Coinbase, orders rest in the
// database, and a single-writer matching engine fills them against the
// latest mark with one-way position accounting.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"papertrade/internal/api"
	"papertrade/internal/config"
	"papertrade/internal/engine"
	"papertrade/internal/equity"
	"papertrade/internal/feeds"
	"papertrade/internal/market"
	"papertrade/internal/notify"
	"papertrade/internal/pricecache"
	"papertrade/internal/store"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info().
		Str("version", version).
		Strs("binance_symbols", cfg.BinanceSymbols).
		Strs("coinbase_products", cfg.CoinbaseProducts).
		Msg("⚡ Papertrade venue starting...")

	// Database
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Shared price cache fed by the venue ingesters
	cache := pricecache.New()

	binanceFeed := feeds.NewBinanceFeed(cfg.BinanceWSURL, cfg.BinanceSymbols, cfg.ReconnectBackoff, cache)
	binanceFeed.Start()

	coinbaseFeed := feeds.NewCoinbaseFeed(cfg.CoinbaseWSURL, cfg.CoinbaseProducts, cfg.ReconnectBackoff, cache)
	coinbaseFeed.Start()

	// Matching engine
	eng := engine.New(st, cache, cfg.EngineInterval, cfg.MarketFeeRate, cfg.LimitFeeRate)

	hub := api.NewHub()
	eng.AddNotifier(hub)

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram notifications disabled")
		} else {
			eng.AddNotifier(tg)
		}
	}

	eng.Start()

	// Equity recorder
	recorder := equity.NewRecorder(st, cache, cfg.EquityInterval)
	recorder.Start()

	// HTTP API
	marketClient := market.NewClient(cfg.CoinbaseAPIURL)
	server := api.NewServer(st, cache, marketClient, hub, cfg.InitialBalance, cfg.DefaultLeverage)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("🌐 HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}

	recorder.Stop()
	eng.Stop()
	coinbaseFeed.Stop()
	binanceFeed.Stop()

	log.Info().Msg("👋 Shutdown complete")
}
