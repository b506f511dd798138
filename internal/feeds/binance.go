// Package feeds connects to external venues over WebSocket and publishes
// mark prices into the price cache.
//
// Each feed is a supervised loop: connect, subscribe, read frames until the
// connection drops, then back off and reconnect. Malformed frames are dropped
// per message and never kill the loop.
package feeds

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"papertrade/internal/pricecache"
)

// BinanceFeed streams aggregate trades from the Binance futures venue.
type BinanceFeed struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	baseURL string
	symbols []string // lower-case stream symbols
	backoff time.Duration
	cache   *pricecache.Cache
}

// NewBinanceFeed creates a feed for the given stream symbols (e.g. btcusdt).
func NewBinanceFeed(baseURL string, symbols []string, backoff time.Duration, cache *pricecache.Cache) *BinanceFeed {
	lower := make([]string, len(symbols))
	for i, s := range symbols {
		lower[i] = strings.ToLower(s)
	}
	return &BinanceFeed{
		stopCh:  make(chan struct{}),
		baseURL: baseURL,
		symbols: lower,
		backoff: backoff,
		cache:   cache,
	}
}

// Start launches the connection loop.
func (f *BinanceFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Strs("symbols", f.symbols).Msg("📈 Binance feed started")
}

// Stop terminates the loop at the next iteration.
func (f *BinanceFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.running = false
	close(f.stopCh)
	log.Info().Msg("Binance feed stopped")
}

// streamURL builds the combined-stream URL:
// <base>/stream?streams=btcusdt@aggTrade/ethusdt@aggTrade
func (f *BinanceFeed) streamURL() string {
	streams := make([]string, len(f.symbols))
	for i, s := range f.symbols {
		streams[i] = s + "@aggTrade"
	}
	return f.baseURL + "/stream?streams=" + strings.Join(streams, "/")
}

func (f *BinanceFeed) connectionLoop() {
	url := f.streamURL()

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			log.Error().Err(err).Str("url", url).Msg("Binance connect failed, retrying...")
			f.sleep()
			continue
		}

		log.Info().Msg("🔌 Binance WebSocket connected")
		f.readLoop(conn)
		conn.Close()
		f.sleep()
	}
}

func (f *BinanceFeed) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Binance read error")
			return
		}
		f.handleMessage(message)
	}
}

// aggTradeMessage is a combined-stream frame:
// {"stream":"btcusdt@aggTrade","data":{"s":"BTCUSDT","p":"30000.10",...}}
type aggTradeMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
	} `json:"data"`
}

// handleMessage parses one frame and publishes the mark. Best effort: bad
// frames are dropped.
func (f *BinanceFeed) handleMessage(data []byte) {
	var msg aggTradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Data.Symbol == "" || msg.Data.Price == "" {
		return
	}

	price, err := decimal.NewFromString(msg.Data.Price)
	if err != nil {
		log.Error().Str("symbol", msg.Data.Symbol).Str("price", msg.Data.Price).Msg("Invalid Binance price")
		return
	}
	if !price.IsPositive() {
		log.Error().Str("symbol", msg.Data.Symbol).Str("price", msg.Data.Price).Msg("Non-positive Binance price dropped")
		return
	}

	f.cache.Put(strings.ToUpper(msg.Data.Symbol), price)
}

func (f *BinanceFeed) sleep() {
	select {
	case <-f.stopCh:
	case <-time.After(f.backoff):
	}
}
