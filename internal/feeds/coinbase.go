package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"papertrade/internal/pricecache"
)

// CoinbaseFeed streams ticker events from the Coinbase spot venue.
// Product ids use the hyphen form (BTC-USD) and are stored as-is.
type CoinbaseFeed struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	url      string
	products []string
	backoff  time.Duration
	cache    *pricecache.Cache
}

// NewCoinbaseFeed creates a feed for the given product ids.
func NewCoinbaseFeed(url string, products []string, backoff time.Duration, cache *pricecache.Cache) *CoinbaseFeed {
	return &CoinbaseFeed{
		stopCh:   make(chan struct{}),
		url:      url,
		products: products,
		backoff:  backoff,
		cache:    cache,
	}
}

// Start launches the connection loop.
func (f *CoinbaseFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Strs("products", f.products).Msg("📈 Coinbase feed started")
}

// Stop terminates the loop at the next iteration.
func (f *CoinbaseFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.running = false
	close(f.stopCh)
	log.Info().Msg("Coinbase feed stopped")
}

func (f *CoinbaseFeed) connectionLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
		if err != nil {
			log.Error().Err(err).Str("url", f.url).Msg("Coinbase connect failed, retrying...")
			f.sleep()
			continue
		}

		if err := f.subscribe(conn); err != nil {
			log.Error().Err(err).Msg("Coinbase subscribe failed")
			conn.Close()
			f.sleep()
			continue
		}

		log.Info().Msg("🔌 Coinbase WebSocket connected")
		f.readLoop(conn)
		conn.Close()
		f.sleep()
	}
}

func (f *CoinbaseFeed) subscribe(conn *websocket.Conn) error {
	msg := map[string]interface{}{
		"type":        "subscribe",
		"product_ids": f.products,
		"channel":     "ticker",
	}
	return conn.WriteJSON(msg)
}

func (f *CoinbaseFeed) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Coinbase read error")
			return
		}
		f.handleMessage(message)
	}
}

// tickerMessage is an advanced-trade ticker frame:
// {"channel":"ticker","events":[{"tickers":[{"product_id":"BTC-USD","price":"30000.10"}]}]}
type tickerMessage struct {
	Channel string `json:"channel"`
	Events  []struct {
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
		} `json:"tickers"`
	} `json:"events"`
}

// handleMessage parses one frame and publishes all contained ticks.
func (f *CoinbaseFeed) handleMessage(data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	for _, ev := range msg.Events {
		for _, tick := range ev.Tickers {
			if tick.ProductID == "" || tick.Price == "" {
				continue
			}
			price, err := decimal.NewFromString(tick.Price)
			if err != nil || !price.IsPositive() {
				continue
			}
			f.cache.Put(tick.ProductID, price)
		}
	}
}

func (f *CoinbaseFeed) sleep() {
	select {
	case <-f.stopCh:
	case <-time.After(f.backoff):
	}
}
