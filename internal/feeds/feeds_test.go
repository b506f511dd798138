package feeds

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/pricecache"
)

func newBinance(cache *pricecache.Cache) *BinanceFeed {
	return NewBinanceFeed("wss://fstream.binance.com", []string{"BTCUSDT", "ethusdt"}, time.Second, cache)
}

func TestBinanceStreamURL(t *testing.T) {
	f := newBinance(pricecache.New())
	assert.Equal(t,
		"wss://fstream.binance.com/stream?streams=btcusdt@aggTrade/ethusdt@aggTrade",
		f.streamURL())
}

func TestBinanceHandleMessage(t *testing.T) {
	cache := pricecache.New()
	f := newBinance(cache)

	f.handleMessage([]byte(`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","s":"BTCUSDT","p":"30123.45","q":"0.5"}}`))

	p, ok := cache.Get("BTCUSDT")
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.RequireFromString("30123.45")))
}

func TestBinanceHandleMessageUppercasesSymbol(t *testing.T) {
	cache := pricecache.New()
	f := newBinance(cache)

	f.handleMessage([]byte(`{"stream":"btcusdt@aggTrade","data":{"s":"btcusdt","p":"100"}}`))

	_, ok := cache.Get("BTCUSDT")
	assert.True(t, ok)
}

func TestBinanceHandleMessageMalformed(t *testing.T) {
	cache := pricecache.New()
	f := newBinance(cache)

	// None of these should publish or panic
	f.handleMessage([]byte(`not json`))
	f.handleMessage([]byte(`{}`))
	f.handleMessage([]byte(`{"data":{"s":"BTCUSDT"}}`))
	f.handleMessage([]byte(`{"data":{"s":"BTCUSDT","p":"abc"}}`))
	f.handleMessage([]byte(`{"data":{"s":"BTCUSDT","p":"0"}}`))
	f.handleMessage([]byte(`{"data":{"s":"BTCUSDT","p":"-1"}}`))

	assert.Empty(t, cache.Snapshot())
}

func TestCoinbaseHandleMessage(t *testing.T) {
	cache := pricecache.New()
	f := NewCoinbaseFeed("wss://advanced-trade-ws.coinbase.com", []string{"BTC-USD"}, time.Second, cache)

	f.handleMessage([]byte(`{
		"channel": "ticker",
		"events": [
			{"tickers": [
				{"product_id": "BTC-USD", "price": "30500.25"},
				{"product_id": "ETH-USD", "price": "2001.5"}
			]}
		]
	}`))

	p, ok := cache.Get("BTC-USD")
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.RequireFromString("30500.25")))

	p, ok = cache.Get("ETH-USD")
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.RequireFromString("2001.5")))
}

func TestCoinbaseHandleMessageMalformed(t *testing.T) {
	cache := pricecache.New()
	f := NewCoinbaseFeed("wss://advanced-trade-ws.coinbase.com", []string{"BTC-USD"}, time.Second, cache)

	f.handleMessage([]byte(`garbage`))
	f.handleMessage([]byte(`{"channel":"subscriptions"}`))
	f.handleMessage([]byte(`{"events":[{"tickers":[{"product_id":"BTC-USD","price":"zero"}]}]}`))
	f.handleMessage([]byte(`{"events":[{"tickers":[{"product_id":"","price":"100"}]}]}`))

	assert.Empty(t, cache.Snapshot())
}

func TestFeedStopIsIdempotent(t *testing.T) {
	f := newBinance(pricecache.New())
	// Never started: Stop should be a no-op
	f.Stop()
	f.Stop()
}
