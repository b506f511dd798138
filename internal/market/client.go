// Package market is a thin REST client for the Coinbase market data API,
// used to back the klines proxy endpoint.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Candle is one OHLCV bar as returned by the upstream API. Numeric fields
// stay strings so no precision is lost passing them through to the chart.
type Candle struct {
	Start  string `json:"start"`
	Low    string `json:"low"`
	High   string `json:"high"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

type candlesResponse struct {
	Candles []Candle `json:"candles"`
}

// Client wraps the upstream HTTP API with retries and a request timeout.
type Client struct {
	http *resty.Client
}

// NewClient builds a client against baseURL
// (e.g. https://api.coinbase.com/api/v3/brokerage).
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
}

// Candles fetches historical bars for a product. start and end are unix
// timestamps as strings and may be empty to take the upstream default window.
func (c *Client) Candles(ctx context.Context, productID, granularity, start, end string) ([]Candle, error) {
	params := map[string]string{"granularity": granularity}
	if start != "" {
		params["start"] = start
	}
	if end != "" {
		params["end"] = end
	}

	var out candlesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("/market/products/" + productID + "/candles")
	if err != nil {
		return nil, fmt.Errorf("fetching candles for %s: %w", productID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("candles request for %s failed: %s", productID, resp.Status())
	}
	return out.Candles, nil
}
