package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/pricecache"
	"papertrade/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type testAPI struct {
	store  *store.Store
	cache  *pricecache.Cache
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	cache := pricecache.New()
	server := NewServer(st, cache, nil, NewHub(), d("10000"), 20)
	return &testAPI{store: st, cache: cache, router: server.Router()}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (a *testAPI) createAccount(t *testing.T, userID string) accountResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/accounts/", gin.H{"user_id": userID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[accountResponse](t, w)
}

func TestCreateAccountIdempotent(t *testing.T) {
	a := newTestAPI(t)

	first := a.createAccount(t, "alice")
	assert.True(t, first.Balance.Equal(d("10000")))
	assert.Equal(t, 20, first.Leverage)

	second := a.createAccount(t, "alice")
	assert.Equal(t, first.ID, second.ID)

	w := a.do(t, http.MethodPost, "/accounts/", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAccountNotFound(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodGet, "/accounts/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/accounts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{"bad side", gin.H{"account_id": account.ID, "symbol": "BTCUSDT", "side": "HOLD", "order_type": "MARKET", "quantity": "1"}, http.StatusBadRequest},
		{"bad type", gin.H{"account_id": account.ID, "symbol": "BTCUSDT", "side": "BUY", "order_type": "STOP", "quantity": "1"}, http.StatusBadRequest},
		{"zero quantity", gin.H{"account_id": account.ID, "symbol": "BTCUSDT", "side": "BUY", "order_type": "MARKET", "quantity": "0"}, http.StatusBadRequest},
		{"limit without price", gin.H{"account_id": account.ID, "symbol": "BTCUSDT", "side": "BUY", "order_type": "LIMIT", "quantity": "1"}, http.StatusBadRequest},
		{"unknown account", gin.H{"account_id": 999, "symbol": "BTCUSDT", "side": "BUY", "order_type": "MARKET", "quantity": "1"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := a.do(t, http.MethodPost, "/orders", tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

// Submission inserts NEW and never executes; the fill belongs to the engine.
func TestCreateOrderRestsAsNew(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")
	a.cache.Put("BTCUSDT", d("30000"))

	w := a.do(t, http.MethodPost, "/orders", gin.H{
		"account_id": account.ID, "symbol": "btcusdt", "side": "BUY",
		"order_type": "MARKET", "quantity": "1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	order := decode[store.Order](t, w)
	assert.Equal(t, store.OrderStatusNew, order.Status)
	assert.Equal(t, "BTCUSDT", order.Symbol)
	assert.Equal(t, 20, order.Leverage, "defaults to the account leverage")
	assert.True(t, order.FilledQuantity.IsZero())

	got, err := a.store.GetAccount(account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(d("10000")), "no balance movement on submission")
}

func TestCancelOrder(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")

	w := a.do(t, http.MethodPost, "/orders", gin.H{
		"account_id": account.ID, "symbol": "BTCUSDT", "side": "BUY",
		"order_type": "LIMIT", "price": "29000", "quantity": "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[store.Order](t, w)

	w = a.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.OrderStatusCanceled, decode[store.Order](t, w).Status)

	// Terminal orders cannot be canceled again.
	w = a.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", order.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodDelete, "/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAmendOrder(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")

	w := a.do(t, http.MethodPost, "/orders", gin.H{
		"account_id": account.ID, "symbol": "BTCUSDT", "side": "BUY",
		"order_type": "LIMIT", "price": "29000", "quantity": "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[store.Order](t, w)

	w = a.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d", order.ID), gin.H{
		"price": "29500", "quantity": "2", "take_profit_price": "31000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	amended := decode[store.Order](t, w)
	require.NotNil(t, amended.LimitPrice)
	assert.True(t, amended.LimitPrice.Equal(d("29500")))
	assert.True(t, amended.Quantity.Equal(d("2")))
	require.NotNil(t, amended.TakeProfitPrice)
	assert.True(t, amended.TakeProfitPrice.Equal(d("31000")))

	// Setting TP/SL to their current values is a no-op.
	w = a.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d", order.ID), gin.H{
		"take_profit_price": "31000",
	})
	require.Equal(t, http.StatusOK, w.Code)
	again := decode[store.Order](t, w)
	assert.True(t, again.TakeProfitPrice.Equal(d("31000")))
	assert.Equal(t, store.OrderStatusNew, again.Status)
}

func TestAmendOrderStateRules(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")

	w := a.do(t, http.MethodPost, "/orders", gin.H{
		"account_id": account.ID, "symbol": "BTCUSDT", "side": "BUY",
		"order_type": "MARKET", "quantity": "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[store.Order](t, w)

	// Price is only editable on limit orders.
	w = a.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d", order.ID), gin.H{"price": "29000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Price and quantity lock once the order leaves NEW.
	partial, err := a.store.GetOrder(order.ID)
	require.NoError(t, err)
	partial.Status = store.OrderStatusPartiallyFilled
	require.NoError(t, a.store.SaveOrder(partial))

	w = a.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d", order.ID), gin.H{"quantity": "2"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// TP/SL are still editable while PARTIALLY_FILLED.
	w = a.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d", order.ID), gin.H{"stop_loss_price": "28000"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Nothing is editable once terminal.
	partial.Status = store.OrderStatusFilled
	require.NoError(t, a.store.SaveOrder(partial))
	w = a.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d", order.ID), gin.H{"stop_loss_price": "27000"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdatePositionTPSL(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")

	position := store.Position{
		AccountID: account.ID, Symbol: "BTCUSDT",
		Quantity: d("1"), EntryPrice: d("30000"), Margin: d("3000"),
	}
	require.NoError(t, a.store.SavePosition(&position))

	w := a.do(t, http.MethodPatch, fmt.Sprintf("/positions/%d", position.ID), gin.H{
		"take_profit_price": "32000", "stop_loss_price": "29000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := a.store.GetPosition(position.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TakeProfitPrice)
	assert.True(t, got.TakeProfitPrice.Equal(d("32000")))
	require.NotNil(t, got.StopLossPrice)
	assert.True(t, got.StopLossPrice.Equal(d("29000")))

	w = a.do(t, http.MethodPatch, "/positions/999", gin.H{"take_profit_price": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarketPrices(t *testing.T) {
	a := newTestAPI(t)
	a.cache.Put("BTCUSDT", d("30000"))

	w := a.do(t, http.MethodGet, "/market/prices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	prices := decode[map[string]decimal.Decimal](t, w)
	require.Contains(t, prices, "BTCUSDT")
	assert.True(t, prices["BTCUSDT"].Equal(d("30000")))

	// Klines proxy is disabled when no upstream client is configured.
	w = a.do(t, http.MethodGet, "/market/klines?symbol=BTC-USD", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDrawings(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")

	w := a.do(t, http.MethodPost, "/drawings", gin.H{
		"account_id": account.ID, "symbol": "btcusdt",
		"tool": "trendline", "points": `[[1,30000],[2,31000]]`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	drawing := decode[store.Drawing](t, w)
	assert.Equal(t, "BTCUSDT", drawing.Symbol)

	w = a.do(t, http.MethodGet, fmt.Sprintf("/drawings?account_id=%d&symbol=BTCUSDT", account.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]store.Drawing](t, w), 1)

	w = a.do(t, http.MethodDelete, fmt.Sprintf("/drawings/%d", drawing.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodDelete, fmt.Sprintf("/drawings/%d", drawing.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDailyPnl(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")

	rows := []store.PositionHistory{
		{AccountID: account.ID, Symbol: "BTCUSDT", Side: store.PositionSideLong, Quantity: d("1"),
			EntryPrice: d("30000"), ExitPrice: d("31000"), RealizedPnl: d("1000"), TotalFee: d("13.5"),
			ClosedAt: mustTime(t, "2026-03-05T10:00:00Z")},
		{AccountID: account.ID, Symbol: "ETHUSDT", Side: store.PositionSideShort, Quantity: d("2"),
			EntryPrice: d("2000"), ExitPrice: d("2100"), RealizedPnl: d("-200"), TotalFee: d("1.8"),
			ClosedAt: mustTime(t, "2026-03-05T18:00:00Z")},
		{AccountID: account.ID, Symbol: "SOLUSDT", Side: store.PositionSideLong, Quantity: d("10"),
			EntryPrice: d("100"), ExitPrice: d("110"), RealizedPnl: d("100"), TotalFee: d("0"),
			ClosedAt: mustTime(t, "2026-03-07T09:00:00Z")},
	}
	for i := range rows {
		require.NoError(t, a.store.DB().Create(&rows[i]).Error)
	}

	w := a.do(t, http.MethodGet, fmt.Sprintf("/accounts/%d/daily-pnl?year=2026&month=3", account.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	days := decode[[]dailyPnlEntry](t, w)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-05", days[0].Date)
	assert.True(t, days[0].Pnl.Equal(d("800")))
	assert.Equal(t, 2, days[0].Trades)
	assert.Equal(t, "2026-03-07", days[1].Date)
	assert.True(t, days[1].Pnl.Equal(d("100")))

	w = a.do(t, http.MethodGet, fmt.Sprintf("/accounts/%d/daily-pnl?year=2026&month=13", account.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatistics(t *testing.T) {
	a := newTestAPI(t)
	account := a.createAccount(t, "alice")

	rows := []store.PositionHistory{
		{AccountID: account.ID, Symbol: "BTCUSDT", Side: store.PositionSideLong,
			RealizedPnl: d("1000"), TotalFee: d("10"), ClosedAt: mustTime(t, "2026-03-05T10:00:00Z")},
		{AccountID: account.ID, Symbol: "ETHUSDT", Side: store.PositionSideShort,
			RealizedPnl: d("-200"), TotalFee: d("2"), ClosedAt: mustTime(t, "2026-03-06T10:00:00Z")},
		{AccountID: account.ID, Symbol: "SOLUSDT", Side: store.PositionSideLong,
			RealizedPnl: d("300"), TotalFee: d("3"), ClosedAt: mustTime(t, "2026-03-07T10:00:00Z")},
	}
	for i := range rows {
		require.NoError(t, a.store.DB().Create(&rows[i]).Error)
	}

	w := a.do(t, http.MethodGet, fmt.Sprintf("/accounts/%d/statistics", account.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	stats := decode[statisticsResponse](t, w)
	assert.Equal(t, 3, stats.TotalClosed)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.True(t, stats.TotalPnl.Equal(d("1100")))
	assert.True(t, stats.TotalFees.Equal(d("15")))
	assert.True(t, stats.BestTrade.Equal(d("1000")))
	assert.True(t, stats.WorstTrade.Equal(d("-200")))
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return out
}
