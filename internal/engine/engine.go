// Package engine matches resting and new orders against venue marks and
// applies fills to accounts and positions.
//
// A single loop runs at ~1 Hz. Each tick scans open orders first, then scans
// positions for take-profit/stop-loss triggers; the TP/SL pass always sees
// the state left behind by the order pass. Every executed order commits in
// its own transaction, so one bad order never aborts the tick for the rest.
package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"papertrade/internal/pricecache"
	"papertrade/internal/store"
)

// Notifier receives engine events after a fill commits. Implementations must
// not block; the engine calls them from the matching loop.
type Notifier interface {
	AccountUpdate(accountID uint)
	OrderFilled(order store.Order, price decimal.Decimal)
	PositionClosed(history store.PositionHistory)
}

// Engine is the matching and position-accounting loop.
type Engine struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	store    *store.Store
	cache    *pricecache.Cache
	interval time.Duration

	marketFeeRate decimal.Decimal
	limitFeeRate  decimal.Decimal

	notifiers []Notifier
}

// New creates an engine. Fee rates are fractions of fill value
// (e.g. 0.00045 for market orders).
func New(st *store.Store, cache *pricecache.Cache, interval time.Duration, marketFeeRate, limitFeeRate decimal.Decimal) *Engine {
	return &Engine{
		stopCh:        make(chan struct{}),
		store:         st,
		cache:         cache,
		interval:      interval,
		marketFeeRate: marketFeeRate,
		limitFeeRate:  limitFeeRate,
	}
}

// AddNotifier registers a notifier. Must be called before Start.
func (e *Engine) AddNotifier(n Notifier) {
	e.notifiers = append(e.notifiers, n)
}

// Start launches the matching loop.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	go e.loop()
	log.Info().Dur("interval", e.interval).Msg("⚙️ Matching engine started")
}

// Stop terminates the loop at the next iteration.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.running = false
	close(e.stopCh)
	log.Info().Msg("Matching engine stopped")
}

func (e *Engine) loop() {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one engine pass: open orders, then TP/SL triggers.
func (e *Engine) Tick() {
	e.processOpenOrders()
	e.checkPositionsTPSL()
}

// processOpenOrders scans NEW and PARTIALLY_FILLED orders and executes the
// ones the current mark admits. A missing mark is a transient skip.
func (e *Engine) processOpenOrders() {
	orders, err := e.store.OpenOrders()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load open orders")
		return
	}

	for _, order := range orders {
		mark, ok := e.cache.Get(order.Symbol)
		if !ok || !mark.IsPositive() {
			continue
		}

		if !executable(order, mark) {
			continue
		}

		if err := e.executeOrder(order.ID, mark); err != nil {
			log.Error().Err(err).Uint("order_id", order.ID).Msg("Trade execution failed")
		}
	}
}

// executable decides whether an order fills at the given mark.
// MARKET orders always fill; LIMIT BUY fills at mark <= limit, LIMIT SELL at
// mark >= limit. The fill itself happens at the mark, not the limit price.
func executable(order store.Order, mark decimal.Decimal) bool {
	switch order.OrderType {
	case store.OrderTypeMarket:
		return true
	case store.OrderTypeLimit:
		if order.LimitPrice == nil {
			return false
		}
		if order.Side == store.SideBuy {
			return mark.LessThanOrEqual(*order.LimitPrice)
		}
		return mark.GreaterThanOrEqual(*order.LimitPrice)
	}
	return false
}

// checkPositionsTPSL scans positions carrying a TP or SL and closes the
// triggered ones with a synthesized market order. TP is evaluated first, so
// a mark satisfying both sides in one tick counts as a take-profit.
func (e *Engine) checkPositionsTPSL() {
	positions, err := e.store.PositionsWithTPSL()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load positions for TP/SL scan")
		return
	}

	for _, pos := range positions {
		mark, ok := e.cache.Get(pos.Symbol)
		if !ok || !mark.IsPositive() {
			continue
		}

		reason := triggerReason(pos, mark)
		if reason == "" {
			continue
		}

		log.Info().
			Str("reason", reason).
			Uint("position_id", pos.ID).
			Str("symbol", pos.Symbol).
			Str("mark", mark.String()).
			Msg("🎯 Position trigger")

		side := store.SideSell
		if pos.Quantity.Sign() < 0 {
			side = store.SideBuy
		}
		closeOrder := store.Order{
			AccountID: pos.AccountID,
			Symbol:    pos.Symbol,
			Side:      side,
			OrderType: store.OrderTypeMarket,
			Quantity:  pos.Quantity.Abs(),
			Leverage:  pos.Leverage,
			Status:    store.OrderStatusNew,
		}
		if err := e.store.CreateOrder(&closeOrder); err != nil {
			log.Error().Err(err).Uint("position_id", pos.ID).Msg("Failed to create close order")
			continue
		}

		if err := e.executeOrder(closeOrder.ID, mark); err != nil {
			log.Error().Err(err).Uint("order_id", closeOrder.ID).Msg("TP/SL close failed")
		}
	}
}

// triggerReason returns "TP", "SL" or "" for a position at the given mark.
func triggerReason(pos store.Position, mark decimal.Decimal) string {
	switch {
	case pos.Quantity.Sign() > 0: // long
		if pos.TakeProfitPrice != nil && mark.GreaterThanOrEqual(*pos.TakeProfitPrice) {
			return "TP"
		}
		if pos.StopLossPrice != nil && mark.LessThanOrEqual(*pos.StopLossPrice) {
			return "SL"
		}
	case pos.Quantity.Sign() < 0: // short
		if pos.TakeProfitPrice != nil && mark.LessThanOrEqual(*pos.TakeProfitPrice) {
			return "TP"
		}
		if pos.StopLossPrice != nil && mark.GreaterThanOrEqual(*pos.StopLossPrice) {
			return "SL"
		}
	}
	return ""
}

// Notifier fan-out. Failures in one notifier are invisible to the others.

func (e *Engine) notifyAccountUpdate(accountID uint) {
	for _, n := range e.notifiers {
		n.AccountUpdate(accountID)
	}
}

func (e *Engine) notifyOrderFilled(order store.Order, price decimal.Decimal) {
	for _, n := range e.notifiers {
		n.OrderFilled(order, price)
	}
}

func (e *Engine) notifyPositionClosed(history store.PositionHistory) {
	for _, n := range e.notifiers {
		n.PositionClosed(history)
	}
}
