package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"papertrade/internal/store"
)

type createOrderRequest struct {
	AccountID       uint             `json:"account_id"`
	Symbol          string           `json:"symbol"`
	Side            store.Side       `json:"side"`
	OrderType       store.OrderType  `json:"order_type"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Price           *decimal.Decimal `json:"price"`
	Leverage        int              `json:"leverage"`
	TakeProfitPrice *decimal.Decimal `json:"take_profit_price"`
	StopLossPrice   *decimal.Decimal `json:"stop_loss_price"`
}

// createOrder validates and inserts a NEW order. It never executes inline:
// the engine picks the order up on its next tick.
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Side != store.SideBuy && req.Side != store.SideSell {
		abortError(c, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}
	if req.OrderType != store.OrderTypeMarket && req.OrderType != store.OrderTypeLimit {
		abortError(c, http.StatusBadRequest, "order_type must be MARKET or LIMIT")
		return
	}
	if !req.Quantity.IsPositive() {
		abortError(c, http.StatusBadRequest, "quantity must be positive")
		return
	}

	var limitPrice *decimal.Decimal
	if req.OrderType == store.OrderTypeLimit {
		if req.Price == nil || !req.Price.IsPositive() {
			abortError(c, http.StatusBadRequest, "limit orders require a positive price")
			return
		}
		limitPrice = req.Price
	}

	account, err := s.store.GetAccount(req.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortError(c, http.StatusNotFound, "account not found")
			return
		}
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	leverage := req.Leverage
	if leverage <= 0 {
		leverage = account.Leverage
	}

	order := store.Order{
		AccountID:       account.ID,
		Symbol:          strings.ToUpper(req.Symbol),
		Side:            req.Side,
		OrderType:       req.OrderType,
		LimitPrice:      limitPrice,
		Quantity:        req.Quantity,
		Leverage:        leverage,
		TakeProfitPrice: req.TakeProfitPrice,
		StopLossPrice:   req.StopLossPrice,
		Status:          store.OrderStatusNew,
	}
	if err := s.store.CreateOrder(&order); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.AccountUpdate(account.ID)
	c.JSON(http.StatusCreated, order)
}

func (s *Server) listOrders(c *gin.Context) {
	accountID, err := strconv.ParseUint(c.Query("account_id"), 10, 64)
	if err != nil {
		abortError(c, http.StatusBadRequest, "account_id is required")
		return
	}

	orders, err := s.store.ListOrders(uint(accountID))
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, orders)
}

// cancelOrder cancels an order that the engine has not finished with.
func (s *Server) cancelOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := s.store.GetOrder(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortError(c, http.StatusNotFound, "order not found")
			return
		}
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if order.Status.Terminal() {
		abortError(c, http.StatusConflict, "order is already "+strings.ToLower(string(order.Status)))
		return
	}

	order.Status = store.OrderStatusCanceled
	if err := s.store.SaveOrder(order); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.AccountUpdate(order.AccountID)
	c.JSON(http.StatusOK, order)
}

type amendOrderRequest struct {
	Price           *decimal.Decimal `json:"price"`
	Quantity        *decimal.Decimal `json:"quantity"`
	TakeProfitPrice *decimal.Decimal `json:"take_profit_price"`
	StopLossPrice   *decimal.Decimal `json:"stop_loss_price"`
}

// amendOrder edits a resting order. TP/SL may change while NEW or
// PARTIALLY_FILLED; price and quantity only while NEW.
func (s *Server) amendOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req amendOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := s.store.GetOrder(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortError(c, http.StatusNotFound, "order not found")
			return
		}
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if order.Status.Terminal() {
		abortError(c, http.StatusConflict, "order is already "+strings.ToLower(string(order.Status)))
		return
	}

	if req.Price != nil || req.Quantity != nil {
		if order.Status != store.OrderStatusNew {
			abortError(c, http.StatusConflict, "price and quantity are editable only while NEW")
			return
		}
		if req.Price != nil {
			if order.OrderType != store.OrderTypeLimit {
				abortError(c, http.StatusBadRequest, "price is editable only on limit orders")
				return
			}
			if !req.Price.IsPositive() {
				abortError(c, http.StatusBadRequest, "price must be positive")
				return
			}
			order.LimitPrice = req.Price
		}
		if req.Quantity != nil {
			if !req.Quantity.IsPositive() {
				abortError(c, http.StatusBadRequest, "quantity must be positive")
				return
			}
			order.Quantity = *req.Quantity
		}
	}

	if req.TakeProfitPrice != nil {
		order.TakeProfitPrice = req.TakeProfitPrice
	}
	if req.StopLossPrice != nil {
		order.StopLossPrice = req.StopLossPrice
	}

	if err := s.store.SaveOrder(order); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.AccountUpdate(order.AccountID)
	c.JSON(http.StatusOK, order)
}
