package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"papertrade/internal/store"
)

// executeOrder fills the order's full remaining quantity at price, in one
// committed transaction: trade row, order update, then account and position
// accounting. There is no partial liquidity in the simulation; an acceptable
// order goes straight to FILLED.
func (e *Engine) executeOrder(orderID uint, price decimal.Decimal) error {
	var filled *store.Order
	var closed *store.PositionHistory

	err := e.store.Transaction(func(tx *gorm.DB) error {
		var order store.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return fmt.Errorf("load order %d: %w", orderID, err)
		}
		// The order may have been canceled or filled since the scan.
		if order.Status.Terminal() {
			return nil
		}

		fill := order.Quantity.Sub(order.FilledQuantity)
		if !fill.IsPositive() {
			return nil
		}

		feeRate := e.limitFeeRate
		if order.OrderType == store.OrderTypeMarket {
			feeRate = e.marketFeeRate
		}
		fee := price.Mul(fill).Mul(feeRate)

		trade := store.Trade{
			OrderID:    order.ID,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Price:      price,
			Quantity:   fill,
			Commission: fee,
		}
		if err := tx.Create(&trade).Error; err != nil {
			return fmt.Errorf("record trade: %w", err)
		}

		// Weighted average execution price across fills.
		prevValue := order.AvgPrice.Mul(order.FilledQuantity)
		newFilled := order.FilledQuantity.Add(fill)
		order.AvgPrice = prevValue.Add(price.Mul(fill)).Div(newFilled)
		order.FilledQuantity = newFilled
		order.Fee = order.Fee.Add(fee)
		if order.FilledQuantity.GreaterThanOrEqual(order.Quantity) {
			order.Status = store.OrderStatusFilled
		} else {
			order.Status = store.OrderStatusPartiallyFilled
		}
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		history, err := e.applyFill(tx, &order, price, fill, fee)
		if err != nil {
			return err
		}

		filled = &order
		closed = history
		return nil
	})
	if err != nil {
		return err
	}

	if filled != nil {
		log.Info().
			Uint("order_id", filled.ID).
			Str("side", string(filled.Side)).
			Str("symbol", filled.Symbol).
			Str("qty", filled.FilledQuantity.String()).
			Str("price", price.String()).
			Msg("💱 Trade executed")

		e.notifyOrderFilled(*filled, price)
		if closed != nil {
			e.notifyPositionClosed(*closed)
		}
		e.notifyAccountUpdate(filled.AccountID)
	}
	return nil
}

// applyFill mutates the account balance and the (account, symbol) position
// for one fill, one-way mode. Returns the history row when the fill fully
// closed an existing position.
//
// The account row is read FOR UPDATE: the HTTP submission path reads accounts
// concurrently and fills for the same account must serialize.
func (e *Engine) applyFill(tx *gorm.DB, order *store.Order, price, qty, fee decimal.Decimal) (*store.PositionHistory, error) {
	account, err := store.LockAccount(tx, order.AccountID)
	if err != nil {
		return nil, fmt.Errorf("lock account %d: %w", order.AccountID, err)
	}

	// Fee comes out of free cash regardless of what the fill does.
	balance := account.Balance.Sub(fee)

	position, err := store.PositionForUpdate(tx, order.AccountID, order.Symbol)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}

	leverage := order.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	lev := decimal.NewFromInt(int64(leverage))

	var history *store.PositionHistory

	switch {
	case position == nil:
		// Open a fresh position: margin = notional / leverage.
		margin := price.Mul(qty).Div(lev)
		balance = balance.Sub(margin)

		signedQty := qty
		if order.Side == store.SideSell {
			signedQty = qty.Neg()
		}
		pos := store.Position{
			AccountID:       order.AccountID,
			Symbol:          order.Symbol,
			Quantity:        signedQty,
			EntryPrice:      price,
			Leverage:        leverage,
			Margin:          margin,
			RealizedPnl:     decimal.Zero,
			AccumulatedFees: fee,
			TakeProfitPrice: order.TakeProfitPrice,
			StopLossPrice:   order.StopLossPrice,
		}
		if err := tx.Create(&pos).Error; err != nil {
			return nil, fmt.Errorf("create position: %w", err)
		}

	case sameDirection(position.Quantity, order.Side):
		// Adding: grow the position at a new weighted-average entry.
		position.AccumulatedFees = position.AccumulatedFees.Add(fee)
		applyTPSL(position, order)

		margin := price.Mul(qty).Div(lev)
		balance = balance.Sub(margin)

		absQty := position.Quantity.Abs()
		position.EntryPrice = absQty.Mul(position.EntryPrice).
			Add(price.Mul(qty)).
			Div(absQty.Add(qty))
		if position.Quantity.Sign() > 0 {
			position.Quantity = position.Quantity.Add(qty)
		} else {
			position.Quantity = position.Quantity.Sub(qty)
		}
		position.Margin = position.Margin.Add(margin)
		// The most recent add's leverage governs the whole position.
		position.Leverage = leverage

		if err := tx.Save(position).Error; err != nil {
			return nil, fmt.Errorf("update position: %w", err)
		}

	default:
		// Reducing, closing or flipping: close first, then flip the
		// remainder, all at the same fill price.
		position.AccumulatedFees = position.AccumulatedFees.Add(fee)
		applyTPSL(position, order)

		wasLong := position.Quantity.Sign() > 0
		absQty := position.Quantity.Abs()
		closeQty := decimal.Min(qty, absQty)
		remainder := qty.Sub(closeQty)

		var pnl decimal.Decimal
		if wasLong {
			pnl = price.Sub(position.EntryPrice).Mul(closeQty)
		} else {
			pnl = position.EntryPrice.Sub(price).Mul(closeQty)
		}

		// Margin release is strictly proportional to the closed share.
		released := closeQty.Div(absQty).Mul(position.Margin)
		balance = balance.Add(released).Add(pnl)

		position.Margin = position.Margin.Sub(released)
		if wasLong {
			position.Quantity = position.Quantity.Sub(closeQty)
		} else {
			position.Quantity = position.Quantity.Add(closeQty)
		}
		position.RealizedPnl = position.RealizedPnl.Add(pnl)

		if position.Quantity.IsZero() {
			side := store.PositionSideLong
			if !wasLong {
				side = store.PositionSideShort
			}
			h := store.PositionHistory{
				AccountID:   position.AccountID,
				Symbol:      position.Symbol,
				Side:        side,
				Quantity:    closeQty,
				EntryPrice:  position.EntryPrice,
				ExitPrice:   price,
				Leverage:    position.Leverage,
				RealizedPnl: position.RealizedPnl,
				TotalFee:    position.AccumulatedFees,
				CreatedAt:   position.CreatedAt,
				ClosedAt:    time.Now(),
			}
			if err := tx.Create(&h).Error; err != nil {
				return nil, fmt.Errorf("record position history: %w", err)
			}
			if err := tx.Delete(position).Error; err != nil {
				return nil, fmt.Errorf("delete closed position: %w", err)
			}
			history = &h
		} else {
			if err := tx.Save(position).Error; err != nil {
				return nil, fmt.Errorf("update position: %w", err)
			}
		}

		if remainder.IsPositive() {
			// Flip: open the incoming direction with the remainder. The fee
			// was attributed to the closed side, the new position starts clean.
			margin := price.Mul(remainder).Div(lev)
			balance = balance.Sub(margin)

			signedQty := remainder
			if order.Side == store.SideSell {
				signedQty = remainder.Neg()
			}
			flip := store.Position{
				AccountID:       order.AccountID,
				Symbol:          order.Symbol,
				Quantity:        signedQty,
				EntryPrice:      price,
				Leverage:        leverage,
				Margin:          margin,
				RealizedPnl:     decimal.Zero,
				AccumulatedFees: decimal.Zero,
				TakeProfitPrice: order.TakeProfitPrice,
				StopLossPrice:   order.StopLossPrice,
			}
			if err := tx.Create(&flip).Error; err != nil {
				return nil, fmt.Errorf("create flipped position: %w", err)
			}
		}
	}

	// There is no pre-trade margin check; an under-margined order drives the
	// balance negative. Surfaced as an invariant error, not a rollback.
	if balance.IsNegative() {
		log.Error().
			Uint("account_id", account.ID).
			Str("balance", balance.String()).
			Uint("order_id", order.ID).
			Msg("Account balance went negative")
	}

	account.Balance = balance
	if err := tx.Save(account).Error; err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return history, nil
}

// sameDirection reports whether the fill adds to the existing position.
func sameDirection(posQty decimal.Decimal, side store.Side) bool {
	if side == store.SideBuy {
		return posQty.Sign() > 0
	}
	return posQty.Sign() < 0
}

// applyTPSL overwrites position TP/SL with values the order supplies.
// Nil order values leave the position untouched.
func applyTPSL(position *store.Position, order *store.Order) {
	if order.TakeProfitPrice != nil {
		position.TakeProfitPrice = order.TakeProfitPrice
	}
	if order.StopLossPrice != nil {
		position.StopLossPrice = order.StopLossPrice
	}
}
