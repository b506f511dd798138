package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order side
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order type
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Order status. FILLED, CANCELED and REJECTED are terminal.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCanceled || s == OrderStatusRejected
}

// Account holds free cash and the default leverage for a user.
// Balance is mutated only by the matching engine and settings updates.
type Account struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"uniqueIndex" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8)" json:"balance"`
	Leverage  int             `gorm:"default:20" json:"leverage"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Positions []Position `json:"positions,omitempty"`
}

// Order is a user submission. It is inserted as NEW and only the engine
// moves it towards FILLED; limit_price is set iff the order is LIMIT.
type Order struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	AccountID       uint             `gorm:"index" json:"account_id"`
	Symbol          string           `gorm:"index" json:"symbol"`
	Side            Side             `json:"side"`
	OrderType       OrderType        `json:"order_type"`
	LimitPrice      *decimal.Decimal `gorm:"type:decimal(20,8)" json:"limit_price,omitempty"`
	AvgPrice        decimal.Decimal  `gorm:"type:decimal(20,8)" json:"avg_price"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(20,8)" json:"quantity"`
	FilledQuantity  decimal.Decimal  `gorm:"type:decimal(20,8)" json:"filled_quantity"`
	Leverage        int              `gorm:"default:1" json:"leverage"`
	TakeProfitPrice *decimal.Decimal `gorm:"type:decimal(20,8)" json:"take_profit_price,omitempty"`
	StopLossPrice   *decimal.Decimal `gorm:"type:decimal(20,8)" json:"stop_loss_price,omitempty"`
	Fee             decimal.Decimal  `gorm:"type:decimal(20,8)" json:"fee"`
	Status          OrderStatus      `gorm:"index;default:NEW" json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Trade is an append-only fill record, one or more per order.
type Trade struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	OrderID    uint            `gorm:"index" json:"order_id"`
	Symbol     string          `gorm:"index" json:"symbol"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,8)" json:"quantity"`
	Commission decimal.Decimal `gorm:"type:decimal(20,8)" json:"commission"`
	ExecutedAt time.Time       `gorm:"autoCreateTime" json:"executed_at"`
}

// Position is the net exposure per (account, symbol) in one-way mode.
// Quantity is signed: positive long, negative short. The row is deleted when
// quantity reaches zero, at which point a PositionHistory row is written.
type Position struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	AccountID       uint             `gorm:"index:idx_positions_account_symbol,unique" json:"account_id"`
	Symbol          string           `gorm:"index:idx_positions_account_symbol,unique" json:"symbol"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(20,8)" json:"quantity"`
	EntryPrice      decimal.Decimal  `gorm:"type:decimal(20,8)" json:"entry_price"`
	Leverage        int              `gorm:"default:1" json:"leverage"`
	Margin          decimal.Decimal  `gorm:"type:decimal(20,8)" json:"margin"`
	RealizedPnl     decimal.Decimal  `gorm:"type:decimal(20,8)" json:"realized_pnl"`
	AccumulatedFees decimal.Decimal  `gorm:"type:decimal(20,8)" json:"accumulated_fees"`
	TakeProfitPrice *decimal.Decimal `gorm:"type:decimal(20,8)" json:"take_profit_price,omitempty"`
	StopLossPrice   *decimal.Decimal `gorm:"type:decimal(20,8)" json:"stop_loss_price,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Position side labels used in history rows.
const (
	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"
)

// PositionHistory is the append-only record of a fully closed position.
type PositionHistory struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	AccountID   uint            `gorm:"index" json:"account_id"`
	Symbol      string          `gorm:"index" json:"symbol"`
	Side        string          `json:"side"` // LONG or SHORT
	Quantity    decimal.Decimal `gorm:"type:decimal(20,8)" json:"quantity"`
	EntryPrice  decimal.Decimal `gorm:"type:decimal(20,8)" json:"entry_price"`
	ExitPrice   decimal.Decimal `gorm:"type:decimal(20,8)" json:"exit_price"`
	Leverage    int             `json:"leverage"`
	RealizedPnl decimal.Decimal `gorm:"type:decimal(20,8)" json:"realized_pnl"`
	TotalFee    decimal.Decimal `gorm:"type:decimal(20,8)" json:"total_fee"`
	CreatedAt   time.Time       `json:"created_at"` // when the position was opened
	ClosedAt    time.Time       `gorm:"index" json:"closed_at"`
}

// EquityHistory is an append-only equity snapshot written by the recorder.
type EquityHistory struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID uint            `gorm:"index" json:"account_id"`
	Equity    decimal.Decimal `gorm:"type:decimal(20,8)" json:"equity"`
	Timestamp time.Time       `gorm:"autoCreateTime;index" json:"timestamp"`
}

// Drawing is a chart annotation owned by an account (UI support).
type Drawing struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index" json:"account_id"`
	Symbol    string    `gorm:"index" json:"symbol"`
	Tool      string    `json:"tool"`
	Points    string    `json:"points"` // JSON-encoded point list, opaque to the server
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
