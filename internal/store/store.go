// Package store is the durable entity layer: accounts, orders, trades,
// positions and their history, persisted through GORM on PostgreSQL or SQLite.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

type Store struct {
	db *gorm.DB
}

// Open connects to the database behind dsn and migrates the schema.
// A postgres:// (or postgresql://) dsn selects PostgreSQL, anything else is
// treated as a SQLite file path.
func Open(dsn string) (*Store, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(
		&Account{}, &Order{}, &Trade{},
		&Position{}, &PositionHistory{}, &EquityHistory{}, &Drawing{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Transaction runs fn inside a database transaction.
func (s *Store) Transaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

// DB exposes the underlying handle for query helpers on a transaction.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Account operations

// CreateAccount inserts an account, or returns the existing one for the
// user id (idempotent by user_id).
func (s *Store) CreateAccount(userID string, balance decimal.Decimal, leverage int) (*Account, error) {
	var existing Account
	err := s.db.Preload("Positions").Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account := Account{UserID: userID, Balance: balance, Leverage: leverage}
	if err := s.db.Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount loads an account with its open positions.
func (s *Store) GetAccount(id uint) (*Account, error) {
	var account Account
	err := s.db.Preload("Positions").First(&account, id).Error
	return &account, err
}

// AccountsWithPositions loads all accounts with positions eagerly attached.
func (s *Store) AccountsWithPositions() ([]Account, error) {
	var accounts []Account
	err := s.db.Preload("Positions").Find(&accounts).Error
	return accounts, err
}

// Order operations

func (s *Store) CreateOrder(order *Order) error {
	return s.db.Create(order).Error
}

func (s *Store) GetOrder(id uint) (*Order, error) {
	var order Order
	err := s.db.First(&order, id).Error
	return &order, err
}

func (s *Store) SaveOrder(order *Order) error {
	return s.db.Save(order).Error
}

func (s *Store) ListOrders(accountID uint) ([]Order, error) {
	var orders []Order
	err := s.db.Where("account_id = ?", accountID).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// OpenOrders returns all orders the engine still has to look at,
// id ascending so fills are observed in submission order.
func (s *Store) OpenOrders() ([]Order, error) {
	var orders []Order
	err := s.db.
		Where("status IN ?", []OrderStatus{OrderStatusNew, OrderStatusPartiallyFilled}).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

// Position operations

func (s *Store) GetPosition(id uint) (*Position, error) {
	var position Position
	err := s.db.First(&position, id).Error
	return &position, err
}

func (s *Store) SavePosition(position *Position) error {
	return s.db.Save(position).Error
}

// PositionsWithTPSL returns all positions with a take-profit or stop-loss set.
func (s *Store) PositionsWithTPSL() ([]Position, error) {
	var positions []Position
	err := s.db.
		Where("take_profit_price IS NOT NULL OR stop_loss_price IS NOT NULL").
		Order("id ASC").
		Find(&positions).Error
	return positions, err
}

// History and reporting

func (s *Store) TradesForOrder(orderID uint) ([]Trade, error) {
	var trades []Trade
	err := s.db.Where("order_id = ?", orderID).Order("id ASC").Find(&trades).Error
	return trades, err
}

// EquityHistorySince returns snapshots for an account newer than since,
// oldest first.
func (s *Store) EquityHistorySince(accountID uint, since time.Time) ([]EquityHistory, error) {
	var history []EquityHistory
	err := s.db.
		Where("account_id = ? AND timestamp >= ?", accountID, since).
		Order("timestamp ASC").
		Find(&history).Error
	return history, err
}

func (s *Store) AppendEquity(tx *gorm.DB, accountID uint, equity decimal.Decimal) error {
	return tx.Create(&EquityHistory{AccountID: accountID, Equity: equity}).Error
}

func (s *Store) PositionHistoryFor(accountID uint) ([]PositionHistory, error) {
	var history []PositionHistory
	err := s.db.Where("account_id = ?", accountID).Order("closed_at DESC").Find(&history).Error
	return history, err
}

// PositionHistoryBetween returns closed positions in [from, to), oldest first.
func (s *Store) PositionHistoryBetween(accountID uint, from, to time.Time) ([]PositionHistory, error) {
	var history []PositionHistory
	err := s.db.
		Where("account_id = ? AND closed_at >= ? AND closed_at < ?", accountID, from, to).
		Order("closed_at ASC").
		Find(&history).Error
	return history, err
}

// Drawing operations

func (s *Store) CreateDrawing(drawing *Drawing) error {
	return s.db.Create(drawing).Error
}

func (s *Store) ListDrawings(accountID uint, symbol string) ([]Drawing, error) {
	var drawings []Drawing
	err := s.db.Where("account_id = ? AND symbol = ?", accountID, symbol).Find(&drawings).Error
	return drawings, err
}

func (s *Store) DeleteDrawing(id uint) error {
	res := s.db.Delete(&Drawing{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Row-lock helpers used inside fill transactions.

// forUpdate applies a pessimistic row lock where the dialect supports it.
// SQLite has no FOR UPDATE; its single-writer model serializes fills anyway.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// LockAccount reads the account row FOR UPDATE within tx. The HTTP submission
// path and the engine both touch accounts; the lock serializes fills per account.
func LockAccount(tx *gorm.DB, accountID uint) (*Account, error) {
	var account Account
	err := forUpdate(tx).First(&account, accountID).Error
	return &account, err
}

// PositionForUpdate reads the (account, symbol) position row FOR UPDATE within
// tx. Returns nil without error when no position exists yet.
func PositionForUpdate(tx *gorm.DB, accountID uint, symbol string) (*Position, error) {
	var position Position
	err := forUpdate(tx).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		First(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}
