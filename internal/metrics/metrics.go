// Package metrics computes equity and unrealized P&L from an account and a
// mark-price snapshot. Pure functions, no I/O.
package metrics

import (
	"github.com/shopspring/decimal"

	"papertrade/internal/store"
)

// PositionMetrics is one position with its mark-dependent figures attached.
type PositionMetrics struct {
	Position      store.Position  `json:"position"`
	Mark          decimal.Decimal `json:"mark"`
	MarkKnown     bool            `json:"mark_known"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
}

// AccountMetrics is the equity breakdown of one account at a mark snapshot.
type AccountMetrics struct {
	Balance         decimal.Decimal   `json:"balance"`
	TotalMargin     decimal.Decimal   `json:"total_margin"`
	TotalUnrealized decimal.Decimal   `json:"total_unrealized"`
	Equity          decimal.Decimal   `json:"equity"`
	Positions       []PositionMetrics `json:"positions"`
}

// Compute derives equity from balance + margin + unrealized P&L.
//
// Unrealized P&L per position is (mark - entry) * quantity; the signed
// quantity makes this correct for shorts. Positions without a published mark
// contribute zero.
func Compute(account *store.Account, positions []store.Position, marks map[string]decimal.Decimal) AccountMetrics {
	m := AccountMetrics{
		Balance:         account.Balance,
		TotalMargin:     decimal.Zero,
		TotalUnrealized: decimal.Zero,
		Positions:       make([]PositionMetrics, 0, len(positions)),
	}

	for _, pos := range positions {
		pm := PositionMetrics{Position: pos, UnrealizedPnl: decimal.Zero}

		if mark, ok := marks[pos.Symbol]; ok && mark.IsPositive() {
			pm.Mark = mark
			pm.MarkKnown = true
			pm.UnrealizedPnl = mark.Sub(pos.EntryPrice).Mul(pos.Quantity)
		}

		m.TotalMargin = m.TotalMargin.Add(pos.Margin)
		m.TotalUnrealized = m.TotalUnrealized.Add(pm.UnrealizedPnl)
		m.Positions = append(m.Positions, pm)
	}

	m.Equity = m.Balance.Add(m.TotalMargin).Add(m.TotalUnrealized)
	return m
}

// AllMarksKnown reports whether every position has a published mark.
// The equity recorder skips accounts that fail this check to avoid
// zero-P&L spikes in the history.
func AllMarksKnown(positions []store.Position, marks map[string]decimal.Decimal) bool {
	for _, pos := range positions {
		if mark, ok := marks[pos.Symbol]; !ok || !mark.IsPositive() {
			return false
		}
	}
	return true
}
