package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeLong(t *testing.T) {
	account := &store.Account{Balance: d("7000")}
	positions := []store.Position{
		{Symbol: "BTCUSDT", Quantity: d("1"), EntryPrice: d("30000"), Margin: d("3000")},
	}
	marks := map[string]decimal.Decimal{"BTCUSDT": d("31000")}

	m := Compute(account, positions, marks)

	require.Len(t, m.Positions, 1)
	assert.True(t, m.Positions[0].MarkKnown)
	assert.True(t, m.Positions[0].UnrealizedPnl.Equal(d("1000")))
	assert.True(t, m.TotalMargin.Equal(d("3000")))
	assert.True(t, m.Equity.Equal(d("11000")))
}

func TestComputeShort(t *testing.T) {
	account := &store.Account{Balance: d("9600")}
	positions := []store.Position{
		{Symbol: "ETHUSDT", Quantity: d("-2"), EntryPrice: d("2000"), Margin: d("400")},
	}

	// Mark moved against the short
	m := Compute(account, positions, map[string]decimal.Decimal{"ETHUSDT": d("2100")})
	assert.True(t, m.Positions[0].UnrealizedPnl.Equal(d("-200")))
	assert.True(t, m.Equity.Equal(d("9800")))

	// Mark moved in favor
	m = Compute(account, positions, map[string]decimal.Decimal{"ETHUSDT": d("1900")})
	assert.True(t, m.Positions[0].UnrealizedPnl.Equal(d("200")))
	assert.True(t, m.Equity.Equal(d("10200")))
}

func TestComputeMissingMarkContributesZero(t *testing.T) {
	account := &store.Account{Balance: d("5000")}
	positions := []store.Position{
		{Symbol: "BTCUSDT", Quantity: d("1"), EntryPrice: d("30000"), Margin: d("3000")},
		{Symbol: "XYZUSDT", Quantity: d("10"), EntryPrice: d("5"), Margin: d("50")},
	}
	marks := map[string]decimal.Decimal{"BTCUSDT": d("30500")}

	m := Compute(account, positions, marks)

	assert.False(t, m.Positions[1].MarkKnown)
	assert.True(t, m.Positions[1].UnrealizedPnl.IsZero())
	// Margin still counts even without a mark
	assert.True(t, m.TotalMargin.Equal(d("3050")))
	// equity = 5000 + 3050 + 500 (BTC pnl only)
	assert.True(t, m.Equity.Equal(d("8550")))
}

func TestComputeNoPositions(t *testing.T) {
	account := &store.Account{Balance: d("10000")}
	m := Compute(account, nil, nil)
	assert.True(t, m.Equity.Equal(d("10000")))
	assert.Empty(t, m.Positions)
}

func TestAllMarksKnown(t *testing.T) {
	positions := []store.Position{
		{Symbol: "BTCUSDT"},
		{Symbol: "XYZUSDT"},
	}

	marks := map[string]decimal.Decimal{"BTCUSDT": d("30000")}
	assert.False(t, AllMarksKnown(positions, marks))

	marks["XYZUSDT"] = d("5")
	assert.True(t, AllMarksKnown(positions, marks))

	// A zero mark counts as unknown
	marks["XYZUSDT"] = decimal.Zero
	assert.False(t, AllMarksKnown(positions, marks))
}
