package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"papertrade/internal/metrics"
	"papertrade/internal/store"
)

type createAccountRequest struct {
	UserID         string           `json:"user_id" binding:"required"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

type accountResponse struct {
	ID            uint                      `json:"id"`
	UserID        string                    `json:"user_id"`
	Balance       decimal.Decimal           `json:"balance"`
	Leverage      int                       `json:"leverage"`
	Equity        decimal.Decimal           `json:"equity"`
	UnrealizedPnl decimal.Decimal           `json:"unrealized_pnl"`
	MarginUsed    decimal.Decimal           `json:"margin_used"`
	Positions     []metrics.PositionMetrics `json:"positions"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func (s *Server) accountResponse(account *store.Account) accountResponse {
	m := metrics.Compute(account, account.Positions, s.cache.Snapshot())
	return accountResponse{
		ID:            account.ID,
		UserID:        account.UserID,
		Balance:       account.Balance,
		Leverage:      account.Leverage,
		Equity:        m.Equity,
		UnrealizedPnl: m.TotalUnrealized,
		MarginUsed:    m.TotalMargin,
		Positions:     m.Positions,
		CreatedAt:     account.CreatedAt,
	}
}

// createAccount creates an account or returns the existing one for the
// user id. Idempotent by user_id.
func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	balance := s.initialBalance
	if req.InitialBalance != nil {
		if req.InitialBalance.IsNegative() {
			abortError(c, http.StatusBadRequest, "initial_balance must not be negative")
			return
		}
		balance = *req.InitialBalance
	}

	account, err := s.store.CreateAccount(req.UserID, balance, s.defaultLeverage)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, s.accountResponse(account))
}

func (s *Server) getAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	account, err := s.store.GetAccount(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortError(c, http.StatusNotFound, "account not found")
			return
		}
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.accountResponse(account))
}

// getEquityHistory returns equity snapshots from the last 12 hours.
func (s *Server) getEquityHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	since := time.Now().Add(-12 * time.Hour)
	history, err := s.store.EquityHistorySince(id, since)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) getPositionHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	history, err := s.store.PositionHistoryFor(id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, history)
}

type dailyPnlEntry struct {
	Date   string          `json:"date"`
	Pnl    decimal.Decimal `json:"pnl"`
	Fees   decimal.Decimal `json:"fees"`
	Trades int             `json:"trades"`
}

// getDailyPnl aggregates realized P&L from closed positions per calendar day
// of the requested month.
func (s *Server) getDailyPnl(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		abortError(c, http.StatusBadRequest, "year is required")
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		abortError(c, http.StatusBadRequest, "month must be 1-12")
		return
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	closed, err := s.store.PositionHistoryBetween(id, from, to)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	byDay := make(map[string]*dailyPnlEntry)
	order := make([]string, 0)
	for _, h := range closed {
		day := h.ClosedAt.UTC().Format("2006-01-02")
		entry, exists := byDay[day]
		if !exists {
			entry = &dailyPnlEntry{Date: day, Pnl: decimal.Zero, Fees: decimal.Zero}
			byDay[day] = entry
			order = append(order, day)
		}
		entry.Pnl = entry.Pnl.Add(h.RealizedPnl)
		entry.Fees = entry.Fees.Add(h.TotalFee)
		entry.Trades++
	}

	out := make([]dailyPnlEntry, 0, len(order))
	for _, day := range order {
		out = append(out, *byDay[day])
	}
	c.JSON(http.StatusOK, out)
}

type statisticsResponse struct {
	TotalClosed int             `json:"total_closed"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	WinRate     decimal.Decimal `json:"win_rate"`
	TotalPnl    decimal.Decimal `json:"total_pnl"`
	TotalFees   decimal.Decimal `json:"total_fees"`
	BestTrade   decimal.Decimal `json:"best_trade"`
	WorstTrade  decimal.Decimal `json:"worst_trade"`
}

// getStatistics summarizes the account's closed positions.
func (s *Server) getStatistics(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	closed, err := s.store.PositionHistoryFor(id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	stats := statisticsResponse{
		WinRate:    decimal.Zero,
		TotalPnl:   decimal.Zero,
		TotalFees:  decimal.Zero,
		BestTrade:  decimal.Zero,
		WorstTrade: decimal.Zero,
	}
	for _, h := range closed {
		stats.TotalClosed++
		stats.TotalPnl = stats.TotalPnl.Add(h.RealizedPnl)
		stats.TotalFees = stats.TotalFees.Add(h.TotalFee)
		if h.RealizedPnl.IsPositive() {
			stats.Wins++
		} else if h.RealizedPnl.IsNegative() {
			stats.Losses++
		}
		if h.RealizedPnl.GreaterThan(stats.BestTrade) {
			stats.BestTrade = h.RealizedPnl
		}
		if h.RealizedPnl.LessThan(stats.WorstTrade) {
			stats.WorstTrade = h.RealizedPnl
		}
	}
	if stats.TotalClosed > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).
			Div(decimal.NewFromInt(int64(stats.TotalClosed)))
	}
	c.JSON(http.StatusOK, stats)
}
