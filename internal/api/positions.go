package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"papertrade/internal/store"
)

type updatePositionRequest struct {
	TakeProfitPrice *decimal.Decimal `json:"take_profit_price"`
	StopLossPrice   *decimal.Decimal `json:"stop_loss_price"`
}

// updatePosition edits TP/SL on an open position. Nothing else about a
// position is user-editable; quantity and margin belong to the engine.
func (s *Server) updatePosition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	position, err := s.store.GetPosition(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortError(c, http.StatusNotFound, "position not found")
			return
		}
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if req.TakeProfitPrice != nil {
		position.TakeProfitPrice = req.TakeProfitPrice
	}
	if req.StopLossPrice != nil {
		position.StopLossPrice = req.StopLossPrice
	}

	if err := s.store.SavePosition(position); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.AccountUpdate(position.AccountID)
	c.JSON(http.StatusOK, position)
}
