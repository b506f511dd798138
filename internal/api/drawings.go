package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"papertrade/internal/store"
)

type createDrawingRequest struct {
	AccountID uint   `json:"account_id" binding:"required"`
	Symbol    string `json:"symbol" binding:"required"`
	Tool      string `json:"tool" binding:"required"`
	Points    string `json:"points" binding:"required"`
}

func (s *Server) createDrawing(c *gin.Context) {
	var req createDrawingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "account_id, symbol, tool and points are required")
		return
	}

	drawing := store.Drawing{
		AccountID: req.AccountID,
		Symbol:    strings.ToUpper(req.Symbol),
		Tool:      req.Tool,
		Points:    req.Points,
	}
	if err := s.store.CreateDrawing(&drawing); err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, drawing)
}

func (s *Server) listDrawings(c *gin.Context) {
	accountID, err := strconv.ParseUint(c.Query("account_id"), 10, 64)
	if err != nil {
		abortError(c, http.StatusBadRequest, "account_id is required")
		return
	}
	symbol := strings.ToUpper(c.Query("symbol"))
	if symbol == "" {
		abortError(c, http.StatusBadRequest, "symbol is required")
		return
	}

	drawings, err := s.store.ListDrawings(uint(accountID), symbol)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, drawings)
}

func (s *Server) deleteDrawing(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.store.DeleteDrawing(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortError(c, http.StatusNotFound, "drawing not found")
			return
		}
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
