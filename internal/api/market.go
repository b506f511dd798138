package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getPrices returns the current mark for every symbol the cache knows.
func (s *Server) getPrices(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Snapshot())
}

// getKlines proxies historical candles from the upstream market data API.
func (s *Server) getKlines(c *gin.Context) {
	if s.market == nil {
		abortError(c, http.StatusServiceUnavailable, "market data proxy is disabled")
		return
	}

	product := c.Query("symbol")
	if product == "" {
		abortError(c, http.StatusBadRequest, "symbol is required")
		return
	}
	granularity := c.DefaultQuery("granularity", "ONE_MINUTE")

	candles, err := s.market.Candles(c.Request.Context(), product, granularity, c.Query("start"), c.Query("end"))
	if err != nil {
		abortError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, candles)
}
