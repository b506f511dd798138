// Package api exposes the HTTP and WebSocket surface of the venue.
//
// Handlers only validate and persist; order execution is the engine's job.
// A submitted order is inserted as NEW and picked up on the next engine tick,
// which is the concurrency contract that prevents double fills.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"papertrade/internal/market"
	"papertrade/internal/pricecache"
	"papertrade/internal/store"
)

// Server wires the venue's read and submission paths into a gin router.
type Server struct {
	store  *store.Store
	cache  *pricecache.Cache
	market *market.Client
	hub    *Hub

	initialBalance  decimal.Decimal
	defaultLeverage int
}

// NewServer creates the API server. market may be nil to disable the
// klines proxy.
func NewServer(st *store.Store, cache *pricecache.Cache, marketClient *market.Client, hub *Hub, initialBalance decimal.Decimal, defaultLeverage int) *Server {
	return &Server{
		store:           st,
		cache:           cache,
		market:          marketClient,
		hub:             hub,
		initialBalance:  initialBalance,
		defaultLeverage: defaultLeverage,
	}
}

// Router builds the route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Trading venue is running"})
	})

	accounts := r.Group("/accounts")
	{
		accounts.POST("/", s.createAccount)
		accounts.GET("/:id", s.getAccount)
		accounts.GET("/:id/equity-history", s.getEquityHistory)
		accounts.GET("/:id/position-history", s.getPositionHistory)
		accounts.GET("/:id/daily-pnl", s.getDailyPnl)
		accounts.GET("/:id/statistics", s.getStatistics)
	}

	orders := r.Group("/orders")
	{
		orders.POST("", s.createOrder)
		orders.GET("", s.listOrders)
		orders.DELETE("/:id", s.cancelOrder)
		orders.PATCH("/:id", s.amendOrder)
	}

	r.PATCH("/positions/:id", s.updatePosition)

	marketGroup := r.Group("/market")
	{
		marketGroup.GET("/prices", s.getPrices)
		marketGroup.GET("/klines", s.getKlines)
	}

	drawings := r.Group("/drawings")
	{
		drawings.POST("", s.createDrawing)
		drawings.GET("", s.listDrawings)
		drawings.DELETE("/:id", s.deleteDrawing)
	}

	r.GET("/ws/accounts/:id", s.hub.Handle)

	return r
}

// abortError writes a uniform error payload.
func abortError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// pathID parses the numeric :id path parameter.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}
