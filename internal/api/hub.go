package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"papertrade/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin from the chart UI.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks the WebSocket connections subscribed to each account and pushes
// an ACCOUNT_UPDATE nudge whenever the account's state changes. The payload
// carries no data; clients refetch over HTTP.
type Hub struct {
	mu    sync.Mutex
	conns map[uint]map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*websocket.Conn]bool)}
}

// Handle upgrades GET /ws/accounts/:id and parks the connection until the
// client goes away.
func (h *Hub) Handle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.add(id, conn)
	defer h.remove(id, conn)

	// Drain reads so pings/closes are processed; clients never send data.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(accountID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[accountID] == nil {
		h.conns[accountID] = make(map[*websocket.Conn]bool)
	}
	h.conns[accountID][conn] = true
}

func (h *Hub) remove(accountID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[accountID], conn)
	if len(h.conns[accountID]) == 0 {
		delete(h.conns, accountID)
	}
	conn.Close()
}

// AccountUpdate broadcasts the refetch nudge to every connection watching
// the account. Dead connections are dropped on write failure.
func (h *Hub) AccountUpdate(accountID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[accountID] {
		if err := conn.WriteJSON(map[string]string{"type": "ACCOUNT_UPDATE"}); err != nil {
			conn.Close()
			delete(h.conns[accountID], conn)
		}
	}
}

// OrderFilled and PositionClosed exist so the hub slots in as an engine
// notifier; per-account state pushes already cover both events.

func (h *Hub) OrderFilled(store.Order, decimal.Decimal) {}

func (h *Hub) PositionClosed(store.PositionHistory) {}
