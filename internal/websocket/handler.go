package websocket

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gw "github.com/gorilla/websocket"
)

type Conn = gw.Conn

const writeWait = 10 * time.Second

type Handler struct {
	hub      *Hub
	upgrader gw.Upgrader
	logger   *slog.Logger
}

// NewHandler accepts any origin when allowOrigin is nil.
func NewHandler(hub *Hub, allowOrigin func(origin string) bool, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: gw.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowOrigin == nil || origin == "" || allowOrigin(origin)
			},
		},
		logger: logger,
	}
}

// ServeWS handles GET /ws/orders/{orderID}.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(r.PathValue("orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "order_id", orderID, "err", err)
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		orderID: orderID,
	}
	if !h.hub.add(client) {
		_ = conn.Close()
		return
	}
	h.logger.Debug("push subscriber connected", "order_id", orderID)

	go client.writePump()
	go client.readPump()
}

// readPump only watches for the peer going away; inbound frames are ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(gw.CloseMessage, gw.FormatCloseMessage(gw.CloseGoingAway, ""), time.Now().Add(time.Second))
}
