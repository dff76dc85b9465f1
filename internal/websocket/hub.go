package websocket

import (
	"context"
	"encoding/json"

	"gozon/storefront/pkg/contracts"
)

type Client struct {
	hub     *Hub
	conn    *Conn
	send    chan []byte
	orderID int64
}

type countRequest struct {
	orderID int64
	reply   chan int
}

// Hub fans order status updates out to the sockets subscribed to that order.
// All bookkeeping happens on the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan contracts.OrderStatusChanged
	count      chan countRequest
	done       chan struct{}
	clients    map[int64]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan contracts.OrderStatusChanged),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		clients:    make(map[int64]map[*Client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.orderID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.orderID] = set
			}
			set[c] = true
		case c := <-h.unregister:
			h.drop(c)
		case upd := <-h.broadcast:
			msg, err := json.Marshal(upd)
			if err != nil {
				continue
			}
			for c := range h.clients[upd.OrderID] {
				select {
				case c.send <- msg:
				default:
					h.drop(c)
				}
			}
		case req := <-h.count:
			req.reply <- len(h.clients[req.orderID])
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[int64]map[*Client]bool)
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	set, ok := h.clients[c.orderID]
	if !ok {
		return
	}
	if _, exists := set[c]; exists {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.orderID)
	}
}

// Broadcast blocks until the hub has taken the update or stopped.
func (h *Hub) Broadcast(upd contracts.OrderStatusChanged) {
	select {
	case h.broadcast <- upd:
	case <-h.done:
	}
}

func (h *Hub) Subscribers(orderID int64) int {
	req := countRequest{orderID: orderID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
