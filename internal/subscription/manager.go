// Package subscription owns the single live push channel bound to the most
// recently created order.
package subscription

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"gozon/storefront/pkg/contracts"
)

type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, orderID int64) (Conn, error)
}

// Handler receives events of the current subscription only. Calls are
// serialized with Subscribe and Close, so a Handler must not call back into
// the Manager. The orderID argument names the channel, not the frame.
type Handler interface {
	OnOpen(orderID int64)
	OnStatus(orderID int64, evt contracts.OrderStatusChanged)
	OnRaw(orderID int64, payload []byte)
	OnError(orderID int64, err error)
}

type Manager struct {
	dialer  Dialer
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	current *Subscription
}

func NewManager(dialer Dialer, handler Handler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dialer: dialer, handler: handler, logger: logger}
}

// Subscribe makes a new subscription for orderID the current one and closes
// the previous one. The returned subscription is already current when
// Subscribe returns; dialing happens in the background.
func (m *Manager) Subscribe(ctx context.Context, orderID int64) *Subscription {
	sub := newSubscription(ctx, orderID)

	m.mu.Lock()
	prev := m.current
	m.current = sub
	m.mu.Unlock()

	if prev != nil {
		if err := prev.close(); err != nil {
			m.logger.Debug("close superseded channel", "order_id", prev.orderID, "err", err)
		}
	}

	go m.run(sub)
	return sub
}

// Close releases the current channel and returns the manager to Idle.
func (m *Manager) Close() {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	if prev != nil {
		if err := prev.close(); err != nil {
			m.logger.Debug("close channel", "order_id", prev.orderID, "err", err)
		}
	}
}

func (m *Manager) Current() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Idle
	}
	return m.current.State()
}

func (m *Manager) run(sub *Subscription) {
	defer close(sub.done)

	conn, err := m.dialer.Dial(sub.ctx, sub.orderID)
	if err != nil {
		if sub.markClosed() {
			m.logger.Warn("push channel dial failed", "order_id", sub.orderID, "err", err)
			m.dispatch(sub, func(h Handler) { h.OnError(sub.orderID, err) })
		}
		return
	}
	if !sub.attach(conn) {
		_ = conn.Close()
		return
	}
	go func() {
		<-sub.ctx.Done()
		_ = conn.Close()
	}()
	m.dispatch(sub, func(h Handler) { h.OnOpen(sub.orderID) })

	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			if sub.markClosed() {
				m.logger.Warn("push channel failed", "order_id", sub.orderID, "err", err)
				m.dispatch(sub, func(h Handler) { h.OnError(sub.orderID, err) })
			}
			return
		}

		if evt, ok := ParseStatusEvent(payload); ok {
			m.dispatch(sub, func(h Handler) { h.OnStatus(sub.orderID, evt) })
		} else {
			m.dispatch(sub, func(h Handler) { h.OnRaw(sub.orderID, payload) })
		}
	}
}

// dispatch drops events from anything but the current subscription.
func (m *Manager) dispatch(sub *Subscription, fn func(Handler)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != sub {
		return
	}
	fn(m.handler)
}

// ParseStatusEvent accepts a JSON object carrying both order_id and a
// non-empty status.
func ParseStatusEvent(payload []byte) (contracts.OrderStatusChanged, bool) {
	var frame struct {
		OrderID *int64  `json:"order_id"`
		Status  *string `json:"status"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return contracts.OrderStatusChanged{}, false
	}
	if frame.OrderID == nil || frame.Status == nil || *frame.Status == "" {
		return contracts.OrderStatusChanged{}, false
	}
	return contracts.OrderStatusChanged{OrderID: *frame.OrderID, Status: *frame.Status}, true
}
