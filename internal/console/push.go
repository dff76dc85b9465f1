package console

import (
	"gozon/storefront/internal/notify"
	"gozon/storefront/internal/orders"
	"gozon/storefront/pkg/contracts"
)

// pushHandler applies events of the current subscription to the view state.
type pushHandler struct {
	c *Coordinator
}

func (h pushHandler) OnOpen(orderID int64) {
	h.c.notify(notify.New(notify.LevelSuccess, "subscribed to order #%d", orderID))
}

// OnStatus is the one place the ledger may have moved without the user
// asking, so the balance is re-read without a second notice. The current
// status only follows the channel of the order being shown; a frame from a
// channel that is about to be superseded still patches history.
func (h pushHandler) OnStatus(orderID int64, evt contracts.OrderStatusChanged) {
	c := h.c
	status := orders.Status(evt.Status)

	c.mu.Lock()
	if c.state.OrderID == orderID {
		c.state.Status = status
	}
	for i := range c.state.Orders {
		if c.state.Orders[i].OrderID == evt.OrderID {
			c.state.Orders[i].Status = status
		}
	}
	c.pending++
	c.mu.Unlock()

	c.notify(notify.New(notify.LevelInfo, "order #%d status: %s", evt.OrderID, evt.Status))

	go func() {
		defer c.refreshDone()
		_ = c.RefreshBalance(c.ctx, false)
	}()
}

func (h pushHandler) OnRaw(orderID int64, payload []byte) {
	h.c.notify(notify.New(notify.LevelInfo, "push: %s", payload))
}

func (h pushHandler) OnError(orderID int64, err error) {
	h.c.logger.Warn("push channel error", "order_id", orderID, "err", err)
	h.c.notify(notify.New(notify.LevelError, "push channel error for order #%d", orderID))
}
