package contracts

// OrderStatusChanged is published by the Orders service when an order moves
// to a new status, and forwarded verbatim to push subscribers.
type OrderStatusChanged struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}
