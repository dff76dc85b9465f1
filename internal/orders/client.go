package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gozon/storefront/internal/rest"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidUser   = errors.New("user id must be positive")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Status is whatever label the Orders service reports. Only NEW is known
// up front; later values arrive over the push channel.
type Status string

const StatusNew Status = "NEW"

type Order struct {
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Status      Status          `json:"status"`
}

type CreateRequest struct {
	UserID      int64
	Amount      decimal.Decimal
	Description string
}

func (r CreateRequest) Validate() error {
	if r.UserID <= 0 {
		return ErrInvalidUser
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

type Client struct {
	rest *rest.Client
}

func NewClient(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// CreateOrder refuses to send a request that fails Validate.
func (c *Client) CreateOrder(ctx context.Context, req CreateRequest) (Order, error) {
	if err := req.Validate(); err != nil {
		return Order{}, err
	}

	body := struct {
		UserID      int64       `json:"user_id"`
		Amount      json.Number `json:"amount"`
		Description string      `json:"description"`
	}{
		UserID:      req.UserID,
		Amount:      json.Number(req.Amount.String()),
		Description: req.Description,
	}

	var o Order
	if err := c.rest.Do(ctx, http.MethodPost, "/orders", body, &o); err != nil {
		return Order{}, err
	}
	if o.UserID == 0 {
		o.UserID = req.UserID
	}
	if o.Amount.IsZero() {
		o.Amount = req.Amount
	}
	if o.Description == "" {
		o.Description = req.Description
	}
	return o, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var list []Order
	if err := c.rest.Do(ctx, http.MethodGet, "/orders", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Get(ctx context.Context, orderID int64) (Order, error) {
	var o Order
	if err := c.rest.Do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}
