package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gozon/storefront/internal/rest"

	"github.com/shopspring/decimal"
)

var ErrAccountExists = errors.New("account already exists")

type Account struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// Client talks to the Payments service account endpoints.
type Client struct {
	rest *rest.Client
}

func NewClient(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

type accountRequest struct {
	UserID int64       `json:"user_id"`
	Amount json.Number `json:"amount,omitempty"`
}

// CreateAccount returns ErrAccountExists on 409; callers fall back to a
// balance query in that case.
func (c *Client) CreateAccount(ctx context.Context, userID int64) (Account, error) {
	var acc Account
	err := c.rest.Do(ctx, http.MethodPost, "/accounts", accountRequest{UserID: userID}, &acc)
	if err != nil {
		if statusOf(err) == http.StatusConflict {
			return Account{}, ErrAccountExists
		}
		return Account{}, err
	}
	return acc, nil
}

func (c *Client) TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (Account, error) {
	var acc Account
	req := accountRequest{UserID: userID, Amount: json.Number(amount.String())}
	if err := c.rest.Do(ctx, http.MethodPost, "/accounts/topup", req, &acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}

func (c *Client) Balance(ctx context.Context, userID int64) (Account, error) {
	var acc Account
	if err := c.rest.Do(ctx, http.MethodGet, fmt.Sprintf("/accounts/%d/balance", userID), nil, &acc); err != nil {
		return Account{}, err
	}
	if acc.UserID == 0 {
		acc.UserID = userID
	}
	return acc, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.rest.Do(ctx, http.MethodGet, "/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func statusOf(err error) int {
	var apiErr *rest.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
