// Package console holds the client-side view state and wires the gateway
// clients, the known-users cache and the push subscription into it.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gozon/storefront/internal/knownusers"
	"gozon/storefront/internal/notify"
	"gozon/storefront/internal/orders"
	"gozon/storefront/internal/payments"
	"gozon/storefront/internal/subscription"

	"github.com/shopspring/decimal"
)

var ErrOrderDisabled = errors.New("order creation disabled")

type AccountGateway interface {
	CreateAccount(ctx context.Context, userID int64) (payments.Account, error)
	TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (payments.Account, error)
	Balance(ctx context.Context, userID int64) (payments.Account, error)
	ListAccounts(ctx context.Context) ([]payments.Account, error)
}

type OrderGateway interface {
	CreateOrder(ctx context.Context, req orders.CreateRequest) (orders.Order, error)
	ListOrders(ctx context.Context) ([]orders.Order, error)
}

// State is what views render. Balance is nil until the first successful
// fetch; OrderID is zero while no order is in flight.
type State struct {
	UserID   int64
	Balance  *decimal.Decimal
	OrderID  int64
	Status   orders.Status
	Channel  subscription.State
	Orders   []orders.Order
	Accounts []payments.Account
}

type Options struct {
	Accounts AccountGateway
	Orders   OrderGateway
	Users    knownusers.Store
	Dialer   subscription.Dialer
	Notifier notify.Notifier
	Logger   *slog.Logger
	UserID   int64
}

type Coordinator struct {
	accounts AccountGateway
	orders   OrderGateway
	users    knownusers.Store
	notifier notify.Notifier
	logger   *slog.Logger
	subs     *subscription.Manager

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	pending int
	idle    *sync.Cond
}

// New returns a coordinator whose push channels and background refreshes
// live until ctx is done or Close is called.
func New(ctx context.Context, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Coordinator{
		accounts: opts.Accounts,
		orders:   opts.Orders,
		users:    opts.Users,
		notifier: opts.Notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		state: State{
			UserID: opts.UserID,
			Status: "-",
		},
	}
	c.idle = sync.NewCond(&c.mu)
	c.subs = subscription.NewManager(opts.Dialer, pushHandler{c}, logger)
	return c
}

func (c *Coordinator) SetUser(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.UserID = id
}

func (c *Coordinator) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.UserID
}

func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()

	if s.Balance != nil {
		b := *s.Balance
		s.Balance = &b
	}
	s.Orders = slices.Clone(s.Orders)
	s.Accounts = slices.Clone(s.Accounts)
	s.Channel = c.subs.State()
	return s
}

func (c *Coordinator) KnownUsers(ctx context.Context) []int64 {
	return c.users.Read(ctx)
}

// CreateAccount treats an existing account as a cue to show its balance.
func (c *Coordinator) CreateAccount(ctx context.Context) error {
	userID := c.UserID()
	c.remember(ctx, userID)

	acc, err := c.accounts.CreateAccount(ctx, userID)
	if errors.Is(err, payments.ErrAccountExists) {
		c.notify(notify.New(notify.LevelInfo, "account for user %d already exists", userID))
		return c.RefreshBalance(ctx, true)
	}
	if err != nil {
		return c.fail(err)
	}

	c.setBalance(acc.Balance)
	c.notify(notify.New(notify.LevelSuccess, "account created, balance: %s", acc.Balance))
	return nil
}

func (c *Coordinator) TopUp(ctx context.Context, amount decimal.Decimal) error {
	userID := c.UserID()
	c.remember(ctx, userID)

	acc, err := c.accounts.TopUp(ctx, userID, amount)
	if err != nil {
		return c.fail(err)
	}

	c.setBalance(acc.Balance)
	c.notify(notify.New(notify.LevelSuccess, "top-up succeeded, balance: %s", acc.Balance))
	return nil
}

// RefreshBalance reports failures either way; announce only controls the
// notice on success.
func (c *Coordinator) RefreshBalance(ctx context.Context, announce bool) error {
	userID := c.UserID()
	c.remember(ctx, userID)

	acc, err := c.accounts.Balance(ctx, userID)
	if err != nil {
		return c.fail(err)
	}

	c.setBalance(acc.Balance)
	if announce {
		c.notify(notify.New(notify.LevelInfo, "balance: %s", acc.Balance))
	}
	return nil
}

func (c *Coordinator) CanCreateOrder(amount decimal.Decimal) bool {
	return c.orderRequest(amount, "").Validate() == nil
}

// CreateOrder sends nothing when the user id or amount is not positive.
// On success the new order becomes the one the push channel follows.
func (c *Coordinator) CreateOrder(ctx context.Context, amount decimal.Decimal, description string) (orders.Order, error) {
	req := c.orderRequest(amount, description)
	if err := req.Validate(); err != nil {
		return orders.Order{}, fmt.Errorf("%w: %w", ErrOrderDisabled, err)
	}
	c.remember(ctx, req.UserID)

	c.mu.Lock()
	c.state.OrderID = 0
	c.state.Status = orders.StatusNew
	c.mu.Unlock()

	o, err := c.orders.CreateOrder(ctx, req)
	if err != nil {
		return orders.Order{}, c.fail(err)
	}
	if o.Status == "" {
		o.Status = orders.StatusNew
	}

	c.mu.Lock()
	c.state.OrderID = o.OrderID
	c.state.Status = o.Status
	c.mu.Unlock()

	c.notify(notify.New(notify.LevelInfo, "order #%d created, waiting for payment", o.OrderID))
	c.subs.Subscribe(c.ctx, o.OrderID)
	return o, nil
}

func (c *Coordinator) LoadOrders(ctx context.Context, announce bool) error {
	list, err := c.orders.ListOrders(ctx)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.state.Orders = list
	c.mu.Unlock()

	if announce {
		c.notify(notify.New(notify.LevelInfo, "orders loaded: %d", len(list)).WithKey("orders_loaded"))
	}
	return nil
}

func (c *Coordinator) LoadAccounts(ctx context.Context, announce bool) error {
	list, err := c.accounts.ListAccounts(ctx)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.state.Accounts = list
	c.mu.Unlock()

	if announce {
		c.notify(notify.New(notify.LevelInfo, "accounts loaded: %d", len(list)).WithKey("users_loaded"))
	}
	return nil
}

// Wait blocks until background balance refreshes triggered by pushes finish.
// It may run while new pushes arrive; it then also waits for theirs.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pending > 0 {
		c.idle.Wait()
	}
}

func (c *Coordinator) Close() {
	c.subs.Close()
	c.cancel()
	c.Wait()
}

func (c *Coordinator) refreshDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 {
		c.idle.Broadcast()
	}
}

func (c *Coordinator) orderRequest(amount decimal.Decimal, description string) orders.CreateRequest {
	return orders.CreateRequest{
		UserID:      c.UserID(),
		Amount:      amount,
		Description: description,
	}
}

func (c *Coordinator) setBalance(b decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Balance = &b
}

func (c *Coordinator) remember(ctx context.Context, userID int64) {
	if _, err := c.users.Remember(ctx, userID); err != nil {
		c.logger.Warn("remember user", "user_id", userID, "err", err)
	}
}

func (c *Coordinator) fail(err error) error {
	c.notify(notify.New(notify.LevelError, "%s", err.Error()))
	return err
}

func (c *Coordinator) notify(n notify.Notification) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}
