package subscription

import (
	"context"
	"sync"
)

// Subscription binds one channel to one order. Once Closed it is never
// reused.
type Subscription struct {
	orderID int64
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu    sync.Mutex
	state State
	conn  Conn
}

func newSubscription(parent context.Context, orderID int64) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{
		orderID: orderID,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   Connecting,
	}
}

func (s *Subscription) OrderID() int64 {
	return s.orderID
}

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the reader goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) attach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	s.conn = conn
	s.state = Open
	return true
}

// markClosed reports whether this call performed the transition.
func (s *Subscription) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	s.state = Closed
	s.cancel()
	return true
}

func (s *Subscription) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	s.cancel()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
