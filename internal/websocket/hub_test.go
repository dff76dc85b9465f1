package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gozon/storefront/pkg/contracts"

	gw "github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/orders/{orderID}", NewHandler(hub, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).ServeWS)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base string, orderID string) *gw.Conn {
	t.Helper()
	conn, _, err := gw.DefaultDialer.Dial(base+"/ws/orders/"+orderID, nil)
	if err != nil {
		t.Fatalf("dial order %s: %v", orderID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *Hub, orderID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(orderID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers for order %d, got %d", want, orderID, hub.Subscribers(orderID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesOnlyMatchingOrder(t *testing.T) {
	hub, base := startHub(t)

	a1 := dial(t, base, "1")
	a2 := dial(t, base, "1")
	b := dial(t, base, "2")
	waitSubscribers(t, hub, 1, 2)
	waitSubscribers(t, hub, 2, 1)

	hub.Broadcast(contracts.OrderStatusChanged{OrderID: 1, Status: "PAID"})

	for _, conn := range []*gw.Conn{a1, a2} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var got contracts.OrderStatusChanged
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("decode %s: %v", payload, err)
		}
		if got.OrderID != 1 || got.Status != "PAID" {
			t.Errorf("unexpected update %+v", got)
		}
	}

	_ = b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, payload, err := b.ReadMessage(); err == nil {
		t.Errorf("order 2 subscriber must not receive order 1 updates, got %s", payload)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, base := startHub(t)

	conn := dial(t, base, "5")
	waitSubscribers(t, hub, 5, 1)

	_ = conn.Close()
	waitSubscribers(t, hub, 5, 0)
}

func TestInvalidOrderIDRejected(t *testing.T) {
	_, base := startHub(t)

	for _, id := range []string{"abc", "0", "-3"} {
		_, resp, err := gw.DefaultDialer.Dial(base+"/ws/orders/"+id, nil)
		if err == nil {
			t.Errorf("expected handshake failure for %q", id)
			continue
		}
		if resp == nil || resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for %q, got %v", id, resp)
		}
	}
}
