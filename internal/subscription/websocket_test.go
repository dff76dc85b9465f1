package subscription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gw "github.com/gorilla/websocket"
)

func TestWSDialerReadsFrames(t *testing.T) {
	upgrader := gw.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/orders/42" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(gw.TextMessage, []byte(`{"order_id":42,"status":"PAID"}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	d := NewWSDialer("ws"+strings.TrimPrefix(srv.URL, "http")+"/", 2*time.Second)
	if got, want := d.URL(42), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/orders/42"; got != want {
		t.Errorf("expected URL %s, got %s", want, got)
	}

	conn, err := d.Dial(context.Background(), 42)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	evt, ok := ParseStatusEvent(payload)
	if !ok || evt.OrderID != 42 || evt.Status != "PAID" {
		t.Errorf("unexpected frame %s", payload)
	}
}

func TestWSDialerReportsHandshakeFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewWSDialer("ws"+strings.TrimPrefix(srv.URL, "http"), time.Second)
	if _, err := d.Dial(context.Background(), 1); err == nil {
		t.Fatal("expected dial error")
	} else if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status in error, got %v", err)
	}
}
