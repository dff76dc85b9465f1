package subscription

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gw "github.com/gorilla/websocket"
)

// WSDialer opens {baseURL}/ws/orders/{orderID}.
type WSDialer struct {
	baseURL string
	dialer  *gw.Dialer
	header  http.Header
}

func NewWSDialer(baseURL string, handshakeTimeout time.Duration) *WSDialer {
	return &WSDialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer: &gw.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *WSDialer) URL(orderID int64) string {
	return fmt.Sprintf("%s/ws/orders/%d", d.baseURL, orderID)
}

func (d *WSDialer) Dial(ctx context.Context, orderID int64) (Conn, error) {
	url := d.URL(orderID)
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *gw.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
