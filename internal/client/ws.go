package client

import (
	"context"
	"fmt"

	"nhooyr.io/websocket"
)

// wsConn adapts nhooyr.io/websocket to the Conn interface.
type wsConn struct {
	conn   *websocket.Conn
	remote string
}

// WebSocketDialer returns a Dialer that connects to the server's push
// endpoint, e.g. "ws://host:port/ws".
func WebSocketDialer(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		c, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return &wsConn{conn: c, remote: url}, nil
	}
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
