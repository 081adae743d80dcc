package connection

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the registry's view of one transport connection. Implementations
// must allow WriteClose and Close to be called concurrently with a blocked
// ReadMessage.
type Conn interface {
	// ReadMessage blocks until the next frame or a read failure. A close
	// frame from the peer surfaces as a *websocket.CloseError.
	ReadMessage() ([]byte, error)

	// WriteClose sends a close frame with the given code.
	WriteClose(code int) error

	// Close tears the transport down.
	Close() error
}

// Dialer opens transport connections. The registry dials asynchronously;
// ctx is cancelled if the connection is shut down while still dialing.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DefaultDialer is used by registries built without WithDialer.
var DefaultDialer Dialer = &GorillaDialer{
	Dialer: &websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  45 * time.Second,
		EnableCompression: true,
	},
}

// GorillaDialer adapts a gorilla/websocket dialer to the Dialer interface.
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

func (d *GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, _, err := d.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &gorillaConn{ws: ws}, nil
}

type gorillaConn struct {
	ws *websocket.Conn
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *gorillaConn) WriteClose(code int) error {
	msg := websocket.FormatCloseMessage(code, "")
	return c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
}

func (c *gorillaConn) Close() error {
	return c.ws.Close()
}

// closeEventFrom translates a read failure into the close event fanned out
// to subscribers. A close frame from the peer keeps its code and reason;
// anything else is an abnormal closure.
func closeEventFrom(err error) CloseEvent {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return CloseEvent{Code: ce.Code, Reason: ce.Text, Clean: true}
	}
	return CloseEvent{Code: CloseAbnormalClosure, Clean: false}
}
