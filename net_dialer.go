package libsession

import (
	"context"
	"net/http"
	"time"

	fastws "github.com/fasthttp/websocket"
	gorillaws "github.com/gorilla/websocket"
)

// wsConn is the subset of a WebSocket connection WsConnection needs. Both the fasthttp
// and the gorilla connections satisfy it.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	SetCloseHandler(h func(code int, text string) error)
	Close() error
}

// Dialer opens a WebSocket connection.
type Dialer func(ctx context.Context, url string, header http.Header) (wsConn, *http.Response, error)

// FastHTTPDialer dials with github.com/fasthttp/websocket. A nil d uses its default dialer.
func FastHTTPDialer(d *fastws.Dialer) Dialer {
	if d == nil {
		d = fastws.DefaultDialer
	}
	return func(ctx context.Context, url string, header http.Header) (wsConn, *http.Response, error) {
		conn, resp, err := d.DialContext(ctx, url, header)
		if conn == nil {
			return nil, resp, err
		}
		return conn, resp, err
	}
}

// GorillaDialer dials with github.com/gorilla/websocket. A nil d uses its default dialer.
func GorillaDialer(d *gorillaws.Dialer) Dialer {
	if d == nil {
		d = gorillaws.DefaultDialer
	}
	return func(ctx context.Context, url string, header http.Header) (wsConn, *http.Response, error) {
		conn, resp, err := d.DialContext(ctx, url, header)
		if conn == nil {
			return nil, resp, err
		}
		return conn, resp, err
	}
}
