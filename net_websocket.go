package libsession

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

const (
	sendQueueSize = 64
	writeTimeout  = time.Second
)

type (
	ErrAdapter func(conn wsConn, resp *http.Response, err error) error

	ErrorAdapters struct {
		OnDial ErrAdapter
	}

	// WsConnection is a Transport over a WebSocket. Inbound text and binary frames go
	// to the FrameHandler; pings are answered with pongs; writes go through a single
	// writer goroutine fed by a bounded queue.
	WsConnection struct {
		errAdapters     ErrorAdapters
		params          OpenConnectionParams
		logger          logger
		dial            Dialer
		conn            wsConn
		onFrame         atomic.Pointer[FrameHandler]
		closeChan       CloseChan
		closeOnce       sync.Once
		closeReason     error
		closeReasonOnce sync.Once
		closeReasonMu   sync.RWMutex
		send            chan Message
		quit            chan struct{}
		quitOnce        sync.Once
		opened          atomic.Bool
	}
)

func NewWebsocketConnection(
	logger logger,
	dial Dialer,
	params OpenConnectionParams,
	onFrame FrameHandler,
	errorHandlers ErrorAdapters,
) *WsConnection {
	w := &WsConnection{
		errAdapters: errorHandlers,
		params:      params,
		dial:        dial,
		send:        make(chan Message, sendQueueSize),
		quit:        make(chan struct{}),
		closeChan:   make(CloseChan),
		logger:      logger.WithField("net", "ws_connection"),
	}
	if onFrame != nil {
		w.onFrame.Store(&onFrame)
	}
	return w
}

// NewWebsocketFactory returns a TransportFactory producing WsConnections.
func NewWebsocketFactory(
	logger logger,
	dial Dialer,
	errorHandlers ErrorAdapters,
) TransportFactory {
	return func(params OpenConnectionParams, onFrame FrameHandler) Transport {
		return NewWebsocketConnection(logger, dial, params, onFrame, errorHandlers)
	}
}

// Open dials the endpoint. ctx bounds the dial only; the connection then lives until
// Close or a read/write failure.
func (w *WsConnection) Open(ctx context.Context) error {
	target := w.params.URL
	conn, resp, err := w.dial(ctx, target.String(), w.params.Header)

	if err = w.handleDialError(ctx, conn, resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s", redactedURL(target), err)
		if conn != nil {
			_ = conn.Close()
		}
		w.setCloseReason(err)
		w.safeClose()
		return err
	}

	w.logger.Debugf("success opening connection to %s", redactedURL(target))
	w.conn = conn
	w.opened.Store(true)

	conn.SetPingHandler(func(appData string) error {
		w.logger.Debugln("<= [PING]")
		if err := w.enqueue(NewPongMessage([]byte(appData))); err != nil {
			w.logger.Debugf("cannot answer ping: %s", err)
		}
		return nil
	})

	conn.SetPongHandler(func(string) error {
		w.logger.Debugln("<= [PONG]")
		return nil
	})

	conn.SetCloseHandler(func(code int, text string) error {
		w.logger.Debugf("<= [CLOSE] %d %s", code, text)
		w.setCloseReason(errors.Wrapf(ErrConnectionClosed, "closed by peer with code %d %s", code, text))
		_ = conn.WriteControl(int(CloseMessage), normalClosePayload, time.Now().Add(writeTimeout))
		return nil
	})

	go w.read()
	go w.write()

	return nil
}

// Write queues a text frame. It fails instead of blocking when the queue is full.
func (w *WsConnection) Write(data []byte) error {
	return w.enqueue(NewDataMessage(data))
}

// Ping queues a ping control frame.
func (w *WsConnection) Ping(data []byte) error {
	return w.enqueue(NewPingMessage(data))
}

func (w *WsConnection) enqueue(m Message) error {
	select {
	case <-w.closeChan:
		return ErrConnectionClosed
	case <-w.quit:
		return ErrConnectionClosed
	default:
	}

	select {
	case w.send <- m:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (w *WsConnection) Detach() {
	w.onFrame.Store(nil)
}

// Close flushes frames already queued, then closes the connection.
func (w *WsConnection) Close() {
	w.setCloseReason(ErrTerminated)
	w.quitOnce.Do(func() { close(w.quit) })
	if !w.opened.Load() {
		w.safeClose()
	}
}

func (w *WsConnection) CloseChan() CloseChan {
	return w.closeChan
}

func (w *WsConnection) CloseErr() error {
	w.closeReasonMu.RLock()
	defer w.closeReasonMu.RUnlock()
	return w.closeReason
}

func (w *WsConnection) read() {
	defer w.safeClose()

	for {
		messageType, bts, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closeChan:
				w.setCloseReason(ErrTerminated)
			default:
				w.logger.Errorf("error occurred on websocket read: %s", err)
				w.setCloseReason(errors.Wrap(ErrConnectionClosed, "error occurred on websocket read: "+err.Error()))
			}
			return
		}

		w.logger.Debugf("<= [%s] %s", MessageType(messageType), bts)
		if !MessageType(messageType).IsData() {
			continue
		}
		if h := w.onFrame.Load(); h != nil {
			(*h)(bts)
		}
	}
}

func (w *WsConnection) write() {
	defer w.safeClose()

	for {
		select {
		case <-w.closeChan:
			return
		case <-w.quit:
			w.flush()
			return
		case msg := <-w.send:
			if err := w.writeMessage(msg); err != nil {
				return
			}
		}
	}
}

func (w *WsConnection) flush() {
	for {
		select {
		case msg := <-w.send:
			if err := w.writeMessage(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (w *WsConnection) writeMessage(msg Message) error {
	deadline := time.Now().Add(writeTimeout)

	var err error
	if msg.Type.IsControl() {
		w.logger.Debugf("=> [%s]", msg.Type)
		err = w.conn.WriteControl(int(msg.Type), msg.Data, deadline)
	} else {
		w.logger.Debugf("=> [%s] %s", msg.Type, msg.Data)
		_ = w.conn.SetWriteDeadline(deadline)
		err = w.conn.WriteMessage(int(msg.Type), msg.Data)
	}

	if err != nil {
		w.logger.Errorf("error occurred on websocket write: %s", err)
		w.setCloseReason(errors.Wrap(ErrConnectionClosed, "error occurred on websocket write: "+err.Error()))
	}
	return err
}

func (w *WsConnection) safeClose() {
	w.closeOnce.Do(w.close)
}

func (w *WsConnection) close() {
	close(w.closeChan)
	if w.conn == nil {
		return
	}
	_ = w.conn.WriteControl(int(CloseMessage), normalClosePayload, time.Now().Add(writeTimeout))
	_ = w.conn.Close()
}

func (w *WsConnection) setCloseReason(err error) {
	w.closeReasonOnce.Do(func() {
		w.closeReasonMu.Lock()
		w.closeReason = err
		w.closeReasonMu.Unlock()
	})
}

func (w *WsConnection) handleDialError(ctx context.Context, conn wsConn, resp *http.Response, err error) error {
	if w.errAdapters.OnDial != nil {
		return w.errAdapters.OnDial(conn, resp, err)
	}
	return classifyDialError(ctx, resp, err)
}

func classifyDialError(ctx context.Context, resp *http.Response, err error) error {
	// 1. HTTP errors first
	var msg string

	if resp != nil && err != nil {
		if resp.Body != nil {
			bts, readErr := io.ReadAll(resp.Body)
			if readErr == nil {
				msg = string(bts)
			}
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return errors.Wrap(ErrRateLimit, msg)
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewAuthError(errors.Wrapf(ErrUnauthorized, "status %d %s", resp.StatusCode, msg))
		}
	}

	// 2. Deadline
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(ErrConnectTimeout, err.Error())
	}

	// 3. Network errors
	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	return nil
}
