package libsession

import (
	"context"
)

type (
	CloseChan chan struct{}

	// FrameHandler receives every inbound data frame, in arrival order, on the
	// transport's read goroutine.
	FrameHandler func(data []byte)

	// Transport is one realtime connection owned by a single Manager.
	Transport interface {
		// Open dials and returns once the connection is usable or ctx is done.
		Open(ctx context.Context) error
		// Write queues data for sending. It never blocks.
		Write(data []byte) error
		// Detach stops frame delivery to the handler. Call it before Close so
		// teardown does not fire stray events.
		Detach()
		// Close tears the connection down. Safe to call more than once.
		Close()
		// CloseChan is closed once the connection is gone, for whatever reason.
		CloseChan() CloseChan
		// CloseErr explains why the connection closed; nil while open.
		CloseErr() error
	}

	// Pinger is implemented by transports that can send keep-alive pings.
	Pinger interface {
		Ping(data []byte) error
	}

	TransportFactory func(params OpenConnectionParams, onFrame FrameHandler) Transport
)
