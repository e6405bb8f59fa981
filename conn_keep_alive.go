package libsession

import (
	"context"
	"sync"
	"time"
)

// keepAliveTransport pings the wrapped transport every interval while it is open.
type keepAliveTransport struct {
	Transport
	interval time.Duration
	logger   logger

	startOnce sync.Once
}

// Open opens the inner transport and, on success, starts the ping routine. The routine
// stops when the transport closes.
func (k *keepAliveTransport) Open(ctx context.Context) error {
	if err := k.Transport.Open(ctx); err != nil {
		return err
	}

	pinger, ok := k.Transport.(Pinger)
	if !ok {
		k.logger.Warnln("transport cannot ping, keep-alive disabled")
		return nil
	}

	k.startOnce.Do(func() {
		go k.run(pinger)
	})
	return nil
}

func (k *keepAliveTransport) run(pinger Pinger) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	closeC := k.Transport.CloseChan()
	for {
		select {
		case <-closeC:
			return
		case <-ticker.C:
			if err := pinger.Ping(nil); err != nil {
				k.logger.Debugf("ping failed: %s", err)
			}
		}
	}
}

// NewKeepAliveTransportFactory wraps factory so every transport it builds sends a ping
// each interval. A non-positive interval returns factory unchanged.
func NewKeepAliveTransportFactory(
	logger logger,
	factory TransportFactory,
	interval time.Duration,
) TransportFactory {
	if interval <= 0 {
		return factory
	}
	return func(params OpenConnectionParams, onFrame FrameHandler) Transport {
		return &keepAliveTransport{
			Transport: factory(params, onFrame),
			interval:  interval,
			logger:    logger.WithField("subtype", "keepAliveTransport"),
		}
	}
}
