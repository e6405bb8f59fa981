package libsession

import "time"

type Option func(*Manager)

func WithLogger(l logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithTransportFactory replaces the default WebSocket transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithDialer keeps the WebSocket transport but dials with d.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dial = d
	}
}

func WithCodec(c FrameCodec) Option {
	return func(m *Manager) {
		m.codec = c
	}
}

func WithVocabulary(v Vocabulary) Option {
	return func(m *Manager) {
		m.vocab = v
	}
}

func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		m.scheduler = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithTokenValidator(v TokenValidator) Option {
	return func(m *Manager) {
		m.validate = v
	}
}

func WithBackoffPolicy(p BackoffPolicy) Option {
	return func(m *Manager) {
		m.policy = &p
	}
}

func WithParamsGetter(g OpenConnectionParamsGetter) Option {
	return func(m *Manager) {
		m.getter = g
	}
}

// WithMessageIDGenerator sets how client_id values of outgoing messages are made.
func WithMessageIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}
