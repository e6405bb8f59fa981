package libsession

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport. Tests push inbound frames with deliver and
// simulate network loss with drop.
type fakeTransport struct {
	params  OpenConnectionParams
	onFrame atomic.Pointer[FrameHandler]
	openFn  func(ctx context.Context) error

	mu        sync.Mutex
	written   [][]byte
	closed    bool
	closeErr  error
	closeC    CloseChan
	closeOnce sync.Once
}

func newFakeTransport(params OpenConnectionParams, onFrame FrameHandler) *fakeTransport {
	t := &fakeTransport{params: params, closeC: make(CloseChan)}
	if onFrame != nil {
		t.onFrame.Store(&onFrame)
	}
	return t
}

func (t *fakeTransport) Open(ctx context.Context) error {
	if t.openFn == nil {
		return nil
	}
	return t.openFn(ctx)
}

func (t *fakeTransport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrConnectionClosed
	}
	t.written = append(t.written, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Detach() {
	t.onFrame.Store(nil)
}

func (t *fakeTransport) Close() {
	t.shutdown(ErrTerminated)
}

func (t *fakeTransport) CloseChan() CloseChan {
	return t.closeC
}

func (t *fakeTransport) CloseErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeErr
}

func (t *fakeTransport) drop(err error) {
	t.shutdown(err)
}

func (t *fakeTransport) shutdown(err error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.closeErr = err
		t.mu.Unlock()
		close(t.closeC)
	})
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) deliver(frame string) {
	if h := t.onFrame.Load(); h != nil {
		(*h)([]byte(frame))
	}
}

// sent decodes everything written so far with codec.
func (t *fakeTransport) sent(tb testing.TB, codec FrameCodec) []Frame {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()

	frames := make([]Frame, 0, len(t.written))
	for _, data := range t.written {
		f, err := codec.Decode(data)
		require.NoError(tb, err)
		frames = append(frames, f)
	}
	return frames
}

func (t *fakeTransport) sentNames(tb testing.TB, codec FrameCodec) []string {
	tb.Helper()
	var names []string
	for _, f := range t.sent(tb, codec) {
		names = append(names, f.Name)
	}
	return names
}

// fakeNetwork is a TransportFactory recording every transport it builds. open, when
// set, decides how the n-th dial (0-based) behaves.
type fakeNetwork struct {
	mu         sync.Mutex
	transports []*fakeTransport
	open       func(n int, ctx context.Context) error
	dialed     chan struct{}
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{dialed: make(chan struct{}, 64)}
}

func (n *fakeNetwork) factory(params OpenConnectionParams, onFrame FrameHandler) Transport {
	n.mu.Lock()
	defer n.mu.Unlock()

	t := newFakeTransport(params, onFrame)
	if open := n.open; open != nil {
		idx := len(n.transports)
		t.openFn = func(ctx context.Context) error {
			n.dialed <- struct{}{}
			return open(idx, ctx)
		}
	} else {
		t.openFn = func(context.Context) error {
			n.dialed <- struct{}{}
			return nil
		}
	}
	n.transports = append(n.transports, t)
	return t
}

func (n *fakeNetwork) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transports)
}

func (n *fakeNetwork) get(i int) *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transports[i]
}

func (n *fakeNetwork) last() *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transports[len(n.transports)-1]
}

func (n *fakeNetwork) waitDial(tb testing.TB) {
	tb.Helper()
	select {
	case <-n.dialed:
	case <-time.After(2 * time.Second):
		tb.Fatal("no dial happened")
	}
}

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped atomic.Bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

// manualScheduler records requested delays and runs callbacks only when told to.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t.delay)
	}
	return out
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped.Load() {
			n++
		}
	}
	return n
}

// fire runs the oldest pending timer on the calling goroutine.
func (s *manualScheduler) fire() bool {
	s.mu.Lock()
	var next *manualTimer
	for _, t := range s.timers {
		if !t.fired && !t.stopped.Load() {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()

	if next == nil {
		return false
	}
	next.fn()
	return true
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) listener(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) listener(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

var testSigningKey = []byte("test-secret")

func signedToken(tb testing.TB, exp time.Time) string {
	tb.Helper()
	claims := jwt.MapClaims{"sub": "user-1"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	require.NoError(tb, err)
	return token
}

func validToken(tb testing.TB) TokenProvider {
	return StaticToken(signedToken(tb, time.Now().Add(time.Hour)))
}
