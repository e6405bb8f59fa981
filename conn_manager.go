package libsession

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// connectAttempt is one dial in flight. Concurrent Connect calls share it.
type connectAttempt struct {
	epoch  uint64
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func (a *connectAttempt) finish(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

func (a *connectAttempt) wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manager owns one realtime connection: it authenticates and dials it, keeps it joined
// to one session, reconnects with backoff after drops and fans inbound frames out to
// subscribers. Construction has no side effects; nothing happens until Connect.
//
// Every dial and every live transport is tagged with an epoch. Disconnect and each new
// attempt bump the epoch, which turns late completions, stale frames and old timers
// into no-ops.
type Manager struct {
	cfg       Config
	logger    logger
	tokens    TokenProvider
	validate  TokenValidator
	params    OpenConnectionParamsRepo
	getter    OpenConnectionParamsGetter
	factory   TransportFactory
	dial      Dialer
	codec     FrameCodec
	vocab     Vocabulary
	policy    *BackoffPolicy
	scheduler Scheduler
	now       func() time.Time
	newID     func() string

	events   *ListenerRegistry
	statuses *StatusRegistry
	queue    dispatchQueue

	epoch atomic.Uint64

	mu         sync.Mutex
	state      Status
	binding    SessionBinding
	assembler  *StreamAssembler
	transport  Transport
	attempts   int
	retryTimer Timer
	inflight   *connectAttempt
	lastErr    error
}

func NewManager(cfg Config, tokens TokenProvider, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		tokens:    tokens,
		validate:  ValidateToken,
		codec:     TypePayloadCodec{},
		vocab:     ChatVocabulary(),
		scheduler: realScheduler{},
		now:       time.Now,
		newID:     uuid.NewString,
		assembler: NewStreamAssembler(),
		state:     StatusIdle,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = nopLogger()
	}
	m.logger = m.logger.WithField("type", "conn_manager").WithField("vocabulary", m.vocab.Name)
	m.queue.logger = m.logger

	if m.policy == nil {
		p := NewBackoffPolicy(cfg)
		m.policy = &p
	}
	if m.getter == nil {
		m.getter = ConfigParamsGetter(cfg, m.vocab.SessionField)
	}
	m.params = NewOpenConnectionParamsRepo(m.logger, m.getter)

	if m.factory == nil {
		if m.dial == nil {
			m.dial = FastHTTPDialer(nil)
		}
		m.factory = NewKeepAliveTransportFactory(
			m.logger,
			NewWebsocketFactory(m.logger, m.dial, ErrorAdapters{}),
			cfg.PingInterval,
		)
	}

	m.events = NewListenerRegistry(m.logger)
	m.statuses = NewStatusRegistry(m.logger, StatusIdle)

	return m
}

// Connect brings the connection up and joins key. A zero key keeps the remembered
// session. Connecting to the session already live returns nil at once; while another
// attempt is in flight, Connect waits for that attempt instead of dialing again; the
// reconnect counter is reset either way.
// Auth failures are returned as *AuthError and never retried; transport failures are
// returned as *TransportError after the next retry has been scheduled.
func (m *Manager) Connect(ctx context.Context, key SessionKey) error {
	m.mu.Lock()

	if m.state == StatusConnected && m.transport != nil {
		current, _ := m.binding.Key()
		if key.IsZero() || key == current {
			m.mu.Unlock()
			return nil
		}
		err := m.binding.Join(key, m)
		m.mu.Unlock()
		return err
	}

	if a := m.inflight; a != nil {
		// an explicit connect restarts the retry cycle even when it joins a retry dial
		m.attempts = 0
		m.mu.Unlock()
		m.logger.Debugln("connect already in flight, waiting for it")
		if err := a.wait(ctx); err != nil {
			return err
		}
		if key.IsZero() {
			return nil
		}
		return m.JoinSession(key)
	}

	a, dialCtx := m.beginAttemptLocked(ctx, key, StatusConnecting, true)
	m.mu.Unlock()
	m.queue.drain()

	return m.connect(dialCtx, a)
}

// Disconnect tears everything down and returns to StatusIdle. It interrupts an
// in-flight Connect, cancels a pending retry and leaves the bound session. Safe to
// call in any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.epoch.Add(1)

	m.stopRetryLocked()

	a := m.inflight
	m.inflight = nil

	if t := m.transport; t != nil {
		if err := m.binding.Leave(m); err != nil {
			m.logger.Warnf("leave on disconnect failed: %s", err)
		}
		t.Detach()
		t.Close()
		m.transport = nil
	}
	m.binding.Clear()
	if n := m.assembler.Discard(); n > 0 {
		m.logger.Debugf("discarded %d in-flight streams", n)
	}
	m.attempts = 0
	m.lastErr = nil
	m.setStateLocked(StatusIdle)
	m.mu.Unlock()

	if a != nil {
		a.cancel()
		a.finish(ErrInterrupted)
	}
	m.queue.drain()
}

// JoinSession binds the connection to key, leaving the current session first. While
// offline the key is remembered and joined on the next successful connect.
func (m *Manager) JoinSession(key SessionKey) error {
	if key.IsZero() {
		return ErrNotBound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatusConnected || m.transport == nil {
		m.binding.Retarget(key)
		return nil
	}
	return m.binding.Join(key, m)
}

// LeaveSession leaves the bound session. The local binding is cleared even when the
// leave frame cannot be sent.
func (m *Manager) LeaveSession() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.transport == nil {
		m.binding.Clear()
		return
	}
	if err := m.binding.Leave(m); err != nil {
		m.logger.Warnf("leave failed: %s", err)
	}
}

// SendMessage sends a chat message to the bound session. It returns false, without
// side effects, when not connected or not bound.
func (m *Manager) SendMessage(content string, attachments ...Attachment) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.sendableLocked()
	if !ok {
		return false
	}

	frame, err := m.vocab.messageFrame(key, content, attachments, m.newID())
	if err != nil {
		m.logger.Warnf("cannot build message frame: %s", err)
		return false
	}
	return m.writeFrameLocked(frame) == nil
}

// SendTyping sends a typing indicator with SendMessage's guards.
func (m *Manager) SendTyping(isTyping bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.sendableLocked()
	if !ok {
		return false
	}

	frame, err := m.vocab.typingFrame(key, isTyping)
	if err != nil {
		m.logger.Warnf("cannot build typing frame: %s", err)
		return false
	}
	return m.writeFrameLocked(frame) == nil
}

// SendVoiceMessage sends a voice transcript. Only vocabularies with a voice message
// name support it.
func (m *Manager) SendVoiceMessage(transcript string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.sendableLocked()
	if !ok {
		return false
	}

	frame, err := m.vocab.voiceFrame(key, transcript)
	if err != nil {
		m.logger.Debugf("cannot build voice frame: %s", err)
		return false
	}
	return m.writeFrameLocked(frame) == nil
}

func (m *Manager) On(kind EventKind, listener Listener) *Subscription {
	return m.events.On(kind, listener)
}

func (m *Manager) Off(sub *Subscription) {
	m.events.Off(sub)
}

// OnStatusChange registers fn for status changes and calls it once with the current
// status.
func (m *Manager) OnStatusChange(fn func(Status)) *Subscription {
	m.mu.Lock()
	sub := m.statuses.subscribe(fn)
	current := m.state
	m.queue.push(func() {
		if sub.Active() {
			m.statuses.emitter.call(struct{}{}, fn, current)
		}
	})
	m.mu.Unlock()

	m.queue.drain()
	return sub
}

func (m *Manager) OffStatusChange(sub *Subscription) {
	m.statuses.Unsubscribe(sub)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the remembered session key and whether the server has us joined.
func (m *Manager) Session() (SessionKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binding.Key()
}

// Attempts returns the number of consecutive failed reconnect attempts.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// LastError returns the failure behind the current Reconnecting/Failed state.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) beginAttemptLocked(
	parent context.Context,
	key SessionKey,
	status Status,
	explicit bool,
) (*connectAttempt, context.Context) {
	m.stopRetryLocked()
	if explicit {
		m.attempts = 0
	}

	if t := m.transport; t != nil {
		t.Detach()
		t.Close()
		m.transport = nil
	}
	m.binding.Retarget(key)
	m.binding.Suspend()

	dialCtx, cancel := context.WithCancel(parent)
	a := &connectAttempt{
		epoch:  m.epoch.Add(1),
		parent: parent,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.inflight = a
	m.setStateLocked(status)

	return a, dialCtx
}

func (m *Manager) connect(ctx context.Context, a *connectAttempt) error {
	defer a.cancel()

	token, err := fetchToken(ctx, m.tokens, m.validate, m.now())
	if err != nil {
		return m.fail(a, err, false)
	}

	m.mu.Lock()
	key, _ := m.binding.Key()
	m.mu.Unlock()

	params, err := m.params.Get(ctx, token, key)
	if err != nil {
		return m.fail(a, err, false)
	}

	t := m.factory(params, m.frameHandler(a.epoch))

	openCtx := ctx
	if m.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()
	}

	if err := t.Open(openCtx); err != nil {
		t.Detach()
		t.Close()

		if errors.Is(openCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrConnectTimeout) {
			err = errors.Wrap(ErrConnectTimeout, err.Error())
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return m.fail(a, err, false)
		}
		return m.fail(a, NewTransportError(err, params.URL), true)
	}

	return m.established(a, t)
}

func (m *Manager) established(a *connectAttempt, t Transport) error {
	m.mu.Lock()
	if !m.currentLocked(a) {
		m.mu.Unlock()
		t.Detach()
		t.Close()
		return ErrInterrupted
	}

	m.transport = t
	m.inflight = nil
	m.attempts = 0
	m.lastErr = nil

	rejoined, err := m.binding.Restore(m)
	if err != nil {
		m.logger.Warnf("cannot join session on connect: %s", err)
		m.enqueueEventLocked(ErrorEvent{kind: KindError, Err: err})
	} else if rejoined {
		key, _ := m.binding.Key()
		m.logger.Infof("joined session %s", key)
	}

	m.setStateLocked(StatusConnected)
	m.mu.Unlock()

	go m.watch(t, a.epoch)

	a.finish(nil)
	m.queue.drain()
	return nil
}

// fail resolves a failed attempt. Retryable failures schedule the next attempt; the
// rest move to StatusFailed. A caller-cancelled context ends in StatusDisconnected.
func (m *Manager) fail(a *connectAttempt, err error, retryable bool) error {
	m.mu.Lock()
	if !m.currentLocked(a) {
		m.mu.Unlock()
		return ErrInterrupted
	}

	m.inflight = nil
	m.lastErr = err
	m.logger.Warnf("connect attempt failed: %s", err)

	switch {
	case retryable && a.parent.Err() != nil:
		err = errors.Wrap(ErrInterrupted, a.parent.Err().Error())
		m.lastErr = err
		m.setStateLocked(StatusDisconnected)
	case retryable:
		m.enqueueEventLocked(ErrorEvent{kind: KindError, Err: err})
		m.scheduleRetryLocked(err)
	default:
		m.enqueueEventLocked(ErrorEvent{kind: KindError, Err: err})
		m.setStateLocked(StatusFailed)
	}
	m.mu.Unlock()

	a.finish(err)
	m.queue.drain()
	return err
}

// watch handles the drop of a live transport.
func (m *Manager) watch(t Transport, epoch uint64) {
	<-t.CloseChan()

	m.mu.Lock()
	if m.epoch.Load() != epoch || m.transport != t {
		m.mu.Unlock()
		return
	}

	t.Detach()
	m.transport = nil
	m.epoch.Add(1)

	cause := t.CloseErr()
	if cause == nil {
		cause = ErrConnectionClosed
	}
	err := NewTransportError(cause, url.URL{})
	m.lastErr = err
	m.logger.Warnf("connection dropped: %s", err)

	if n := m.assembler.Discard(); n > 0 {
		m.logger.Infof("discarded %d interrupted streams", n)
	}
	m.binding.Suspend()
	m.enqueueEventLocked(ErrorEvent{kind: KindError, Err: err})

	if m.cfg.MaxReconnectAttempts == 0 {
		m.setStateLocked(StatusDisconnected)
	} else {
		m.scheduleRetryLocked(err)
	}
	m.mu.Unlock()

	m.queue.drain()
}

func (m *Manager) scheduleRetryLocked(cause error) {
	if !m.policy.ShouldRetry(m.attempts, m.cfg.MaxReconnectAttempts) {
		exhausted := &ExhaustionError{Attempts: m.attempts, last: cause}
		m.lastErr = exhausted
		m.logger.Errorf("giving up: %s", exhausted)
		m.setStateLocked(StatusFailed)
		m.enqueueEventLocked(ReconnectFailedEvent{
			Attempts: m.attempts,
			Message:  reconnectFailedNotice,
			Err:      exhausted,
		})
		return
	}

	m.attempts++
	delay := m.policy.NextDelay(m.attempts)
	epoch := m.epoch.Load()

	m.logger.Infof("reconnecting in %s (%d/%d)", delay, m.attempts, m.cfg.MaxReconnectAttempts)
	m.setStateLocked(StatusReconnecting)
	m.retryTimer = m.scheduler.AfterFunc(delay, func() {
		m.retry(epoch)
	})
}

func (m *Manager) retry(epoch uint64) {
	m.mu.Lock()
	if m.epoch.Load() != epoch || m.state != StatusReconnecting || m.inflight != nil {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil

	a, ctx := m.beginAttemptLocked(context.Background(), NoSession, StatusReconnecting, false)
	m.mu.Unlock()
	m.queue.drain()

	_ = m.connect(ctx, a)
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// frameHandler decodes frames of the transport dialed under epoch. Frames are
// processed on the transport's read goroutine, one at a time, so per-kind arrival
// order is kept.
func (m *Manager) frameHandler(epoch uint64) FrameHandler {
	return func(data []byte) {
		frame, err := m.codec.Decode(data)
		if err != nil {
			m.logger.Warnf("dropping frame: %s", err)
			return
		}

		ev, err := m.vocab.decodeEvent(frame)
		if err != nil {
			if ev == nil {
				m.logger.Debugf("ignoring frame: %s", err)
			} else {
				m.logger.Warnf("dropping %s frame: %s", frame.Name, err)
			}
			return
		}

		m.mu.Lock()
		if m.epoch.Load() != epoch {
			m.mu.Unlock()
			return
		}

		switch e := ev.(type) {
		case TutorStartEvent:
			m.assembler.Start(e.ID)
		case TutorChunkEvent:
			e.Index = m.assembler.Append(e.ID, e.Content)
			ev = e
		case TutorCompleteEvent:
			ev = m.assembler.Complete(e.ID)
		}

		m.queue.push(func() {
			if m.epoch.Load() == epoch {
				m.events.Dispatch(ev)
			}
		})
		m.mu.Unlock()

		m.queue.drain()
	}
}

func (m *Manager) currentLocked(a *connectAttempt) bool {
	return m.inflight == a && m.epoch.Load() == a.epoch
}

func (m *Manager) setStateLocked(s Status) {
	if m.state == s {
		return
	}
	m.logger.Infof("status %s -> %s", m.state, s)
	m.state = s
	m.queue.push(func() {
		m.statuses.Publish(s)
	})
}

func (m *Manager) enqueueEventLocked(e Event) {
	m.queue.push(func() {
		m.events.Dispatch(e)
	})
}

func (m *Manager) sendableLocked() (SessionKey, bool) {
	if !m.state.IsLive() || m.transport == nil {
		return NoSession, false
	}
	key, bound := m.binding.Key()
	if !bound {
		return NoSession, false
	}
	return key, true
}

func (m *Manager) writeFrameLocked(f Frame) error {
	if m.transport == nil {
		return ErrNotConnected
	}
	data, err := m.codec.Encode(f)
	if err != nil {
		return err
	}
	if err := m.transport.Write(data); err != nil {
		m.logger.Warnf("cannot send %s: %s", f.Name, err)
		return err
	}
	return nil
}

// emitJoin and emitLeave make the manager the SessionBinding's emitter; m.mu is held.
func (m *Manager) emitJoin(key SessionKey) error {
	frame, err := m.vocab.joinFrame(key)
	if err != nil {
		return err
	}
	return m.writeFrameLocked(frame)
}

func (m *Manager) emitLeave(key SessionKey) error {
	frame, err := m.vocab.leaveFrame(key)
	if err != nil {
		return err
	}
	return m.writeFrameLocked(frame)
}
