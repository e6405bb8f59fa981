package libsession

import (
	"container/list"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

type callback[T any] func(T)

// Subscription is the handle returned by every On call. Go funcs cannot be compared,
// so removal goes through the handle instead of the callback value.
type Subscription struct {
	active atomic.Bool
	cancel func()
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}

type listenerEntry[V any] struct {
	sub *Subscription
	fn  callback[V]
}

// EventEmitterCallback maps keys to ordered callback lists. Registration and removal
// are O(1). Emit runs over a snapshot, so callbacks may subscribe or unsubscribe while
// being dispatched; a subscription removed mid-dispatch is skipped from then on.
// Registering the same func twice yields two subscriptions and two calls per event.
type EventEmitterCallback[K comparable, V any] struct {
	listeners map[K]*list.List
	lock      sync.RWMutex
	logger    logger
}

func NewEventEmitter[K comparable, V any](logger logger) *EventEmitterCallback[K, V] {
	if logger == nil {
		logger = nopLogger()
	}
	return &EventEmitterCallback[K, V]{
		listeners: make(map[K]*list.List),
		logger:    logger,
	}
}

// On registers listener for event and returns its subscription.
func (e *EventEmitterCallback[K, V]) On(event K, listener callback[V]) *Subscription {
	e.lock.Lock()
	defer e.lock.Unlock()

	l, ok := e.listeners[event]
	if !ok {
		l = list.New()
		e.listeners[event] = l
	}

	sub := &Subscription{}
	sub.active.Store(true)
	elem := l.PushBack(&listenerEntry[V]{sub: sub, fn: listener})

	sub.cancel = func() {
		e.lock.Lock()
		defer e.lock.Unlock()

		if current, ok := e.listeners[event]; ok && current == l {
			l.Remove(elem)
			if l.Len() == 0 {
				delete(e.listeners, event)
			}
		}
	}
	return sub
}

// Off removes sub. Removing twice, or removing nil, is a no-op.
func (e *EventEmitterCallback[K, V]) Off(sub *Subscription) {
	if sub == nil || !sub.active.CompareAndSwap(true, false) {
		return
	}
	sub.cancel()
}

// Emit calls every listener of event synchronously, in registration order. A panicking
// listener is logged and does not prevent delivery to the rest.
func (e *EventEmitterCallback[K, V]) Emit(event K, data V) {
	for _, entry := range e.snapshot(event) {
		if !entry.sub.active.Load() {
			continue
		}
		e.call(event, entry.fn, data)
	}
}

// Len returns the number of listeners registered for event.
func (e *EventEmitterCallback[K, V]) Len(event K) int {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if l, ok := e.listeners[event]; ok {
		return l.Len()
	}
	return 0
}

// Close deactivates and drops every listener.
func (e *EventEmitterCallback[K, V]) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	for _, l := range e.listeners {
		for elem := l.Front(); elem != nil; elem = elem.Next() {
			elem.Value.(*listenerEntry[V]).sub.active.Store(false)
		}
	}
	e.listeners = make(map[K]*list.List)
}

func (e *EventEmitterCallback[K, V]) snapshot(event K) []*listenerEntry[V] {
	e.lock.RLock()
	defer e.lock.RUnlock()

	l, ok := e.listeners[event]
	if !ok {
		return nil
	}

	entries := make([]*listenerEntry[V], 0, l.Len())
	for elem := l.Front(); elem != nil; elem = elem.Next() {
		entries = append(entries, elem.Value.(*listenerEntry[V]))
	}
	return entries
}

func (e *EventEmitterCallback[K, V]) call(event K, fn callback[V], data V) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("listener for %v panicked: %v\n%s", event, r, debug.Stack())
		}
	}()
	fn(data)
}

// ListenerRegistry is the typed pub/sub table of inbound events.
type ListenerRegistry struct {
	emitter *EventEmitterCallback[EventKind, Event]
}

func NewListenerRegistry(logger logger) *ListenerRegistry {
	if logger == nil {
		logger = nopLogger()
	}
	return &ListenerRegistry{
		emitter: NewEventEmitter[EventKind, Event](logger.WithField("type", "listener_registry")),
	}
}

func (r *ListenerRegistry) On(kind EventKind, listener Listener) *Subscription {
	return r.emitter.On(kind, callback[Event](listener))
}

func (r *ListenerRegistry) Off(sub *Subscription) {
	r.emitter.Off(sub)
}

// Dispatch delivers e to the listeners of its kind.
func (r *ListenerRegistry) Dispatch(e Event) {
	r.emitter.Emit(e.Kind(), e)
}

func (r *ListenerRegistry) Len(kind EventKind) int {
	return r.emitter.Len(kind)
}

func (r *ListenerRegistry) Close() {
	r.emitter.Close()
}

// StatusRegistry fans out connection status changes and remembers the last one, so
// new subscribers are never blind to the present state.
type StatusRegistry struct {
	emitter *EventEmitterCallback[struct{}, Status]

	mu      sync.Mutex
	current Status
}

func NewStatusRegistry(logger logger, initial Status) *StatusRegistry {
	if logger == nil {
		logger = nopLogger()
	}
	return &StatusRegistry{
		emitter: NewEventEmitter[struct{}, Status](logger.WithField("type", "status_registry")),
		current: initial,
	}
}

// Subscribe registers fn and invokes it once with the current status.
func (r *StatusRegistry) Subscribe(fn func(Status)) *Subscription {
	sub := r.subscribe(fn)
	r.emitter.call(struct{}{}, fn, r.Current())
	return sub
}

func (r *StatusRegistry) subscribe(fn func(Status)) *Subscription {
	return r.emitter.On(struct{}{}, fn)
}

func (r *StatusRegistry) Unsubscribe(sub *Subscription) {
	r.emitter.Off(sub)
}

// Publish records s and notifies subscribers.
func (r *StatusRegistry) Publish(s Status) {
	r.mu.Lock()
	r.current = s
	r.mu.Unlock()

	r.emitter.Emit(struct{}{}, s)
}

func (r *StatusRegistry) Current() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *StatusRegistry) Close() {
	r.emitter.Close()
}
