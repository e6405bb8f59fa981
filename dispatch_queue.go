package libsession

import "sync"

// dispatchQueue delivers notifications in the order they were queued without holding
// any manager lock while callbacks run. Items are pushed under the manager lock, so
// queue order is mutation order. Whoever finds the queue idle drains it; calls made
// from inside a callback only enqueue, and the outer drain picks them up once the
// running callback returns.
type dispatchQueue struct {
	mu       sync.Mutex
	items    []func()
	draining bool
	logger   logger
}

func (q *dispatchQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
}

func (q *dispatchQueue) drain() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true

	for len(q.items) > 0 {
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		q.run(fn)

		q.mu.Lock()
	}

	q.draining = false
	q.mu.Unlock()
}

func (q *dispatchQueue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil && q.logger != nil {
			q.logger.Errorf("notification panicked: %v", r)
		}
	}()
	fn()
}
