package libsession

// sessionEmitter writes join/leave frames for a SessionBinding.
type sessionEmitter interface {
	emitJoin(key SessionKey) error
	emitLeave(key SessionKey) error
}

// SessionBinding tracks the single room a connection belongs to. It remembers the key
// across drops (bound == false) so the manager can restore membership on reconnect.
// It is not safe for concurrent use; the manager guards it with its own lock.
type SessionBinding struct {
	key   SessionKey
	bound bool
}

// Key returns the remembered key and whether the server currently has us joined.
func (b *SessionBinding) Key() (SessionKey, bool) {
	return b.key, b.bound
}

// Join binds to key, leaving the previous session first. Joining the key already
// bound is a no-op.
func (b *SessionBinding) Join(key SessionKey, em sessionEmitter) error {
	if key.IsZero() {
		return ErrNotBound
	}
	if b.bound && b.key == key {
		return nil
	}
	if b.bound {
		// the leave outcome does not block the join
		_ = b.Leave(em)
	}

	if err := em.emitJoin(key); err != nil {
		b.key = key
		b.bound = false
		return err
	}

	b.key = key
	b.bound = true
	return nil
}

// Leave emits a leave frame when bound and always forgets the key.
func (b *SessionBinding) Leave(em sessionEmitter) error {
	key, bound := b.key, b.bound
	b.key = NoSession
	b.bound = false

	if !bound {
		return nil
	}
	return em.emitLeave(key)
}

// Retarget remembers key without talking to the server, for use while offline.
func (b *SessionBinding) Retarget(key SessionKey) {
	if key.IsZero() || b.key == key {
		return
	}
	b.key = key
	b.bound = false
}

// Suspend marks the membership as lost with the transport while keeping the key.
func (b *SessionBinding) Suspend() {
	b.bound = false
}

// Restore re-joins the remembered key after a reconnect. It reports whether a join
// frame was emitted.
func (b *SessionBinding) Restore(em sessionEmitter) (bool, error) {
	if b.key.IsZero() || b.bound {
		return false, nil
	}
	if err := em.emitJoin(b.key); err != nil {
		return false, err
	}
	b.bound = true
	return true, nil
}

// Clear forgets the key without emitting anything.
func (b *SessionBinding) Clear() {
	b.key = NoSession
	b.bound = false
}
