package libsession

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	calls   []string
	joinErr error
	leftErr error
}

func (r *recordingEmitter) emitJoin(key SessionKey) error {
	r.calls = append(r.calls, "join:"+key.String())
	return r.joinErr
}

func (r *recordingEmitter) emitLeave(key SessionKey) error {
	r.calls = append(r.calls, "leave:"+key.String())
	return r.leftErr
}

func TestSessionBinding_JoinIsIdempotent(t *testing.T) {
	var b SessionBinding
	em := &recordingEmitter{}

	require.NoError(t, b.Join(StringSessionKey("room-1"), em))
	require.NoError(t, b.Join(StringSessionKey("room-1"), em))

	assert.Equal(t, []string{"join:room-1"}, em.calls)
	key, bound := b.Key()
	assert.Equal(t, StringSessionKey("room-1"), key)
	assert.True(t, bound)
}

func TestSessionBinding_JoinOtherLeavesFirst(t *testing.T) {
	var b SessionBinding
	em := &recordingEmitter{}

	require.NoError(t, b.Join(NumericSessionKey(1), em))
	require.NoError(t, b.Join(NumericSessionKey(2), em))

	assert.Equal(t, []string{"join:1", "leave:1", "join:2"}, em.calls)
}

func TestSessionBinding_JoinRejectsZeroKey(t *testing.T) {
	var b SessionBinding
	em := &recordingEmitter{}

	assert.ErrorIs(t, b.Join(NoSession, em), ErrNotBound)
	assert.Empty(t, em.calls)
}

func TestSessionBinding_FailedJoinRemembersKey(t *testing.T) {
	var b SessionBinding
	em := &recordingEmitter{joinErr: ErrConnectionClosed}

	assert.ErrorIs(t, b.Join(NumericSessionKey(9), em), ErrConnectionClosed)

	key, bound := b.Key()
	assert.Equal(t, NumericSessionKey(9), key)
	assert.False(t, bound)
}

func TestSessionBinding_LeaveAlwaysClears(t *testing.T) {
	var b SessionBinding
	em := &recordingEmitter{leftErr: errors.New("write failed")}

	require.NoError(t, b.Join(StringSessionKey("a"), em))
	assert.Error(t, b.Leave(em))

	key, bound := b.Key()
	assert.True(t, key.IsZero())
	assert.False(t, bound)

	// unbound leave emits nothing
	assert.NoError(t, b.Leave(em))
	assert.Equal(t, []string{"join:a", "leave:a"}, em.calls)
}

func TestSessionBinding_SuspendAndRestore(t *testing.T) {
	var b SessionBinding
	em := &recordingEmitter{}

	require.NoError(t, b.Join(StringSessionKey("room-1"), em))
	b.Suspend()

	rejoined, err := b.Restore(em)
	require.NoError(t, err)
	assert.True(t, rejoined)

	rejoined, err = b.Restore(em)
	require.NoError(t, err)
	assert.False(t, rejoined)

	assert.Equal(t, []string{"join:room-1", "join:room-1"}, em.calls)
}

func TestSessionBinding_RetargetWhileOffline(t *testing.T) {
	var b SessionBinding
	em := &recordingEmitter{}

	b.Retarget(NumericSessionKey(3))
	b.Retarget(NoSession)

	key, bound := b.Key()
	assert.Equal(t, NumericSessionKey(3), key)
	assert.False(t, bound)

	rejoined, err := b.Restore(em)
	require.NoError(t, err)
	assert.True(t, rejoined)

	b.Clear()
	rejoined, err = b.Restore(em)
	require.NoError(t, err)
	assert.False(t, rejoined)
	assert.Equal(t, []string{"join:3"}, em.calls)
}
