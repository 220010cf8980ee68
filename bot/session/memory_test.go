package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsDefaultSession(t *testing.T) {
	m := NewMemoryManager(0)
	sess := m.Get(100)
	require.Equal(t, StateNone, sess.State)
	require.Empty(t, sess.Pending)
	require.False(t, m.InProgress(100))
}

func TestChatIsolation(t *testing.T) {
	m := NewMemoryManager(0)

	m.SetState(1, StateAskNumber)
	m.SetPending(1, PendingNumber, "94712345678")
	m.SetState(2, StateAskPin)

	require.Equal(t, StateAskNumber, m.Get(1).State)
	require.Equal(t, StateAskPin, m.Get(2).State)

	// Mutating chat 1 never leaks into chat 2.
	m.Clear(1)
	require.Equal(t, StateNone, m.Get(1).State)
	require.Equal(t, StateAskPin, m.Get(2).State)
	_, ok := m.Pending(2, PendingNumber)
	require.False(t, ok)
}

func TestClearResetsStateAndPending(t *testing.T) {
	m := NewMemoryManager(0)

	m.SetState(7, StateAskMessage)
	m.SetPending(7, PendingNumber, "94712345678")
	require.True(t, m.InProgress(7))

	m.Clear(7)
	require.False(t, m.InProgress(7))
	_, ok := m.Pending(7, PendingNumber)
	require.False(t, ok)

	// Clearing an idle chat is a no-op.
	m.Clear(7)
	require.Equal(t, StateNone, m.Get(7).State)
}

func TestGetReturnsCopyOfPending(t *testing.T) {
	m := NewMemoryManager(0)
	m.SetState(3, StateAskMessage)
	m.SetPending(3, PendingNumber, "94712345678")

	sess := m.Get(3)
	sess.Pending[PendingNumber] = "mutated"

	v, ok := m.Pending(3, PendingNumber)
	require.True(t, ok)
	require.Equal(t, "94712345678", v)
}

func TestSessionExpiry(t *testing.T) {
	m := newMemoryManager(time.Minute)
	current := time.Unix(1000, 0)
	m.now = func() time.Time { return current }

	m.SetState(5, StateWaitUploadFile)
	require.True(t, m.InProgress(5))

	current = current.Add(2 * time.Minute)
	require.False(t, m.InProgress(5), "expired session must read as idle")
	require.Equal(t, StateNone, m.Get(5).State)
}
