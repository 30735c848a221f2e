package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStore_CreateReturnsDistinctIDs(t *testing.T) {
	s := New(Config{})

	seen := make(map[uuid.UUID]bool)
	for range 100 {
		id := s.Create()
		assert.False(t, seen[id], "duplicate session id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 100, s.Len())
}

func TestStore_CreatedSessionIsEmpty(t *testing.T) {
	s := New(Config{})
	id := s.Create()

	msgs, err := s.History(id)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	s := New(Config{})
	id := s.Create()

	for i := range 5 {
		require.NoError(t, s.Append(id, Message{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)}))
	}

	msgs, err := s.History(id)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
	}
}

func TestStore_UnknownSessionIsNotFound(t *testing.T) {
	s := New(Config{})
	s.Create() // an unrelated live session

	unknown := uuid.New()

	_, err := s.History(unknown)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Append(unknown, Message{Role: RoleUser, Content: "hello"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Serialize(unknown)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_HistoryReturnsSnapshot(t *testing.T) {
	s := New(Config{})
	id := s.Create()
	require.NoError(t, s.Append(id, Message{Role: RoleUser, Content: "original"}))

	msgs, err := s.History(id)
	require.NoError(t, err)
	msgs[0].Content = "mutated"

	again, err := s.History(id)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestStore_CapacityEvictsLRU(t *testing.T) {
	s := New(Config{Capacity: 2})

	first := s.Create()
	second := s.Create()
	// Touch first so second becomes the LRU victim.
	_, err := s.History(first)
	require.NoError(t, err)

	third := s.Create()
	assert.Equal(t, 2, s.Len())

	_, err = s.History(second)
	assert.ErrorIs(t, err, ErrNotFound, "LRU session should be evicted")

	_, err = s.History(first)
	assert.NoError(t, err)
	_, err = s.History(third)
	assert.NoError(t, err)
}

func TestStore_EvictionSkipsSerializedSession(t *testing.T) {
	s := New(Config{Capacity: 1})

	busy := s.Create()
	release, err := s.Serialize(busy)
	require.NoError(t, err)
	defer release()

	s.Create() // would evict busy if it weren't locked

	_, err = s.History(busy)
	assert.NoError(t, err, "session with in-flight request must not be evicted")
}

// A successful Serialize must guarantee the session stays live until
// release, even when eviction runs between the lookup and the lock
// acquisition.
func TestStore_SerializeHoldsSessionUnderEvictionChurn(t *testing.T) {
	s := New(Config{Capacity: 1})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.Create()
			}
		}
	}()

	for i := range 20_000 {
		id := s.Create()
		release, err := s.Serialize(id)
		if err != nil {
			// Evicted before the lock was acquired; Serialize reported it.
			require.ErrorIs(t, err, ErrNotFound)
			continue
		}
		appendErr := s.Append(id, Message{Role: RoleUser, Content: "x"})
		release()
		require.NoError(t, appendErr,
			"iteration %d: Serialize succeeded but Append failed", i)
	}

	close(stop)
	wg.Wait()
}

func TestStore_TTLExpirySkipsSerializedSession(t *testing.T) {
	s := New(Config{TTL: time.Minute})

	current := time.Now()
	s.now = func() time.Time { return current }

	id := s.Create()
	release, err := s.Serialize(id)
	require.NoError(t, err)

	// The stream outlives the TTL; a reader's lazy expiry must not remove
	// the session while the stream holds it.
	current = current.Add(2 * time.Minute)
	_, err = s.History(id)
	require.NoError(t, err, "session with in-flight request must not expire")

	require.NoError(t, s.Append(id, Message{Role: RoleAssistant, Content: "done"}))
	release()

	msgs, err := s.History(id)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestStore_TTLExpiresIdleSessions(t *testing.T) {
	s := New(Config{TTL: time.Minute})

	current := time.Now()
	s.now = func() time.Time { return current }

	id := s.Create()
	require.NoError(t, s.Append(id, Message{Role: RoleUser, Content: "hi"}))

	current = current.Add(30 * time.Second)
	_, err := s.History(id)
	require.NoError(t, err, "session within TTL must survive")

	// History touched the session, so the idle clock restarted.
	current = current.Add(61 * time.Second)
	_, err = s.History(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestStore_SerializeBlocksSameSessionOnly(t *testing.T) {
	s := New(Config{})
	a := s.Create()
	b := s.Create()

	releaseA, err := s.Serialize(a)
	require.NoError(t, err)

	// A different session is not serialized against a.
	done := make(chan struct{})
	go func() {
		defer close(done)
		releaseB, serErr := s.Serialize(b)
		assert.NoError(t, serErr)
		releaseB()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serialize on a distinct session blocked")
	}

	// The same session waits for release.
	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		releaseA2, serErr := s.Serialize(a)
		assert.NoError(t, serErr)
		releaseA2()
	}()
	select {
	case <-acquired:
		t.Fatal("Serialize on the same session did not block")
	case <-time.After(50 * time.Millisecond):
	}

	releaseA()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Serialize not released")
	}
}

func TestStore_ConcurrentDistinctSessions(t *testing.T) {
	s := New(Config{})

	const sessions = 16
	const appends = 50

	ids := make([]uuid.UUID, sessions)
	for i := range ids {
		ids[i] = s.Create()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range appends {
				assert.NoError(t, s.Append(id, Message{Role: RoleUser, Content: fmt.Sprintf("%d", i)}))
				_, err := s.History(id)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		msgs, err := s.History(id)
		require.NoError(t, err)
		assert.Len(t, msgs, appends)
	}
}
