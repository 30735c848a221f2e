package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config bounds the store. Zero values mean unlimited.
type Config struct {
	// Capacity is the maximum number of live sessions. When exceeded, the
	// least recently used session is evicted. 0 = unbounded.
	Capacity int

	// TTL is how long an idle session survives. Expiry is lazy: an expired
	// session is removed on the next access and reported as ErrNotFound.
	// 0 = sessions live for the process lifetime.
	TTL time.Duration
}

// entry is one session's state. writeMu serializes multi-step operations
// (Serialize). Lock order: writeMu then s.mu; code holding s.mu may only
// TryLock writeMu, never block on it.
type entry struct {
	id       uuid.UUID
	messages []Message
	lastUsed time.Time
	elem     *list.Element
	writeMu  sync.Mutex
}

// Store is an in-memory session store with LRU eviction and TTL expiry.
//
// The zero value is not usable; call New.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
	lru      *list.List // front = most recently used; values are *entry
	capacity int
	ttl      time.Duration

	// now is a test seam for TTL expiry.
	now func() time.Time
}

// New creates a Store with the given bounds.
func New(cfg Config) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*entry),
		lru:      list.New(),
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		now:      time.Now,
	}
}

// Create allocates a fresh session with an empty history and returns its
// identifier. Never fails; identifiers are collision-free for practical
// purposes (UUIDv4).
func (s *Store) Create() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	e := &entry{id: id, lastUsed: s.now()}
	e.elem = s.lru.PushFront(e)
	s.sessions[id] = e

	s.evictLocked()
	return id
}

// Append adds a message to the end of the session's history.
// Returns ErrNotFound if the session does not exist or has expired.
func (s *Store) Append(id uuid.UUID, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	e.messages = append(e.messages, msg)
	s.touchLocked(e)
	return nil
}

// History returns a snapshot of the session's messages in insertion order.
// The returned slice is a copy; mutating it does not affect the store.
// Returns ErrNotFound if the session does not exist or has expired.
func (s *Store) History(id uuid.UUID) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	s.touchLocked(e)

	snapshot := make([]Message, len(e.messages))
	copy(snapshot, e.messages)
	return snapshot, nil
}

// Serialize acquires the session's write lock, serializing concurrent
// multi-step operations (read history → call provider → append reply) on
// the same session. The returned release function must be called exactly
// once. Distinct sessions are never serialized against each other.
//
// Returns ErrNotFound if the session does not exist or has expired.
func (s *Store) Serialize(id uuid.UUID) (release func(), err error) {
	s.mu.Lock()
	e, lookupErr := s.lookupLocked(id)
	s.mu.Unlock()
	if lookupErr != nil {
		return nil, lookupErr
	}

	// Lock outside the store lock so a long-running stream on one session
	// never blocks operations on other sessions.
	e.writeMu.Lock()

	// Eviction may have removed the entry between the lookup above and the
	// lock acquisition. Re-check under the store lock; once we hold writeMu
	// with the entry still present, eviction and expiry skip it.
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		e.writeMu.Unlock()
		return nil, ErrNotFound
	}
	s.touchLocked(e)
	s.mu.Unlock()

	return e.writeMu.Unlock, nil
}

// Len returns the number of live sessions. Expired sessions that have not
// been accessed yet are still counted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// lookupLocked finds a session and lazily expires it. Caller holds s.mu.
func (s *Store) lookupLocked(id uuid.UUID) (*entry, error) {
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && s.now().Sub(e.lastUsed) > s.ttl {
		// An in-flight Serialize holds writeMu; the session is actively in
		// use, so expiry must not pull it out from under the stream.
		if e.writeMu.TryLock() {
			e.writeMu.Unlock()
			s.removeLocked(e)
			return nil, ErrNotFound
		}
		return e, nil
	}
	return e, nil
}

// touchLocked marks a session as recently used. Caller holds s.mu.
func (s *Store) touchLocked(e *entry) {
	e.lastUsed = s.now()
	s.lru.MoveToFront(e.elem)
}

// evictLocked removes least recently used sessions until the store is
// within capacity. Sessions with an in-flight Serialize are skipped so an
// active stream is never pulled out from under its request. Caller holds s.mu.
func (s *Store) evictLocked() {
	if s.capacity <= 0 {
		return
	}
	for elem := s.lru.Back(); elem != nil && len(s.sessions) > s.capacity; {
		prev := elem.Prev()
		e := elem.Value.(*entry)
		if e.writeMu.TryLock() {
			e.writeMu.Unlock()
			s.removeLocked(e)
		}
		elem = prev
	}
}

func (s *Store) removeLocked(e *entry) {
	s.lru.Remove(e.elem)
	delete(s.sessions, e.id)
}
