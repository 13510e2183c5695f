package webhook

import (
	"sync"
	"time"
)

// seenTTL bounds how long a delivered event id is remembered. WorkOS
// redelivers within minutes; anything older is handled by idempotency in the
// synchronizers, not by this store.
const seenTTL = 15 * time.Minute

// SeenStore remembers recently processed event ids so immediate redeliveries
// can be acknowledged without re-running the synchronizers. Best-effort and
// per-process: a miss is always safe because every handler is idempotent.
type SeenStore interface {
	// MarkSeen records the event id as processed.
	MarkSeen(id string)
	// Seen reports whether the event id was processed recently.
	Seen(id string) bool
}

type seenEntry struct {
	expiresAt time.Time
}

// MemorySeenStore is an in-memory SeenStore. Injected rather than
// module-level so tests get a fresh store without a process restart.
type MemorySeenStore struct {
	mu   sync.RWMutex
	m    map[string]seenEntry
	nowF func() time.Time
}

// NewMemorySeenStore returns a new in-memory seen-event store.
func NewMemorySeenStore() *MemorySeenStore {
	return &MemorySeenStore{
		m:    make(map[string]seenEntry),
		nowF: time.Now,
	}
}

// MarkSeen records the event id for seenTTL. Expired entries are swept
// opportunistically so the map stays bounded under sustained traffic.
func (s *MemorySeenStore) MarkSeen(id string) {
	if id == "" {
		return
	}
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.m) > 4096 {
		for k, e := range s.m {
			if !e.expiresAt.After(now) {
				delete(s.m, k)
			}
		}
	}
	s.m[id] = seenEntry{expiresAt: now.Add(seenTTL)}
}

// Seen reports whether id was marked within seenTTL.
func (s *MemorySeenStore) Seen(id string) bool {
	if id == "" {
		return false
	}
	s.mu.RLock()
	e, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, id)
		s.mu.Unlock()
		return false
	}
	return true
}
