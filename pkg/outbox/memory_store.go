package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps outbox events in process memory. Events that failed are
// offered again until they reach maxRetries, then evicted and handed to the
// drop handler; sent events are dropped.
type MemoryStore struct {
	mu         sync.Mutex
	events     map[int64]*Event
	nextID     int64
	maxRetries int
	onDrop     func(Event)
	now        func() time.Time
}

type StoreOption func(*MemoryStore)

// OnDrop sets a callback for events evicted after their last failed attempt.
// It runs without the store lock held.
func OnDrop(fn func(Event)) StoreOption { return func(s *MemoryStore) { s.onDrop = fn } }

func NewMemoryStore(maxRetries int, opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		events:     make(map[int64]*Event),
		nextID:     1,
		maxRetries: maxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue stores ev as pending and returns it with its id assigned.
func (s *MemoryStore) Enqueue(ev Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.nextID
	s.nextID++
	if ev.MessageID == "" {
		ev.MessageID = uuid.NewString()
	}
	ev.CreatedAt = s.now().UTC()
	ev.Status = StatusPending
	s.events[ev.ID] = &ev
	return ev
}

func (s *MemoryStore) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ids := make([]int64, 0, len(s.events))
	for id, ev := range s.events {
		if s.claimable(ev, now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > batchSize {
		ids = ids[:batchSize]
	}

	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		ev := s.events[id]
		ev.Status = StatusInProgress
		ev.RelayID = relayID
		ev.LeaseUntil = now.Add(lease)
		out = append(out, *ev)
	}
	return out, nil
}

func (s *MemoryStore) claimable(ev *Event, now time.Time) bool {
	switch ev.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return true
	case StatusInProgress:
		return now.After(ev.LeaseUntil)
	}
	return false
}

func (s *MemoryStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.events, id)
	}
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	ev, ok := s.events[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	ev.Status = StatusFailed
	ev.RetryCount++
	ev.LastError = &errMsg
	if ev.RetryCount < s.maxRetries {
		s.mu.Unlock()
		return nil
	}
	dropped := *ev
	delete(s.events, id)
	s.mu.Unlock()

	if s.onDrop != nil {
		s.onDrop(dropped)
	}
	return nil
}

func (s *MemoryStore) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	until := s.now().Add(lease)
	for _, id := range ids {
		if ev, ok := s.events[id]; ok && ev.RelayID == relayID && ev.Status == StatusInProgress {
			ev.LeaseUntil = until
		}
	}
	return nil
}

// Pending counts events not yet sent, including failed ones that will be
// retried.
func (s *MemoryStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *MemoryStore) get(id int64) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return Event{}, false
	}
	return *ev, true
}
