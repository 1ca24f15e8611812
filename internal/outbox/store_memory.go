package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps outbox rows in a slice. Used by unit tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []memoryEntry
}

type memoryEntry struct {
	Entry
	published bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	payload, err := marshalPayload(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, memoryEntry{Entry: Entry{
		ID:          uuid.New(),
		AggregateID: event.AggregateID,
		EventType:   event.EventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}})
	return nil
}

func (s *MemoryStore) FetchUnpublished(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.published {
			continue
		}
		out = append(out, e.Entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.entries {
		if marked[s.entries[i].ID] {
			s.entries[i].published = true
		}
	}
	return nil
}

// Unpublished reports how many rows still await publication.
func (s *MemoryStore) Unpublished() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if !e.published {
			n++
		}
	}
	return n
}
