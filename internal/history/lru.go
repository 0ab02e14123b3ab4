package history

import (
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is how many finished runs are remembered.
const DefaultCapacity = 10

// LRUStore is an in-memory cache of the most recently saved runs. It is
// never persisted. Loading a record does not change its position.
type LRUStore struct {
	cache *lru.Cache[string, *Record]
}

// NewLRUStore creates a store holding up to cap records.
// Capacity must be >= 1.
func NewLRUStore(cap int) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	cache, err := lru.New[string, *Record](cap)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &LRUStore{cache: cache}
}

// Save inserts or replaces rec, evicting the oldest record when the store
// is full.
func (s *LRUStore) Save(rec *Record) error {
	s.cache.Add(rec.ID, rec)
	return nil
}

// Load returns the record for runID.
func (s *LRUStore) Load(runID string) (*Record, error) {
	rec, ok := s.cache.Peek(runID)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// List returns the records, most recently saved first.
func (s *LRUStore) List() []*Record {
	out := s.cache.Values()
	slices.Reverse(out)
	return out
}
