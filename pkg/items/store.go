// Package items holds the in-memory item collection served by the API.
package items

import "sync"

// Item is a stored entry. IDs are assigned by the Store.
type Item struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Store is an ordered, concurrency-safe collection of items.
// The next id is one more than the largest id ever stored, so ids are never reused.
type Store struct {
	mu    sync.RWMutex
	items []Item
	maxID uint32
}

// NewStore creates a store holding a copy of seed, in order.
func NewStore(seed ...Item) *Store {
	s := &Store{items: make([]Item, 0, len(seed))}
	for _, it := range seed {
		s.items = append(s.items, it)
		if it.ID > s.maxID {
			s.maxID = it.ID
		}
	}
	return s
}

// NewSeededStore creates a store holding the example item.
func NewSeededStore() *Store {
	return NewStore(Item{ID: 1, Name: "Example Item", Description: "This is an example item"})
}

// List returns a snapshot of all items in insertion order.
func (s *Store) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Create appends a new item and returns it with its assigned id.
func (s *Store) Create(name, description string) Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxID++
	it := Item{ID: s.maxID, Name: name, Description: description}
	s.items = append(s.items, it)
	return it
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
