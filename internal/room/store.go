package room

import (
	"slices"
	"sync"
)

// Store is the table of live rooms. It hands out room pointers but never the map itself.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewStore returns an empty table.
func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

// Add inserts r. It reports false if a room with the same id is already present.
func (s *Store) Add(r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[r.ID]; exists {
		return false
	}
	s.rooms[r.ID] = r
	return true
}

// Get looks up a room by id.
func (s *Store) Get(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Contains reports whether r itself, not just a room with its id, is in the table.
func (s *Store) Contains(r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[r.ID] == r
}

// Remove deletes r if it is still the room stored under its id.
func (s *Store) Remove(r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[r.ID] != r {
		return false
	}
	delete(s.rooms, r.ID)
	return true
}

// List returns the rooms present now, oldest first.
func (s *Store) List() []*Room {
	s.mu.Lock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	s.mu.Unlock()

	// CreatedAt and ID never change after creation, so reading them unlocked is safe.
	slices.SortFunc(list, func(a, b *Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return list
}

// Len returns the number of rooms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
