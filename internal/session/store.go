package session

// Store is the persistence abstraction for session state. The Registry uses
// Store for all reads and writes; an in-memory implementation is the
// default, and nothing beyond the terminal summary needs to survive it.
type Store interface {
	Get(id ID) (*State, bool)
	Set(s *State)
	Delete(id ID)
	ListIDs() []ID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	sessions map[ID]*State
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[ID]*State)}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(id ID) (*State, bool) {
	st, ok := s.sessions[id]
	return st, ok
}

// Set implements Store.Set.
func (s *InMemoryStore) Set(st *State) {
	s.sessions[st.ID] = st
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(id ID) {
	delete(s.sessions, id)
}

// ListIDs implements Store.ListIDs.
func (s *InMemoryStore) ListIDs() []ID {
	ids := make([]ID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
