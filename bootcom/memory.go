package bootcom

// MemStore is an in-memory Store. It backs tests and mock devices; real
// devices persist to battery-backed RAM or flash.
type MemStore struct {
	m map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string][]byte)}
}

func (s *MemStore) Get(key string) ([]byte, bool) {
	v, ok := s.m[key]
	return v, ok
}

func (s *MemStore) Set(key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.m[key] = cp
	return nil
}

func (s *MemStore) Clear(key string) error {
	delete(s.m, key)
	return nil
}
