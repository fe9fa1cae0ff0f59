package testonce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrStoreClosed is returned when a value is put into a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Closer is implemented by values that must be released when the store
// holding them closes.
type Closer interface {
	Close(ctx context.Context) error
}

// Store is a hierarchical key-value scope owned by the test binary.
// Values implementing Closer or io.Closer are closed when the store closes.
type Store struct {
	name   string
	parent *Store

	mu       sync.Mutex
	children []*Store
	keys     []string // insertion order of entries
	entries  map[string]any
	closed   bool
}

var (
	root     *Store
	rootOnce sync.Once
)

// Root returns the process-wide root scope. It is closed by Run once all
// tests have finished.
func Root() *Store {
	rootOnce.Do(func() {
		root = NewStore("root")
	})
	return root
}

// NewStore creates a new top-level store.
func NewStore(name string) *Store {
	return &Store{
		name:    name,
		entries: make(map[string]any),
	}
}

// Name returns the name of the store.
func (s *Store) Name() string {
	return s.name
}

// Parent returns the enclosing store, or nil for a top-level store.
func (s *Store) Parent() *Store {
	return s.parent
}

// Root returns the top-most ancestor of s.
func (s *Store) Root() *Store {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Child returns the child store with the given name, creating it on first use.
func (s *Store) Child(name string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.children {
		if c.name == name {
			return c
		}
	}

	c := NewStore(name)
	c.parent = s
	// A child of a closed store is closed too.
	c.closed = s.closed
	s.children = append(s.children, c)
	return c
}

// Put stores value under key, replacing any previous value.
// The previous value is not closed.
func (s *Store) Put(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("failed to put %q into %s: %w", key, s.name, ErrStoreClosed)
	}
	s.putLocked(key, value)
	return nil
}

func (s *Store) putLocked(key string, value any) {
	if _, exists := s.entries[key]; exists {
		s.removeKeyLocked(key)
	}
	s.keys = append(s.keys, key)
	s.entries[key] = value
}

// PutIfAbsent stores value under key unless the key is already present in
// s. It returns the value held under key afterwards and whether value was
// stored.
func (s *Store) PutIfAbsent(key string, value any) (actual any, stored bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, fmt.Errorf("failed to put %q into %s: %w", key, s.name, ErrStoreClosed)
	}
	if v, ok := s.entries[key]; ok {
		return v, false, nil
	}
	s.putLocked(key, value)
	return value, true, nil
}

// Get returns the value stored under key in s or in any of its ancestors.
func (s *Store) Get(key string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		v, ok := cur.entries[key]
		cur.mu.Unlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// GetOrCompute returns the value stored under key in s, computing and
// storing it with fn when absent. fn runs with the store locked.
func (s *Store) GetOrCompute(key string, fn func() (any, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.entries[key]; ok {
		return v, nil
	}
	if s.closed {
		return nil, fmt.Errorf("failed to compute %q in %s: %w", key, s.name, ErrStoreClosed)
	}

	v, err := fn()
	if err != nil {
		return nil, err
	}
	s.putLocked(key, v)
	return v, nil
}

// Remove deletes key from s without closing its value.
func (s *Store) Remove(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	s.removeKeyLocked(key)
	return v, true
}

// removeIfSame deletes key from s only while it still holds value.
func (s *Store) removeIfSame(key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.entries[key]; !ok || v != value {
		return false
	}
	s.removeKeyLocked(key)
	return true
}

func (s *Store) removeKeyLocked(key string) {
	delete(s.entries, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Closed reports whether the store has been closed.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the children of s, most recent first, and then the values
// of s in reverse insertion order. Only the first call does any work.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	children := s.children
	keys := append([]string(nil), s.keys...)
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = s.entries[k]
	}
	s.mu.Unlock()

	// Closers run without the lock held so that they may use the store.
	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for i := len(keys) - 1; i >= 0; i-- {
		if err := closeValue(ctx, values[i]); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %q in %s: %w", keys[i], s.name, err))
		}
	}

	return errors.Join(errs...)
}

func closeValue(ctx context.Context, v any) error {
	switch c := v.(type) {
	case Closer:
		return c.Close(ctx)
	case io.Closer:
		return c.Close()
	default:
		return nil
	}
}
