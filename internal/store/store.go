package store

import (
	"reflect"
	"sync"

	"github.com/kode4food/buildprops/internal/notify"
	"github.com/kode4food/buildprops/pkg/api"
)

type (
	// Store is the property map of exactly one run. All operations are
	// individually atomic, and change events are fired after the write is
	// visible to readers
	Store struct {
		notifier Notifier
		props    map[string]any
		owner    api.RunID
		mu       sync.Mutex
	}

	// Notifier receives change events from a Store
	Notifier interface {
		Fire(notify.Event)
	}
)

// New creates an empty Store owned by the given run. A nil notifier
// disables change events
func New(owner api.RunID, n Notifier) *Store {
	return &Store{
		owner:    owner,
		notifier: n,
		props:    map[string]any{},
	}
}

// Owner returns the identity of the run that owns the Store
func (s *Store) Owner() api.RunID {
	return s.owner
}

// Contains reports whether key is present
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.props[key]
	return ok
}

// ContainsAll reports whether every key is present. An empty key list is
// trivially satisfied
func (s *Store) ContainsAll(keys []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if _, ok := s.props[k]; !ok {
			return false
		}
	}
	return true
}

// Get returns the current value of key, if present
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.props[key]
	return v, ok
}

// Len returns the number of stored properties
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.props)
}

// Set stores value under key unconditionally and returns the previous value.
// A change event is fired when the key was absent or the value differs
func (s *Store) Set(key string, value any) (any, bool) {
	s.mu.Lock()
	old, had := s.props[key]
	s.props[key] = value
	s.mu.Unlock()

	if !had || !Equal(old, value) {
		s.fire(key, old, had, value)
	}
	return old, had
}

// SetIfAbsent stores value only when key is absent. When the key is already
// present the existing value is returned and nothing is fired
func (s *Store) SetIfAbsent(key string, value any) (any, bool) {
	s.mu.Lock()
	if old, had := s.props[key]; had {
		s.mu.Unlock()
		return old, true
	}
	s.props[key] = value
	s.mu.Unlock()

	s.fire(key, nil, false, value)
	return nil, false
}

// Snapshot returns a point-in-time copy of all properties ordered by key
func (s *Store) Snapshot() api.Properties {
	s.mu.Lock()
	res := make(api.Properties, 0, len(s.props))
	for k, v := range s.props {
		res = append(res, api.Property{Key: k, Value: v})
	}
	s.mu.Unlock()
	return res.Sorted()
}

// Load replaces the Store's contents with props without firing events. It
// restores a persisted run
func (s *Store) Load(props api.Properties) {
	next := make(map[string]any, len(props))
	for _, p := range props {
		next[p.Key] = p.Value
	}
	s.mu.Lock()
	s.props = next
	s.mu.Unlock()
}

func (s *Store) fire(key string, old any, had bool, value any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Fire(notify.Event{
		Owner:  s.owner,
		Key:    key,
		Old:    old,
		HadOld: had,
		New:    value,
	})
}

// Equal reports whether two property values are the same. Values on the
// timeline compare by position when they share a kind, regardless of
// location
func Equal(a, b any) bool {
	ta, okA := api.TimeOf(a)
	tb, okB := api.TimeOf(b)
	if okA || okB {
		ka, _ := api.KindOf(a)
		kb, _ := api.KindOf(b)
		return okA && okB && ka == kb && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
