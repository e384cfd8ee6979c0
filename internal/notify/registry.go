package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kode4food/buildprops/pkg/api"
	"github.com/kode4food/buildprops/pkg/log"
)

type (
	// Registry holds the set of active change listeners
	Registry struct {
		listeners sync.Map // map[uint64]Listener
		nextID    atomic.Uint64
		count     atomic.Int64
	}

	// Listener is invoked for every property change in the process
	Listener func(Event) error

	// Event describes a single property change on one run's store
	Event struct {
		Old    any
		New    any
		Owner  api.RunID
		Key    string
		HadOld bool
	}

	// Release deregisters a listener. Calling it more than once is a no-op
	Release func()
)

var ErrListenerPanicked = errors.New("listener panicked")

// NewRegistry creates an empty listener registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a listener and returns the function that removes it
func (r *Registry) Add(l Listener) Release {
	id := r.nextID.Add(1)
	r.listeners.Store(id, l)
	r.count.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, ok := r.listeners.LoadAndDelete(id); ok {
				r.count.Add(-1)
			}
		})
	}
}

// Len returns the number of registered listeners
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Fire delivers ev to every registered listener on the calling goroutine. A
// listener that fails or panics is logged and does not affect the others
func (r *Registry) Fire(ev Event) {
	r.listeners.Range(func(k, v any) bool {
		if err := invoke(v.(Listener), ev); err != nil {
			slog.Error("Property listener failed",
				slog.Uint64("listener", k.(uint64)),
				log.RunID(ev.Owner),
				log.Key(ev.Key),
				log.Error(err))
		}
		return true
	})
}

// ForOwner wraps l so that it only sees changes to the given run's keys. An
// empty key list matches every key
func ForOwner(owner api.RunID, keys []string, l Listener) Listener {
	var match map[string]struct{}
	if len(keys) > 0 {
		match = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			match[k] = struct{}{}
		}
	}
	return func(ev Event) error {
		if ev.Owner != owner {
			return nil
		}
		if match != nil {
			if _, ok := match[ev.Key]; !ok {
				return nil
			}
		}
		return l(ev)
	}
}

func invoke(l Listener, ev Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanicked, rec)
		}
	}()
	return l(ev)
}
