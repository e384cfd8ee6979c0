package wait_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kode4food/buildprops/internal/notify"
	"github.com/kode4food/buildprops/internal/scheduler"
	"github.com/kode4food/buildprops/internal/store"
	"github.com/kode4food/buildprops/internal/wait"
	"github.com/kode4food/buildprops/pkg/api"
)

type (
	fakeScheduler struct {
		now     time.Time
		tasks   map[string]scheduled
		history map[string]scheduler.TaskFunc
		count   int
		mu      sync.Mutex
	}

	scheduled struct {
		at time.Time
		fn scheduler.TaskFunc
	}

	fixture struct {
		reg    *notify.Registry
		sched  *fakeScheduler
		stores map[api.RunID]*store.Store
		mu     sync.Mutex
	}

	memRecorder struct {
		waits map[api.WaitID]api.WaitStatus
		mu    sync.Mutex
	}
)

var errNoRun = errors.New("run not found")

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		now:     time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC),
		tasks:   map[string]scheduled{},
		history: map[string]scheduler.TaskFunc{},
	}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeScheduler) Schedule(
	path []string, at time.Time, fn scheduler.TaskFunc,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.Join(path, "/")
	s.tasks[key] = scheduled{at: at, fn: fn}
	s.history[key] = fn
	s.count++
}

func (s *fakeScheduler) Cancel(path []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, strings.Join(path, "/"))
}

func (s *fakeScheduler) CancelPrefix(prefix []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := strings.Join(prefix, "/")
	for key := range s.tasks {
		if key == p || strings.HasPrefix(key, p+"/") {
			delete(s.tasks, key)
		}
	}
}

func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *fakeScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *fakeScheduler) At(id api.WaitID, kind string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks["wait/"+string(id)+"/"+kind]
	return t.at, ok
}

// Fire runs the pending task for a wait, rescheduling it if it asks
func (s *fakeScheduler) Fire(id api.WaitID, kind string) bool {
	key := "wait/" + string(id) + "/" + kind
	s.mu.Lock()
	t, ok := s.tasks[key]
	delete(s.tasks, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	next, _ := t.fn()
	if !next.IsZero() {
		s.mu.Lock()
		s.tasks[key] = scheduled{at: next, fn: t.fn}
		s.mu.Unlock()
	}
	return true
}

// FireStale runs a task even if it was already cancelled, as a timer that
// fired just before its cancellation would
func (s *fakeScheduler) FireStale(id api.WaitID, kind string) {
	s.mu.Lock()
	fn := s.history["wait/"+string(id)+"/"+kind]
	s.mu.Unlock()
	if fn != nil {
		_, _ = fn()
	}
}

func newFixture() *fixture {
	return &fixture{
		reg:    notify.NewRegistry(),
		sched:  newFakeScheduler(),
		stores: map[api.RunID]*store.Store{},
	}
}

func (f *fixture) store(id api.RunID) *store.Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stores[id]
	if !ok {
		st = store.New(id, f.reg)
		f.stores[id] = st
	}
	return st
}

func (f *fixture) drop(id api.RunID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stores, id)
}

func (f *fixture) lookup(id api.RunID) (wait.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stores[id]
	if !ok {
		return nil, errNoRun
	}
	return st, nil
}

func (f *fixture) deps() wait.Dependencies {
	return wait.Dependencies{
		Lookup:       f.lookup,
		Listeners:    f.reg,
		Scheduler:    f.sched,
		PollInterval: time.Minute,
	}
}

func newMemRecorder() *memRecorder {
	return &memRecorder{waits: map[api.WaitID]api.WaitStatus{}}
}

func (r *memRecorder) SaveWait(_ context.Context, st *api.WaitStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits[st.ID] = *st
	return nil
}

func (r *memRecorder) LoadWaits(context.Context) ([]*api.WaitStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*api.WaitStatus
	for _, st := range r.waits {
		res = append(res, &st)
	}
	return res, nil
}

func (r *memRecorder) get(id api.WaitID) (api.WaitStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.waits[id]
	return st, ok
}
