package wait

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/buildprops/pkg/api"
	"github.com/kode4food/buildprops/pkg/log"
)

type (
	// Manager owns the active coordinators of a process, keyed by wait ID,
	// and records each wait's outcome
	Manager struct {
		deps     Dependencies
		recorder Recorder
		waits    map[api.WaitID]*entry
		mu       sync.Mutex
	}

	// Recorder persists wait status so that pending waits can be resumed
	// after a restart
	Recorder interface {
		SaveWait(ctx context.Context, st *api.WaitStatus) error
		LoadWaits(ctx context.Context) ([]*api.WaitStatus, error)
	}

	entry struct {
		coord  *Coordinator
		final  chan struct{}
		status api.WaitStatus
	}
)

// NewManager creates a Manager. A nil recorder keeps wait status in memory
// only. Finished waits are forgotten once deps.Retention has passed
func NewManager(deps Dependencies, rec Recorder) *Manager {
	if deps.Retention <= 0 {
		deps.Retention = DefaultRetention
	}
	return &Manager{
		deps:     deps,
		recorder: rec,
		waits:    map[api.WaitID]*entry{},
	}
}

// Start begins waiting for keys on a run. A zero or negative timeout waits
// forever. The returned status may already be terminal when the keys were
// present from the start
func (m *Manager) Start(
	ctx context.Context, runID api.RunID, keys []string,
	timeout time.Duration,
) (*api.WaitStatus, error) {
	now := m.deps.Scheduler.Now()
	st := api.WaitStatus{
		ID:        api.NewWaitID(),
		RunID:     runID,
		Keys:      slices.Clone(keys),
		State:     api.WaitPending,
		CreatedAt: now,
	}
	if timeout > 0 {
		st.Deadline = now.Add(timeout)
	}
	if st.Keys == nil {
		st.Keys = []string{}
	}
	if err := m.save(ctx, &st); err != nil {
		return nil, err
	}

	e := m.register(st, timeout)
	slog.Debug("Wait started",
		log.WaitID(st.ID),
		log.RunID(runID),
		log.Keys(keys))
	e.coord.Start()
	return m.Status(st.ID)
}

// Status returns the current status of a wait
func (m *Manager) Status(id api.WaitID) (*api.WaitStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.waits[id]
	if !ok {
		return nil, ErrWaitNotFound
	}
	res := e.status
	return &res, nil
}

// Wait blocks until the wait completes or ctx ends, then returns its status
func (m *Manager) Wait(
	ctx context.Context, id api.WaitID,
) (*api.WaitStatus, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-e.final:
		return m.Status(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel completes a pending wait with a failure carrying cause. Cancelling
// a completed wait returns its existing status
func (m *Manager) Cancel(
	id api.WaitID, cause string,
) (*api.WaitStatus, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	if e.coord != nil {
		var reason error
		if cause != "" {
			reason = errors.New(cause)
		}
		e.coord.Cancel(reason)
	}
	<-e.final
	return m.Status(id)
}

// Resume restores pending waits from the recorder and re-evaluates every
// pending wait immediately
func (m *Manager) Resume(ctx context.Context) error {
	if m.recorder != nil {
		recs, err := m.recorder.LoadWaits(ctx)
		if err != nil {
			return err
		}
		for _, st := range recs {
			m.restore(st)
		}
	}

	m.mu.Lock()
	entries := slices.Collect(maps.Values(m.waits))
	m.mu.Unlock()

	for _, e := range entries {
		if e.coord != nil {
			e.coord.Resume()
		}
	}
	return nil
}

// Close stops every pending wait without recording an outcome, leaving the
// persisted records pending for a later Resume
func (m *Manager) Close() {
	m.mu.Lock()
	var coords []*Coordinator
	for _, e := range m.waits {
		if e.coord != nil && e.status.State == api.WaitPending {
			coords = append(coords, e.coord)
		}
	}
	m.mu.Unlock()

	for _, c := range coords {
		c.Cancel(ErrShutdown)
	}
	m.deps.Scheduler.CancelPrefix([]string{taskRoot})
}

func (m *Manager) restore(st *api.WaitStatus) {
	m.mu.Lock()
	_, ok := m.waits[st.ID]
	m.mu.Unlock()
	if ok {
		return
	}

	if st.IsDone() {
		final := make(chan struct{})
		close(final)
		e := &entry{status: *st, final: final}
		m.mu.Lock()
		m.waits[st.ID] = e
		m.mu.Unlock()
		m.evictAfter(e, st.CompletedAt)
		return
	}

	var timeout time.Duration
	if !st.Deadline.IsZero() {
		timeout = max(st.Deadline.Sub(m.deps.Scheduler.Now()), time.Nanosecond)
	}
	m.register(*st, timeout)
	slog.Info("Wait restored",
		log.WaitID(st.ID),
		log.RunID(st.RunID),
		log.Keys(st.Keys))
}

func (m *Manager) register(st api.WaitStatus, timeout time.Duration) *entry {
	e := &entry{status: st, final: make(chan struct{})}
	e.coord = NewCoordinator(m.deps, st.ID, st.RunID, st.Keys, timeout,
		func(err error) { m.finish(e, err) },
	)
	m.mu.Lock()
	m.waits[st.ID] = e
	m.mu.Unlock()
	return e
}

func (m *Manager) finish(e *entry, err error) {
	defer close(e.final)

	if errors.Is(err, ErrShutdown) {
		slog.Debug("Wait detached",
			log.WaitID(e.status.ID),
			log.RunID(e.status.RunID))
		return
	}

	m.mu.Lock()
	e.status.CompletedAt = m.deps.Scheduler.Now()
	if err == nil {
		e.status.State = api.WaitSucceeded
	} else {
		e.status.State = api.WaitFailed
		e.status.Error = err.Error()
		e.status.TimedOut = errors.Is(err, ErrWaitTimeout)
	}
	st := e.status
	m.mu.Unlock()

	attrs := []any{log.WaitID(st.ID), log.RunID(st.RunID)}
	switch {
	case err == nil:
		slog.Debug("Wait satisfied", attrs...)
	case st.TimedOut:
		slog.Warn("Wait timed out", append(attrs, log.Error(err))...)
	default:
		slog.Info("Wait failed", append(attrs, log.Error(err))...)
	}

	if err := m.save(context.Background(), &st); err != nil {
		slog.Error("Failed to record wait outcome",
			log.WaitID(st.ID),
			log.Error(err))
	}
	m.evictAfter(e, st.CompletedAt)
}

// evictAfter forgets a finished wait once the retention has passed since
// it finished
func (m *Manager) evictAfter(e *entry, finished time.Time) {
	id := e.status.ID
	path := []string{taskRoot, string(id), "evict"}
	at := finished.Add(m.deps.Retention)
	m.deps.Scheduler.Schedule(path, at, func() (time.Time, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.waits[id] == e {
			delete(m.waits, id)
		}
		return time.Time{}, nil
	})
}

func (m *Manager) entry(id api.WaitID) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.waits[id]
	if !ok {
		return nil, ErrWaitNotFound
	}
	return e, nil
}

func (m *Manager) save(ctx context.Context, st *api.WaitStatus) error {
	if m.recorder == nil {
		return nil
	}
	return m.recorder.SaveWait(ctx, st)
}
