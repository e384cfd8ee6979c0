package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kode4food/buildprops/internal/store"
	"github.com/kode4food/buildprops/pkg/api"
	"github.com/kode4food/buildprops/pkg/log"
)

type (
	// Registry holds every known run together with its property store
	Registry struct {
		notifier  store.Notifier
		persister Persister
		archiver  Archiver
		now       func() time.Time
		runs      map[api.RunID]*entry
		byJob     map[string][]*entry
		mu        sync.RWMutex
	}

	// Persister writes runs and their properties durably
	Persister interface {
		SaveRun(ctx context.Context, snap *Snapshot) error
		LoadRuns(ctx context.Context) ([]*Snapshot, error)
	}

	// Archiver receives runs once they are completed
	Archiver interface {
		ArchiveRun(ctx context.Context, snap *Snapshot) error
	}

	// Snapshot is a point-in-time copy of a run and its properties
	Snapshot struct {
		Run        api.Run        `json:"run"`
		Properties api.Properties `json:"properties"`
	}

	entry struct {
		store   *store.Store
		run     api.Run
		saveMu  sync.Mutex
		writeMu sync.Mutex
	}
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunCompleted = errors.New("run already completed")
	ErrJobRequired  = errors.New("job is required")
)

// NewRegistry creates an empty Registry. Stores it creates publish changes
// to notifier. A nil persister or archiver disables that concern
func NewRegistry(n store.Notifier, p Persister, a Archiver) *Registry {
	return &Registry{
		notifier:  n,
		persister: p,
		archiver:  a,
		now:       time.Now,
		runs:      map[api.RunID]*entry{},
		byJob:     map[string][]*entry{},
	}
}

// Create starts a new active run of job, numbered after the job's latest run
func (r *Registry) Create(ctx context.Context, job string) (*api.Run, error) {
	job = strings.TrimSpace(job)
	if job == "" {
		return nil, ErrJobRequired
	}

	r.mu.Lock()
	number := 1
	if runs := r.byJob[job]; len(runs) > 0 {
		number = runs[len(runs)-1].run.Number + 1
	}
	id := api.NewRunID()
	e := &entry{
		run: api.Run{
			ID:        id,
			Job:       job,
			Number:    number,
			Status:    api.RunActive,
			CreatedAt: r.now(),
		},
		store: store.New(id, r.notifier),
	}
	r.add(e)
	r.mu.Unlock()

	if err := r.save(ctx, e); err != nil {
		return nil, err
	}
	slog.Info("Run created",
		log.RunID(id),
		log.Job(job),
		slog.Int("number", number))
	res := e.run
	return &res, nil
}

// Get returns the run with the given ID
func (r *Registry) Get(id api.RunID) (*api.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	res := e.run
	return &res, nil
}

// Store returns the property store owned by the given run
func (r *Registry) Store(id api.RunID) (*store.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return e.store, nil
}

// Previous returns the run of the same job numbered immediately before the
// given run. It reports false when the run is the job's first
func (r *Registry) Previous(id api.RunID) (*api.Run, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	runs := r.byJob[e.run.Job]
	idx := slices.Index(runs, e)
	if idx <= 0 {
		return nil, false, nil
	}
	res := runs[idx-1].run
	return &res, true, nil
}

// Jobs returns the runs of a job ordered by number
func (r *Registry) Jobs(job string) []api.Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runs := r.byJob[job]
	res := make([]api.Run, len(runs))
	for i, e := range runs {
		res[i] = e.run
	}
	return res
}

// Save persists the run and a snapshot of its properties synchronously
func (r *Registry) Save(ctx context.Context, id api.RunID) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	return r.save(ctx, e)
}

// Update applies fn to the store of an active run and persists the run when
// fn reports a change. Completion waits for a running fn, and fn never runs
// against a completed run
func (r *Registry) Update(
	ctx context.Context, id api.RunID, fn func(*store.Store) bool,
) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}

	e.writeMu.Lock()
	r.mu.RLock()
	done := e.run.IsCompleted()
	r.mu.RUnlock()
	if done {
		e.writeMu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunCompleted, id)
	}
	changed := fn(e.store)
	e.writeMu.Unlock()

	if !changed {
		return nil
	}
	return r.save(ctx, e)
}

// Complete finalizes a run, persists it and hands it to the archiver. The
// store stays readable afterward
func (r *Registry) Complete(
	ctx context.Context, id api.RunID,
) (*api.Run, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	e.writeMu.Lock()
	r.mu.Lock()
	if e.run.IsCompleted() {
		r.mu.Unlock()
		e.writeMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRunCompleted, id)
	}
	e.run.Status = api.RunCompleted
	e.run.CompletedAt = r.now()
	run := e.run
	r.mu.Unlock()
	e.writeMu.Unlock()

	if err := r.save(ctx, e); err != nil {
		return nil, err
	}
	if r.archiver != nil {
		snap := &Snapshot{Run: run, Properties: e.store.Snapshot()}
		if err := r.archiver.ArchiveRun(ctx, snap); err != nil {
			slog.Error("Failed to archive run",
				log.RunID(id),
				log.Error(err))
		}
	}
	slog.Info("Run completed",
		log.RunID(id),
		log.Job(run.Job),
		slog.Int("properties", e.store.Len()))
	return &run, nil
}

// Load restores every persisted run. Restored stores fire no change events
// for their existing contents
func (r *Registry) Load(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	snaps, err := r.persister.LoadRuns(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range snaps {
		if _, ok := r.runs[snap.Run.ID]; ok {
			continue
		}
		st := store.New(snap.Run.ID, r.notifier)
		st.Load(snap.Properties)
		r.add(&entry{run: snap.Run, store: st})
	}
	slog.Info("Runs restored", slog.Int("count", len(snaps)))
	return nil
}

func (r *Registry) add(e *entry) {
	r.runs[e.run.ID] = e
	runs := append(r.byJob[e.run.Job], e)
	slices.SortStableFunc(runs, func(a, b *entry) int {
		return a.run.Number - b.run.Number
	})
	r.byJob[e.run.Job] = runs
}

func (r *Registry) entry(id api.RunID) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return e, nil
}

// save serializes writes per run so that a later save always carries a
// later snapshot
func (r *Registry) save(ctx context.Context, e *entry) error {
	if r.persister == nil {
		return nil
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	r.mu.RLock()
	run := e.run
	r.mu.RUnlock()

	snap := &Snapshot{Run: run, Properties: e.store.Snapshot()}
	if err := r.persister.SaveRun(ctx, snap); err != nil {
		return fmt.Errorf("persist run %s: %w", run.ID, err)
	}
	return nil
}
