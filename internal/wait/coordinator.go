package wait

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kode4food/buildprops/internal/notify"
	"github.com/kode4food/buildprops/internal/scheduler"
	"github.com/kode4food/buildprops/pkg/api"
)

type (
	// Coordinator waits for a set of keys to be present on one run's store.
	// It moves from idle to waiting to completed, and completion happens
	// exactly once
	Coordinator struct {
		deps     Dependencies
		done     chan struct{}
		err      error
		onDone   func(error)
		id       api.WaitID
		owner    api.RunID
		keys     []string
		releases []func()
		timeout  time.Duration
		mu       sync.Mutex
		started  bool
		finished bool
	}

	// Dependencies are the collaborators a Coordinator needs
	Dependencies struct {
		Lookup       Lookup
		Listeners    Listeners
		Scheduler    Scheduler
		PollInterval time.Duration
		Retention    time.Duration
	}

	// Lookup resolves the store of a run
	Lookup func(api.RunID) (Store, error)

	// Store is the part of a property store that a wait evaluates
	Store interface {
		ContainsAll(keys []string) bool
	}

	// Listeners registers change listeners
	Listeners interface {
		Add(notify.Listener) notify.Release
	}

	// Scheduler runs the timeout and poll tasks
	Scheduler interface {
		Now() time.Time
		Schedule(path []string, at time.Time, fn scheduler.TaskFunc)
		Cancel(path []string)
		CancelPrefix(prefix []string)
	}
)

const (
	// DefaultPollInterval is used when Dependencies leave PollInterval unset
	DefaultPollInterval = 10 * time.Minute

	// DefaultRetention is how long a Manager keeps a finished wait when
	// Dependencies leave Retention unset
	DefaultRetention = time.Hour

	taskRoot = "wait"
)

var (
	ErrWaitTimeout      = errors.New("timed out waiting for properties")
	ErrWaitCancelled    = errors.New("wait cancelled")
	ErrStoreUnavailable = errors.New("property store unavailable")
	ErrWaitNotFound     = errors.New("wait not found")
	ErrShutdown         = errors.New("wait manager shut down")
)

// LookupOf adapts a resolver that returns a concrete store type
func LookupOf[S Store](fn func(api.RunID) (S, error)) Lookup {
	return func(id api.RunID) (Store, error) {
		st, err := fn(id)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

// NewCoordinator creates an idle Coordinator. A zero or negative timeout
// waits forever. onDone, if provided, is invoked once with the outcome
func NewCoordinator(
	deps Dependencies, id api.WaitID, owner api.RunID, keys []string,
	timeout time.Duration, onDone func(error),
) *Coordinator {
	if deps.PollInterval <= 0 {
		deps.PollInterval = DefaultPollInterval
	}
	return &Coordinator{
		deps:    deps,
		id:      id,
		owner:   owner,
		keys:    keys,
		timeout: timeout,
		onDone:  onDone,
		done:    make(chan struct{}),
	}
}

// ID returns the Coordinator's identifier
func (c *Coordinator) ID() api.WaitID {
	return c.id
}

// Start evaluates the predicate and, when it does not already hold, installs
// the timeout, the change listener and the poll task in that order. Calling
// Start again has no effect
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started || c.finished {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	if c.check() {
		return
	}

	if c.timeout > 0 {
		path := c.taskPath("timeout")
		at := c.deps.Scheduler.Now().Add(c.timeout)
		c.deps.Scheduler.Schedule(path, at, c.timeoutTask)
		c.hold(func() { c.deps.Scheduler.Cancel(path) })
	}

	listener := notify.ForOwner(c.owner, c.keys, func(notify.Event) error {
		c.check()
		return nil
	})
	c.hold(c.deps.Listeners.Add(listener))

	path := c.taskPath("poll")
	at := c.deps.Scheduler.Now().Add(c.deps.PollInterval)
	c.deps.Scheduler.Schedule(path, at, c.pollTask)
	c.hold(func() { c.deps.Scheduler.Cancel(path) })

	// a key set between the first check and the listener install
	c.check()
}

// Resume re-evaluates the predicate immediately, starting the Coordinator
// if it has not been started yet
func (c *Coordinator) Resume() {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		c.Start()
		return
	}
	c.check()
}

// Cancel completes the wait with a failure. A nil cause reports plain
// cancellation. It returns false if the wait had already completed
func (c *Coordinator) Cancel(cause error) bool {
	if cause == nil {
		return c.complete(ErrWaitCancelled)
	}
	if errors.Is(cause, ErrWaitCancelled) {
		return c.complete(cause)
	}
	return c.complete(fmt.Errorf("%w: %w", ErrWaitCancelled, cause))
}

// Done returns a channel that is closed once the wait completes
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the outcome of a completed wait. It returns nil while the wait
// is still pending and after a successful completion
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// IsDone reports whether the wait has completed
func (c *Coordinator) IsDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Wait blocks until the wait completes or ctx ends
func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) check() bool {
	if c.IsDone() {
		return true
	}
	st, err := c.deps.Lookup(c.owner)
	if err != nil {
		c.complete(fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
		return true
	}
	if st.ContainsAll(c.keys) {
		c.complete(nil)
		return true
	}
	return false
}

func (c *Coordinator) timeoutTask() (time.Time, error) {
	c.complete(fmt.Errorf("%w after %s", ErrWaitTimeout, c.timeout))
	return time.Time{}, nil
}

func (c *Coordinator) pollTask() (time.Time, error) {
	if c.check() {
		return time.Time{}, nil
	}
	return c.deps.Scheduler.Now().Add(c.deps.PollInterval), nil
}

// hold registers a release for an acquired resource. If the wait already
// completed, the resource is released immediately
func (c *Coordinator) hold(release func()) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		release()
		return
	}
	c.releases = append(c.releases, release)
	c.mu.Unlock()
}

// complete is the single exit path. The first caller sets the outcome and
// releases every held resource outside the lock
func (c *Coordinator) complete(err error) bool {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return false
	}
	c.finished = true
	c.err = err
	releases := c.releases
	c.releases = nil
	c.mu.Unlock()

	for _, release := range releases {
		release()
	}
	close(c.done)
	if c.onDone != nil {
		c.onDone(err)
	}
	return true
}

func (c *Coordinator) taskPath(kind string) []string {
	return []string{taskRoot, string(c.id), kind}
}
