package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/buildprops/pkg/log"
)

type (
	// Scheduler runs delayed keyed tasks on a single goroutine and supports
	// replacement and prefix cancel. Requests never block the caller, so a
	// running task may schedule or cancel other tasks
	Scheduler struct {
		now       Clock
		makeTimer TimerConstructor
		wake      chan struct{}
		pending   []taskReq
		mu        sync.Mutex
	}

	// TaskFunc is called when its run time arrives. A non-zero return time
	// reschedules the task under the same path
	TaskFunc func() (time.Time, error)

	taskReqOp uint8

	loop struct {
		sched *Scheduler
		tasks *TaskHeap
		timer Timer
		due   <-chan time.Time
	}

	taskReq struct {
		task *Task
		path taskPath
		op   taskReqOp
	}
)

// ErrTaskPanicked wraps the value recovered from a panicking task
var ErrTaskPanicked = errors.New("scheduled task panicked")

const (
	taskReqSchedule taskReqOp = iota
	taskReqCancel
	taskReqCancelPrefix
)

// New creates a scheduler using the provided clock and timer constructor
func New(now Clock, makeTimer TimerConstructor) *Scheduler {
	return &Scheduler{
		now:       now,
		makeTimer: makeTimer,
		wake:      make(chan struct{}, 1),
	}
}

// NewSystem creates a scheduler backed by the wall clock
func NewSystem() *Scheduler {
	return New(time.Now, NewTimer)
}

// Now returns the scheduler's current time
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Schedule enqueues a task to run at the requested time, replacing any task
// already registered at the same path
func (s *Scheduler) Schedule(path []string, at time.Time, fn TaskFunc) {
	s.enqueue(taskReq{
		op:   taskReqSchedule,
		task: &Task{Func: fn, At: at, Path: slices.Clone(path)},
	})
}

// Cancel removes the task registered for the exact path
func (s *Scheduler) Cancel(path []string) {
	s.enqueue(taskReq{op: taskReqCancel, path: slices.Clone(path)})
}

// CancelPrefix removes all tasks under the provided path prefix
func (s *Scheduler) CancelPrefix(prefix []string) {
	s.enqueue(taskReq{op: taskReqCancelPrefix, path: slices.Clone(prefix)})
}

// Run executes due tasks and applies queued requests until ctx ends. It
// must be called on exactly one goroutine
func (s *Scheduler) Run(ctx context.Context) {
	l := &loop{
		sched: s,
		tasks: NewTaskHeap(),
		timer: s.makeTimer(0),
	}
	defer l.timer.Stop()

	l.arm()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			l.apply(s.drain())
		case <-l.due:
			l.fire()
		}
		l.arm()
	}
}

// arm points the timer at the earliest task, or disarms it when idle
func (l *loop) arm() {
	next := l.tasks.Peek()
	if next == nil {
		l.timer.Stop()
		l.due = nil
		return
	}
	l.timer.Reset(next.At.Sub(l.sched.now()))
	l.due = l.timer.Channel()
}

func (l *loop) apply(reqs []taskReq) {
	for _, req := range reqs {
		switch req.op {
		case taskReqSchedule:
			l.tasks.Insert(req.task)
		case taskReqCancel:
			l.tasks.Cancel(req.path)
		case taskReqCancelPrefix:
			l.tasks.CancelPrefix(req.path)
		}
	}
}

func (l *loop) fire() {
	task := l.tasks.PopTask()
	if task == nil {
		return
	}
	next, err := runTask(task)
	if err != nil {
		slog.Error("Scheduled task failed",
			slog.Any("path", []string(task.Path)),
			log.Error(err))
	}
	if !next.IsZero() {
		l.tasks.Insert(&Task{Func: task.Func, At: next, Path: task.Path})
	}
}

func (s *Scheduler) enqueue(req taskReq) {
	s.mu.Lock()
	s.pending = append(s.pending, req)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) drain() []taskReq {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.pending
	s.pending = nil
	return res
}

func runTask(t *Task) (next time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, err = time.Time{}, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return t.Func()
}
