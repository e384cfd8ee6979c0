package scheduler

import (
	"container/heap"
	"time"

	"github.com/kode4food/buildprops/pkg/util"
)

type (
	// Task is a function due at a point in time. A task with a Path is
	// keyed, and inserting another task at the same Path replaces it
	Task struct {
		Func  TaskFunc
		At    time.Time
		Path  taskPath
		index int
	}

	// TaskHeap orders tasks by due time and indexes keyed tasks by path
	TaskHeap struct {
		queue taskQueue
		keyed *util.PathTree[*Task]
	}

	taskQueue []*Task

	taskPath []string
)

// NewTaskHeap creates an empty TaskHeap
func NewTaskHeap() *TaskHeap {
	return &TaskHeap{keyed: util.NewPathTree[*Task]()}
}

// Insert adds a task. A keyed task already present at the same path takes
// the new function and due time instead
func (h *TaskHeap) Insert(t *Task) {
	if t == nil || t.Func == nil || t.At.IsZero() {
		return
	}
	if len(t.Path) != 0 {
		if cur, ok := h.keyed.Get(t.Path); ok {
			cur.Func, cur.At = t.Func, t.At
			heap.Fix(&h.queue, cur.index)
			return
		}
		h.keyed.Insert(t.Path, t)
	}
	heap.Push(&h.queue, t)
}

// PopTask removes and returns the earliest task, or nil when empty
func (h *TaskHeap) PopTask() *Task {
	if len(h.queue) == 0 {
		return nil
	}
	t := heap.Pop(&h.queue).(*Task)
	h.unkey(t)
	return t
}

// Peek returns the earliest task without removing it
func (h *TaskHeap) Peek() *Task {
	if len(h.queue) == 0 {
		return nil
	}
	return h.queue[0]
}

// Cancel removes the keyed task at exactly path
func (h *TaskHeap) Cancel(path []string) {
	if len(path) == 0 {
		return
	}
	if t, ok := h.keyed.Get(path); ok {
		h.keyed.Remove(path)
		heap.Remove(&h.queue, t.index)
	}
}

// CancelPrefix removes every keyed task at or below prefix
func (h *TaskHeap) CancelPrefix(prefix []string) {
	if len(prefix) == 0 {
		return
	}
	for _, t := range h.keyed.Detach(prefix) {
		heap.Remove(&h.queue, t.index)
	}
}

// Len returns the number of pending tasks
func (h *TaskHeap) Len() int {
	return len(h.queue)
}

func (h *TaskHeap) unkey(t *Task) {
	if len(t.Path) == 0 {
		return
	}
	if cur, ok := h.keyed.Get(t.Path); ok && cur == t {
		h.keyed.Remove(t.Path)
	}
}

func (q taskQueue) Len() int {
	return len(q)
}

func (q taskQueue) Less(i, j int) bool {
	return q[i].At.Before(q[j].At)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old) - 1
	t := old[n]
	old[n] = nil
	t.index = -1
	*q = old[:n]
	return t
}
