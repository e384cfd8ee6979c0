package util

type (
	// PathTree maps hierarchical string paths to values. A whole branch can
	// be detached by its prefix
	PathTree[T any] struct {
		root *pathNode[T]
	}

	pathNode[T any] struct {
		val  *T
		kids map[string]*pathNode[T]
	}
)

// NewPathTree creates an empty PathTree
func NewPathTree[T any]() *PathTree[T] {
	return &PathTree[T]{root: &pathNode[T]{}}
}

// Insert stores v at path, replacing any value already there
func (t *PathTree[T]) Insert(path []string, v T) {
	n := t.root
	for _, seg := range path {
		next := n.kids[seg]
		if next == nil {
			if n.kids == nil {
				n.kids = map[string]*pathNode[T]{}
			}
			next = &pathNode[T]{}
			n.kids[seg] = next
		}
		n = next
	}
	n.val = &v
}

// Get returns the value stored at exactly path
func (t *PathTree[T]) Get(path []string) (T, bool) {
	if n := t.find(path); n != nil && n.val != nil {
		return *n.val, true
	}
	var zero T
	return zero, false
}

// Remove clears the value at exactly path. Branches left without values are
// pruned
func (t *PathTree[T]) Remove(path []string) {
	trail := make([]*pathNode[T], 0, len(path)+1)
	n := t.root
	trail = append(trail, n)
	for _, seg := range path {
		if n = n.kids[seg]; n == nil {
			return
		}
		trail = append(trail, n)
	}
	n.val = nil

	for i := len(path); i > 0; i-- {
		if cur := trail[i]; cur.val != nil || len(cur.kids) != 0 {
			return
		}
		delete(trail[i-1].kids, path[i-1])
	}
}

// Detach cuts the branch at prefix out of the tree and returns every value
// it held. An empty prefix empties the whole tree
func (t *PathTree[T]) Detach(prefix []string) []T {
	if len(prefix) == 0 {
		cut := t.root
		t.root = &pathNode[T]{}
		return cut.collect(nil)
	}
	last := len(prefix) - 1
	parent := t.find(prefix[:last])
	if parent == nil {
		return nil
	}
	cut := parent.kids[prefix[last]]
	if cut == nil {
		return nil
	}
	delete(parent.kids, prefix[last])
	return cut.collect(nil)
}

func (t *PathTree[T]) find(path []string) *pathNode[T] {
	n := t.root
	for _, seg := range path {
		if n = n.kids[seg]; n == nil {
			return nil
		}
	}
	return n
}

func (n *pathNode[T]) collect(res []T) []T {
	if n.val != nil {
		res = append(res, *n.val)
	}
	for _, k := range n.kids {
		res = k.collect(res)
	}
	return res
}
