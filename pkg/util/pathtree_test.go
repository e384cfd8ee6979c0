package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/buildprops/pkg/util"
)

func TestPathTreeRemovePrunes(t *testing.T) {
	tree := util.NewPathTree[int]()
	tree.Insert([]string{"a", "b", "c"}, 1)
	tree.Insert([]string{"a", "d"}, 2)

	tree.Remove([]string{"a", "b", "c"})

	vals := tree.Detach([]string{"a", "b"})
	assert.Nil(t, vals)

	vals = tree.Detach([]string{"a"})
	assert.Equal(t, []int{2}, vals)
}

func TestPathTreeDetachPrunesPrefix(t *testing.T) {
	tree := util.NewPathTree[int]()
	tree.Insert([]string{"wait", "w1", "timeout"}, 1)
	tree.Insert([]string{"wait", "w1", "poll"}, 2)
	tree.Insert([]string{"wait", "w2", "poll"}, 3)

	vals := tree.Detach([]string{"wait", "w1"})
	assert.ElementsMatch(t, []int{1, 2}, vals)

	vals = tree.Detach([]string{"wait", "w1"})
	assert.Nil(t, vals)

	vals = tree.Detach([]string{"wait"})
	assert.Equal(t, []int{3}, vals)
}

func TestPathTreeGet(t *testing.T) {
	tree := util.NewPathTree[string]()
	tree.Insert([]string{"x"}, "one")
	tree.Insert([]string{"x"}, "two")

	v, ok := tree.Get([]string{"x"})
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	_, ok = tree.Get([]string{"x", "y"})
	assert.False(t, ok)

	tree.Remove([]string{"x"})
	_, ok = tree.Get([]string{"x"})
	assert.False(t, ok)
}

func TestPathTreeDetachAll(t *testing.T) {
	tree := util.NewPathTree[int]()
	tree.Insert(nil, 0)
	tree.Insert([]string{"run", "r1"}, 1)
	tree.Insert([]string{"run", "r2", "poll"}, 2)

	vals := tree.Detach(nil)
	assert.ElementsMatch(t, []int{0, 1, 2}, vals)

	_, ok := tree.Get([]string{"run", "r1"})
	assert.False(t, ok)
	assert.Nil(t, tree.Detach(nil))
}
