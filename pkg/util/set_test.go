package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/buildprops/pkg/util"
)

func TestSetOf(t *testing.T) {
	s := util.SetOf("a", "b", "a")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))
}

func TestSetAddRemove(t *testing.T) {
	s := util.Set[int]{}
	assert.True(t, s.IsEmpty())

	s.Add(1)
	s.Add(2)
	s.Add(1)
	assert.Equal(t, 2, s.Len())
	assert.ElementsMatch(t, []int{1, 2}, s.Items())

	s.Remove(1)
	assert.False(t, s.Contains(1))
	assert.Equal(t, 1, s.Len())
}

func TestSorted(t *testing.T) {
	s := util.SetOf("Width", "Height", "Depth")
	assert.Equal(t, []string{"Depth", "Height", "Width"}, util.Sorted(s))
	assert.Empty(t, util.Sorted(util.Set[int]{}))
}
