package tick_test

import (
	"testing"

	"github.com/aretw0/tendril/pkg/tick"
	"github.com/stretchr/testify/assert"
)

func TestQueue_FlushRunsInOrder(t *testing.T) {
	q := tick.NewQueue()
	var order []int
	q.Defer(func() { order = append(order, 1) })
	q.Defer(func() { order = append(order, 2) })

	assert.Equal(t, 2, q.Pending())
	assert.Equal(t, 2, q.Flush())
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_FlushDrainsNestedDefers(t *testing.T) {
	q := tick.NewQueue()
	var order []string
	q.Defer(func() {
		order = append(order, "outer")
		q.Defer(func() { order = append(order, "inner") })
	})

	assert.Equal(t, 2, q.Flush())
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, 0, q.Flush())
}
