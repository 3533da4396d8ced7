package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueuePopReturnsSubmissionOrder(t *testing.T) {
	q := NewQueue()

	for i := 0; i < 5; i++ {
		inv, _ := NewInvoke("orders", fmt.Sprintf("r%d", i), nil)
		q.Push(inv)
	}

	for i := 0; i < 5; i++ {
		inv := q.Pop()
		assert.NotNil(t, inv)
		assert.Equal(t, fmt.Sprintf("r%d", i), inv.RequestID)
	}
	assert.Nil(t, q.Pop())
}

func TestQueuePopEmpty(t *testing.T) {
	q := NewQueue()
	assert.Nil(t, q.Pop())
	assert.Equal(t, 0, q.Len())
}

func TestQueueInterleavedPushPop(t *testing.T) {
	q := NewQueue()

	a, _ := NewInvoke("orders", "a", nil)
	b, _ := NewInvoke("orders", "b", nil)
	c, _ := NewInvoke("orders", "c", nil)

	q.Push(a)
	q.Push(b)
	assert.Equal(t, "a", q.Pop().RequestID)
	q.Push(c)
	assert.Equal(t, "b", q.Pop().RequestID)
	assert.Equal(t, "c", q.Pop().RequestID)
	assert.Nil(t, q.Pop())
}
