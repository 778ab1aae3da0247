package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushEvicts(t *testing.T) {
	rb := New[int](3)
	for i := 1; i <= 5; i++ {
		rb.PushBack(i)
	}
	require.Equal(t, 3, rb.Len())
	require.Equal(t, []int{3, 4, 5}, rb.Slice())
	require.Equal(t, 3, rb.PopFront())
	require.Equal(t, []int{4, 5}, rb.Slice())
	rb.PushBack(6)
	rb.PushBack(7)
	require.Equal(t, []int{5, 6, 7}, rb.Slice())
}

func TestZeroCapacity(t *testing.T) {
	rb := New[int](0)
	rb.PushBack(1)
	require.Equal(t, 0, rb.Len())
	require.Empty(t, rb.Slice())
}
