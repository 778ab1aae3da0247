// package ringbuf provides a fixed capacity FIFO.
package ringbuf

type RingBuf[T any] struct {
	buf []T
	// head is the index of the oldest element. n is the number of elements.
	head, n int
}

func New[T any](n int) RingBuf[T] {
	return RingBuf[T]{buf: make([]T, n)}
}

func (rb *RingBuf[T]) MaxLen() int {
	return len(rb.buf)
}

func (rb *RingBuf[T]) Len() int {
	return rb.n
}

// PushBack appends val, evicting the oldest element if the buffer is full.
func (rb *RingBuf[T]) PushBack(val T) {
	if len(rb.buf) == 0 {
		return
	}
	if rb.n == len(rb.buf) {
		rb.buf[rb.head] = val
		rb.head = (rb.head + 1) % len(rb.buf)
		return
	}
	rb.buf[(rb.head+rb.n)%len(rb.buf)] = val
	rb.n++
}

// PopFront removes and returns the oldest element.
func (rb *RingBuf[T]) PopFront() T {
	val := rb.At(0)
	var zero T
	rb.buf[rb.head] = zero
	rb.head = (rb.head + 1) % len(rb.buf)
	rb.n--
	return val
}

// At returns the i-th oldest element.
func (rb *RingBuf[T]) At(i int) T {
	if i < 0 || i >= rb.n {
		panic(i)
	}
	return rb.buf[(rb.head+i)%len(rb.buf)]
}

// Slice copies the contents, oldest first.
func (rb *RingBuf[T]) Slice() []T {
	out := make([]T, rb.n)
	for i := range out {
		out[i] = rb.At(i)
	}
	return out
}
