package event

// takeBatch removes up to n items from the head of q in FIFO order. The
// backing array is released once the queue drains.
func takeBatch[T any](q *[]T, n int) []T {
	if n > len(*q) {
		n = len(*q)
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, (*q)[:n])
	var zero T
	for i := 0; i < n; i++ {
		(*q)[i] = zero
	}
	*q = (*q)[n:]
	if len(*q) == 0 {
		*q = nil
	}
	return out
}
