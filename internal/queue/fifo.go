package queue

// compactThreshold is the head offset past which a fifo copies its live
// entries into a fresh slice.
const compactThreshold = 256

// fifo is a slice-backed first-in-first-out buffer. It is not safe for
// concurrent use; the Queue guards it with its Synchronizer.
type fifo[T any] struct {
	items []T
	head  int
}

func (f *fifo[T]) len() int {
	return len(f.items) - f.head
}

func (f *fifo[T]) push(v T) {
	f.items = append(f.items, v)
}

func (f *fifo[T]) front() (T, bool) {
	if f.len() == 0 {
		var zero T
		return zero, false
	}
	return f.items[f.head], true
}

func (f *fifo[T]) back() (T, bool) {
	if f.len() == 0 {
		var zero T
		return zero, false
	}
	return f.items[len(f.items)-1], true
}

func (f *fifo[T]) pop() (T, bool) {
	var zero T
	if f.len() == 0 {
		return zero, false
	}
	v := f.items[f.head]
	f.items[f.head] = zero // allow GC to collect the entry
	f.head++
	f.maybeCompact()
	return v, true
}

// drain removes and returns every entry in order.
func (f *fifo[T]) drain() []T {
	out := f.items[f.head:]
	f.items = nil
	f.head = 0
	return out
}

func (f *fifo[T]) clear() {
	f.items = nil
	f.head = 0
}

func (f *fifo[T]) maybeCompact() {
	switch {
	case f.head == len(f.items):
		f.items = f.items[:0]
		f.head = 0
	case f.head > compactThreshold && f.head*2 >= len(f.items):
		compacted := make([]T, f.len(), f.len()+compactThreshold)
		copy(compacted, f.items[f.head:])
		f.items = compacted
		f.head = 0
	}
}
