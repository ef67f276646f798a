package queue

// weighted pairs an entry with the weight it was accounted at, so removal
// subtracts exactly what was added.
type weighted[T Entry] struct {
	entry  T
	weight int64
}

// recentWindow holds the most recent contiguous run of entries that could
// not be placed on the poll queue. Everything it drops is still recoverable
// from the log store.
type recentWindow[T Entry] struct {
	items  fifo[weighted[T]]
	weight int64
}

// cache appends e to the window. If e does not continue the window's last
// entry the window is cleared first; cache reports whether that happened.
func (w *recentWindow[T]) cache(e T, weight int64) bool {
	cleared := false
	if last, ok := w.items.back(); ok && last.entry.RangeEnd() != e.RangeStart() {
		w.clear()
		cleared = true
	}
	w.items.push(weighted[T]{entry: e, weight: weight})
	w.weight += weight
	return cleared
}

// evictWhile drops entries from the front while over reports true for the
// current window weight, returning how many were dropped.
func (w *recentWindow[T]) evictWhile(over func(windowWeight int64) bool) int {
	n := 0
	for w.items.len() > 0 && over(w.weight) {
		it, _ := w.items.pop()
		w.weight -= it.weight
		n++
	}
	if w.items.len() == 0 {
		w.weight = 0
	}
	return n
}

// dropBefore discards leading entries starting before seq.
func (w *recentWindow[T]) dropBefore(seq uint64) int {
	n := 0
	for {
		head, ok := w.items.front()
		if !ok || head.entry.RangeStart() >= seq {
			break
		}
		w.items.pop()
		w.weight -= head.weight
		n++
	}
	if w.items.len() == 0 {
		w.weight = 0
	}
	return n
}

func (w *recentWindow[T]) front() (T, bool) {
	it, ok := w.items.front()
	return it.entry, ok
}

func (w *recentWindow[T]) drain() []weighted[T] {
	w.weight = 0
	return w.items.drain()
}

func (w *recentWindow[T]) clear() {
	w.items.clear()
	w.weight = 0
}
