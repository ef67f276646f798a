package queue

import (
	"math/rand"
	"testing"
)

// shuffledOffers returns the unit entries of [0, n) in a locally shuffled order.
func shuffledOffers(r *rand.Rand, n, window int) []span {
	all := spans(0, uint64(n), 1)
	for i := range all {
		j := i + r.Intn(window)
		if j >= len(all) {
			j = len(all) - 1
		}
		all[i], all[j] = all[j], all[i]
	}
	return all
}

func TestProperty_OrderedDeliveryAndBoundedSize(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 1234, 99991} {
		r := rand.New(rand.NewSource(seed))
		const n = 500
		maxSize := int64(10 + r.Intn(40))
		// Zero reads the whole remaining history in one batch.
		batch := r.Intn(5)

		f := newFixture(t, Config{MaxSize: maxSize}, spans(0, n, 1), batch)
		f.sync.advance(n)

		var got []span
		for _, e := range shuffledOffers(r, n, 1+r.Intn(6)) {
			f.q.Offer(e)
			// Unit entries: at most one entry of overshoot.
			if size := f.q.QueuedSize(); size > maxSize+1 {
				t.Fatalf("seed %d: queued size %d exceeds limit %d", seed, size, maxSize)
			}
			for r.Intn(3) == 0 {
				e, ok := f.q.Poll()
				if !ok {
					break
				}
				got = append(got, e)
			}
		}

		for i := 0; i < 10*n; i++ {
			got = append(got, drain(f.q)...)
			if len(got) > 0 && got[len(got)-1].end == n {
				break
			}
			if err := f.q.CheckLog(); err != nil {
				t.Fatalf("seed %d: CheckLog() error = %v", seed, err)
			}
		}

		assertContiguous(t, got, 0, n)
		if f.q.IsFaultedToLog() {
			t.Errorf("seed %d: expected not faulted once everything was delivered", seed)
		}
		if f.q.Err() != nil {
			t.Errorf("seed %d: unexpected error %v", seed, f.q.Err())
		}
	}
}

func TestProperty_RecentWindowAlwaysContiguous(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	f := newFixture(t, Config{MaxSize: 40, RecentQueueRatio: 0.25}, nil, 0)

	for i := 0; i < 1000; i++ {
		start := uint64(r.Intn(200))
		f.q.Offer(span{start, start + uint64(1+r.Intn(4))})

		items := f.q.recent.items.snapshot()
		var weight int64
		for j, it := range items {
			weight += it.weight
			if j > 0 && items[j-1].entry.end != it.entry.start {
				t.Fatalf("window broken after %d offers: %v then %v", i, items[j-1].entry, it.entry)
			}
		}
		if weight != f.q.RecentSize() {
			t.Fatalf("window weight %d, tracked %d", weight, f.q.RecentSize())
		}
		if weight > 10 {
			t.Fatalf("window weight %d exceeds its share", weight)
		}
	}
}
