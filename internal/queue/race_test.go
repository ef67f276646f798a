package queue

import (
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"
)

// TestConcurrentProducerConsumer runs a producer, a consumer and background
// catch-up tasks against one queue. The consumer must see every entry exactly
// once and in order.
func TestConcurrentProducerConsumer(t *testing.T) {
	const n = 2000

	log := newMemLog(nil, 16)
	ws := &watermarkSync{}
	exec := &goExec{}
	q, err := New[span](Config{MaxSize: 64, Name: t.Name()}, log, RangeSizer[span]{}, ws, exec)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r := rand.New(rand.NewSource(11))
		var pending []span
		for _, e := range spans(0, n, 1) {
			log.append(e)
			ws.advance(e.end)
			pending = append(pending, e)
			if len(pending) < 4 && e.end != n {
				continue
			}
			r.Shuffle(len(pending), func(i, j int) { pending[i], pending[j] = pending[j], pending[i] })
			for _, p := range pending {
				q.Offer(p)
			}
			pending = pending[:0]
		}
	}()

	var got []span
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		e, ok := q.Poll()
		if ok {
			got = append(got, e)
			if e.end == n {
				break
			}
			continue
		}
		if err := q.CheckLog(); err != nil {
			t.Fatalf("CheckLog() error = %v", err)
		}
		runtime.Gosched()
	}

	wg.Wait()
	q.Close()
	exec.wg.Wait()

	assertContiguous(t, got, 0, n)
	if q.Err() != nil {
		t.Errorf("unexpected queue error: %v", q.Err())
	}
}

func TestConcurrentInspection(t *testing.T) {
	f := newFixture(t, Config{MaxSize: 100}, nil, 0)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = f.q.QueuedSize()
				_ = f.q.Len()
				_ = f.q.IsFaultedToLog()
				_ = f.q.IsReadingFromLog()
				_, _ = f.q.Peek()
			}
		}()
	}

	for _, e := range spans(0, 1000, 1) {
		f.produce(e)
		f.q.Poll()
	}
	close(stop)
	wg.Wait()

	if f.q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", f.q.Len())
	}
}
