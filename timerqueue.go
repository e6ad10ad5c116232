package fiber

import (
	"container/heap"
	"time"
)

// timerEntry is a (deadline, callback) pair. seq breaks ties between equal
// deadlines in insertion order, since container/heap does not guarantee
// stability.
type timerEntry struct {
	deadline time.Time
	seq      uint64
	fire     func()
	index    int // maintained by container/heap
}

// timerHeap implements container/heap.Interface.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerQueue is the scheduler's priority queue of pending timer callbacks,
// keyed by absolute deadline, O(log n) insert and min-extract.
type timerQueue struct {
	h   timerHeap
	seq uint64
}

func newTimerQueue() *timerQueue {
	return &timerQueue{}
}

// insert adds a (deadline, callback) entry. Duplicate deadlines are
// permitted; ties are broken by insertion order.
func (q *timerQueue) insert(deadline time.Time, fire func()) *timerEntry {
	q.seq++
	e := &timerEntry{deadline: deadline, seq: q.seq, fire: fire}
	heap.Push(&q.h, e)
	return e
}

// peek returns the earliest entry without removing it, or nil if empty.
func (q *timerQueue) peek() *timerEntry {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// extractExpired removes and returns every entry whose deadline is not
// after now, in non-decreasing deadline order.
func (q *timerQueue) extractExpired(now time.Time) []*timerEntry {
	var expired []*timerEntry
	for len(q.h) > 0 && !q.h[0].deadline.After(now) {
		expired = append(expired, heap.Pop(&q.h).(*timerEntry))
	}
	return expired
}

// remove cancels a pending entry, if it is still queued. No-op if it has
// already fired or been removed.
func (q *timerQueue) remove(e *timerEntry) {
	if e.index < 0 || e.index >= len(q.h) || q.h[e.index] != e {
		return
	}
	heap.Remove(&q.h, e.index)
}

func (q *timerQueue) Len() int {
	return len(q.h)
}
