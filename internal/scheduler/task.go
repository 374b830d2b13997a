package scheduler

import "time"

// taskItem is one entry in the scheduler's priority queue, ordered by At.
// interval is zero for a one-shot task and positive for a repeating one;
// a repeating task is re-pushed at at.Add(interval) after it fires, which
// keeps its cadence anchored to its original schedule rather than to
// however late the worker got around to running it.
type taskItem struct {
	id       string
	at       time.Time
	interval time.Duration
	fn       func(now time.Time)
	index    int // maintained by container/heap
}

// taskHeap implements container/heap.Interface, ordered earliest-at-first.
type taskHeap []*taskItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	item := x.(*taskItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
