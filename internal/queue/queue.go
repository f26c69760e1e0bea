package queue

import (
	"container/heap"
	"sync"
)

// Item is a single item in the priority queue
type Item[T any] struct {
	Value    T
	Priority int
	seq      uint64
	index    int
}

// priorityQueueHeap implements heap.Interface
type priorityQueueHeap[T any] []*Item[T]

func (pqh priorityQueueHeap[T]) Len() int {
	return len(pqh)
}

// Less orders by priority (lower value first), then by insertion order so
// items of equal priority come out FIFO.
func (pqh priorityQueueHeap[T]) Less(i, j int) bool {
	if pqh[i].Priority != pqh[j].Priority {
		return pqh[i].Priority < pqh[j].Priority
	}
	return pqh[i].seq < pqh[j].seq
}

func (pqh priorityQueueHeap[T]) Swap(i, j int) {
	pqh[i], pqh[j] = pqh[j], pqh[i]
	pqh[i].index = i
	pqh[j].index = j
}

func (pqh *priorityQueueHeap[T]) Push(x any) {
	n := len(*pqh)
	item := x.(*Item[T])
	item.index = n
	*pqh = append(*pqh, item)
}

func (pqh *priorityQueueHeap[T]) Pop() any {
	old := *pqh
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pqh = old[0 : n-1]
	return item
}

// PriorityQueue is a thread-safe generic priority queue. Wait returns a
// channel that is signalled whenever an item is enqueued, so a single
// consumer can block until there is work.
type PriorityQueue[T any] struct {
	heap   priorityQueueHeap[T]
	nextID uint64
	notify chan struct{}
	mu     sync.Mutex
}

func NewPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{
		heap:   make(priorityQueueHeap[T], 0),
		notify: make(chan struct{}, 1),
	}
	heap.Init(&pq.heap)
	return pq
}

func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.heap.Len()
}

// Enqueue adds a value with the given priority
func (pq *PriorityQueue[T]) Enqueue(value T, priority int) {
	pq.mu.Lock()
	item := &Item[T]{
		Value:    value,
		Priority: priority,
		seq:      pq.nextID,
	}
	pq.nextID++
	heap.Push(&pq.heap, item)
	pq.mu.Unlock()

	select {
	case pq.notify <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the highest priority item
func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.heap.Len() == 0 {
		var zero T
		return zero, false
	}

	item := heap.Pop(&pq.heap).(*Item[T])
	return item.Value, true
}

func (pq *PriorityQueue[T]) DequeueAll() []T {
	items := make([]T, 0, pq.Len())
	for {
		item, ok := pq.Dequeue()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

// Wait returns a channel that receives after an Enqueue. One signal may
// stand for several items, so consumers should drain with Dequeue.
func (pq *PriorityQueue[T]) Wait() <-chan struct{} {
	return pq.notify
}
