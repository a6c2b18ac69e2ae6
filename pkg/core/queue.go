package core

import (
	"sync"
)

// WorkQueue is a FIFO queue that drops items already waiting in it.
// Ready is signalled whenever an item is added so a consumer can block on it.
type WorkQueue[T comparable] struct {
	mutex sync.Mutex
	set   map[T]struct{}
	items []T
	ready chan struct{}
}

func NewWorkQueue[T comparable]() *WorkQueue[T] {
	return &WorkQueue[T]{
		set:   make(map[T]struct{}),
		items: make([]T, 0),
		ready: make(chan struct{}, 1),
	}
}

// Add enqueues item and reports whether it was accepted.
func (queue *WorkQueue[T]) Add(item T) bool {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	if _, exists := queue.set[item]; exists {
		return false
	}

	queue.set[item] = struct{}{}
	queue.items = append(queue.items, item)

	select {
	case queue.ready <- struct{}{}:
	default:
	}

	return true
}

func (queue *WorkQueue[T]) Get() (T, bool) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	var zero T

	if len(queue.items) == 0 {
		return zero, false
	}

	item := queue.items[0]

	queue.items = queue.items[1:]
	delete(queue.set, item)

	return item, true
}

func (queue *WorkQueue[T]) Len() int {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	return len(queue.items)
}

// Ready returns a channel that receives after Add.
func (queue *WorkQueue[T]) Ready() <-chan struct{} {
	return queue.ready
}
