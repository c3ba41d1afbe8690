// Package heap is a generic binary min-heap ordered by a caller supplied
// less function.
package heap

import "iter"

type Heap[T any] struct {
	data []T
	less func(a, b T) bool
}

func New[T any](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{
		data: []T{},
		less: less,
	}
}

func (h *Heap[T]) Push(value T) {
	h.data = append(h.data, value)
	h.bubbleUp(len(h.data) - 1)
}

func (h *Heap[T]) Pop() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	top := h.data[0]
	last := len(h.data) - 1
	h.data[0] = h.data[last]
	var zero T
	h.data[last] = zero
	h.data = h.data[:last]
	h.bubbleDown(0)
	return top, true
}

func (h *Heap[T]) Peek() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	return h.data[0], true
}

// Drain pops elements in order until the heap is empty or the loop stops.
// Elements pushed while draining are included.
func (h *Heap[T]) Drain() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			top, found := h.Pop()
			if !found || !yield(top) {
				return
			}
		}
	}
}

func (h *Heap[T]) bubbleUp(index int) {
	for index > 0 {
		parent := (index - 1) / 2
		if !h.less(h.data[index], h.data[parent]) {
			return
		}
		h.data[index], h.data[parent] = h.data[parent], h.data[index]
		index = parent
	}
}

func (h *Heap[T]) bubbleDown(index int) {
	size := len(h.data)
	for {
		smallest := index
		for _, child := range []int{2*index + 1, 2*index + 2} {
			if child < size && h.less(h.data[child], h.data[smallest]) {
				smallest = child
			}
		}
		if smallest == index {
			return
		}
		h.data[index], h.data[smallest] = h.data[smallest], h.data[index]
		index = smallest
	}
}

func (h *Heap[T]) Len() int {
	return len(h.data)
}
