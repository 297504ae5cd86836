/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package pairheap provides a mergeable min-priority queue (pairing heap).
//
// Unlike a binary heap it uses one small node per element instead of a
// resizable backing array, so Push never reallocates, and two heaps can be
// merged in O(1). Push is amortized O(1), Pop amortized O(log n).
package pairheap

// Heap is a pairing heap ordered by the less function given to New.
// It is not safe for concurrent use.
type Heap[T any] struct {
	less func(a, b T) bool
	root *node[T]
	size int
}

type node[T any] struct {
	child   *node[T]
	sibling *node[T]
	value   T
}

// New returns an empty heap ordered by less.
// Pop returns the smallest element per that order.
func New[T any](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{less: less}
}

// Len returns the number of elements.
func (h *Heap[T]) Len() int {
	return h.size
}

// Push adds x to the heap.
func (h *Heap[T]) Push(x T) {
	h.root = h.meld(h.root, &node[T]{value: x})
	h.size++
}

// Peek returns the minimum element without removing it.
func (h *Heap[T]) Peek() (T, bool) {
	if h.root == nil {
		var zero T
		return zero, false
	}
	return h.root.value, true
}

// Pop removes and returns the minimum element.
func (h *Heap[T]) Pop() (T, bool) {
	if h.root == nil {
		var zero T
		return zero, false
	}
	min := h.root.value
	h.root = h.mergePairs(h.root.child)
	h.size--
	return min, true
}

// Merge moves all elements of other into h, leaving other empty.
// Both heaps must use an equivalent order.
func (h *Heap[T]) Merge(other *Heap[T]) {
	if other == nil || other.root == nil {
		return
	}
	h.root = h.meld(h.root, other.root)
	h.size += other.size
	other.root = nil
	other.size = 0
}

// meld links two heap roots, returning the smaller as the new root.
func (h *Heap[T]) meld(a, b *node[T]) *node[T] {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if h.less(b.value, a.value) {
		a, b = b, a
	}
	b.sibling = a.child
	a.child = b
	return a
}

// mergePairs combines a sibling list after the root has been detached:
// left-to-right pass melding adjacent pairs, then right-to-left melding
// the results. Iterative to keep the stack flat on long sibling runs.
func (h *Heap[T]) mergePairs(n *node[T]) *node[T] {
	if n == nil {
		return nil
	}
	var pairs []*node[T]
	for n != nil {
		a := n
		b := n.sibling
		if b == nil {
			a.sibling = nil
			pairs = append(pairs, a)
			break
		}
		n = b.sibling
		a.sibling = nil
		b.sibling = nil
		pairs = append(pairs, h.meld(a, b))
	}
	root := pairs[len(pairs)-1]
	for i := len(pairs) - 2; i >= 0; i-- {
		root = h.meld(pairs[i], root)
	}
	return root
}
