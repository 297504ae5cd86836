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

package pairheap

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intLess(a, b int) bool { return a < b }

func TestEmpty(t *testing.T) {
	h := New(intLess)
	assert.Equal(t, 0, h.Len())
	_, ok := h.Pop()
	assert.False(t, ok)
	_, ok = h.Peek()
	assert.False(t, ok)
}

func TestPushPop(t *testing.T) {
	h := New(intLess)
	for _, v := range []int{5, 3, 8, 1, 9, 2} {
		h.Push(v)
	}
	assert.Equal(t, 6, h.Len())

	v, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	want := []int{1, 2, 3, 5, 8, 9}
	for _, w := range want {
		v, ok := h.Pop()
		require.True(t, ok)
		assert.Equal(t, w, v)
	}
	assert.Equal(t, 0, h.Len())
}

func TestDuplicates(t *testing.T) {
	h := New(intLess)
	for _, v := range []int{2, 2, 1, 2, 1} {
		h.Push(v)
	}
	got := drain(h)
	assert.Equal(t, []int{1, 1, 2, 2, 2}, got)
}

func TestMerge(t *testing.T) {
	a := New(intLess)
	b := New(intLess)
	for i := 0; i < 10; i += 2 {
		a.Push(i)
		b.Push(i + 1)
	}
	a.Merge(b)
	assert.Equal(t, 20, a.Len()+b.Len())
	assert.Equal(t, 0, b.Len())
	_, ok := b.Pop()
	assert.False(t, ok)

	got := drain(a)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestMergeEmpty(t *testing.T) {
	a := New(intLess)
	a.Push(1)
	a.Merge(New(intLess))
	a.Merge(nil)
	assert.Equal(t, 1, a.Len())

	empty := New(intLess)
	b := New(intLess)
	b.Push(2)
	empty.Merge(b)
	got := drain(empty)
	assert.Equal(t, []int{2}, got)
}

func TestRandomMixed(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := New(intLess)
	var live []int
	for i := 0; i < 5000; i++ {
		switch {
		case len(live) == 0 || rng.Intn(3) > 0:
			v := rng.Intn(1000)
			h.Push(v)
			live = append(live, v)
		default:
			sort.Ints(live)
			v, ok := h.Pop()
			require.True(t, ok)
			assert.Equal(t, live[0], v)
			live = live[1:]
		}
		if rng.Intn(100) == 0 {
			// splice in a second heap
			o := New(intLess)
			for j := 0; j < rng.Intn(10); j++ {
				v := rng.Intn(1000)
				o.Push(v)
				live = append(live, v)
			}
			h.Merge(o)
		}
		require.Equal(t, len(live), h.Len())
	}

	// popping until empty yields a non-decreasing sequence
	got := drain(h)
	assert.True(t, sort.IntsAreSorted(got))
	sort.Ints(live)
	assert.Equal(t, live, got)
}

func TestCustomOrder(t *testing.T) {
	type pair struct{ birth, addr int }
	less := func(a, b pair) bool {
		if a.birth != b.birth {
			return a.birth < b.birth
		}
		return a.addr < b.addr
	}
	h := New(less)
	h.Push(pair{2, 1})
	h.Push(pair{1, 9})
	h.Push(pair{1, 3})
	h.Push(pair{3, 0})

	want := []pair{{1, 3}, {1, 9}, {2, 1}, {3, 0}}
	for _, w := range want {
		v, ok := h.Pop()
		require.True(t, ok)
		assert.Equal(t, w, v)
	}
}

func drain(h *Heap[int]) []int {
	got := make([]int, 0, h.Len())
	for {
		v, ok := h.Pop()
		if !ok {
			return got
		}
		got = append(got, v)
	}
}
