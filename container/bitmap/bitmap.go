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

// Package bitmap provides a fixed-capacity bitset over a borrowed word slice.
//
// The package does no locking and never allocates; callers own the backing
// storage and whatever lock protects it.
package bitmap

import "math/bits"

const wordBits = 64

// Bitmap is a view over externally owned words.
// The zero value is an empty bitmap.
type Bitmap struct {
	words []uint64
	nbits int
}

// Make returns a bitmap of nbits bits backed by words.
// words must hold at least nbits bits; Make panics otherwise.
func Make(words []uint64, nbits int) Bitmap {
	if nbits < 0 || len(words)*wordBits < nbits {
		panic("bitmap: backing slice too small")
	}
	return Bitmap{words: words, nbits: nbits}
}

// WordsFor returns the number of uint64 words needed to back nbits bits.
func WordsFor(nbits int) int {
	return (nbits + wordBits - 1) / wordBits
}

// Len returns the bit capacity.
func (b Bitmap) Len() int {
	return b.nbits
}

// Get reports whether bit i is set.
func (b Bitmap) Get(i int) bool {
	b.check(i)
	return b.words[i/wordBits]&(1<<(i%wordBits)) != 0
}

// Set sets bit i.
func (b Bitmap) Set(i int) {
	b.check(i)
	b.words[i/wordBits] |= 1 << (i % wordBits)
}

// Clear clears bit i.
func (b Bitmap) Clear(i int) {
	b.check(i)
	b.words[i/wordBits] &^= 1 << (i % wordBits)
}

// FindFirstUnset returns the index of the first zero bit at or after from.
// It returns false if every bit in [from, Len) is set.
// from is only a search start; callers may pass a stale hint.
func (b Bitmap) FindFirstUnset(from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	if from >= b.nbits {
		return 0, false
	}
	w := from / wordBits
	// partial first word: mask off bits below from
	if masked := ^b.words[w] &^ (1<<(from%wordBits) - 1); masked != 0 {
		return b.clamp(w*wordBits + bits.TrailingZeros64(masked))
	}
	for w++; w < len(b.words); w++ {
		if b.words[w] != ^uint64(0) {
			return b.clamp(w*wordBits + bits.TrailingZeros64(^b.words[w]))
		}
	}
	return 0, false
}

// OnesCount returns the number of set bits.
func (b Bitmap) OnesCount() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	// bits beyond nbits are never set, see check()
	return n
}

func (b Bitmap) clamp(i int) (int, bool) {
	if i >= b.nbits {
		return 0, false
	}
	return i, true
}

func (b Bitmap) check(i int) {
	if i < 0 || i >= b.nbits {
		panic("bitmap: index out of range")
	}
}
