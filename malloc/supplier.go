package malloc

import (
	"fmt"
	"math/bits"
	"sync"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// Supplier hands out naturally aligned spans of raw memory and takes them
// back. AcquireSpan returns nil under memory pressure; it never blocks
// waiting for memory. ReleaseSpan must receive the exact address and size
// of a prior successful AcquireSpan, at most once.
type Supplier interface {
	AcquireSpan(size, align int) unsafe.Pointer
	ReleaseSpan(p unsafe.Pointer, size int)
}

const (
	// minSpanSize is the smallest span an ArenaSupplier manages; it matches
	// the extent unit so bin refills never split below it.
	minSpanSize = ExtentSize

	// maxSpanSize bounds a single span from an ArenaSupplier (4MB).
	maxSpanSize = 4 << 20

	// DefaultArenaSize is the arena backing the Default allocator (64MB).
	DefaultArenaSize = 64 << 20
)

// ArenaSupplier serves spans out of one contiguous arena using buddy free
// lists: power-of-two spans from minSpanSize to maxSpanSize, split on
// demand and lazily coalesced. The arena base is aligned to maxSpanSize,
// so every span is naturally aligned.
//
// Safe for concurrent use; all bins of an allocator share one supplier.
type ArenaSupplier struct {
	mu sync.Mutex

	arena []byte         // keeps the backing array live
	start unsafe.Pointer // aligned base; handed-out pointers derive from it
	base  uintptr        // mirrors start, for range and alignment checks
	limit uintptr

	// freeLists[o] holds offsets of free spans of size minSpanSize<<o.
	freeLists [][]uintptr

	// needsCoalesce hints that buddies may be mergeable. Set on release of
	// a non-max-order span, cleared when coalescing yields nothing.
	needsCoalesce bool

	maxOrder int
}

// NewArenaSupplier allocates an arena of at least size bytes and returns a
// supplier over it. size must be at least maxSpanSize (4MB); the usable
// arena is rounded down to a multiple of maxSpanSize after base alignment.
func NewArenaSupplier(size int) (*ArenaSupplier, error) {
	if size < maxSpanSize {
		return nil, fmt.Errorf("arena size must be >= %d, got %d", maxSpanSize, size)
	}
	// dirtmake skips zeroing; allocator memory has no cleanliness contract
	buf := dirtmake.Bytes(size+maxSpanSize, size+maxSpanSize)
	raw := uintptr(unsafe.Pointer(&buf[0]))
	base := (raw + maxSpanSize - 1) &^ (maxSpanSize - 1)
	usable := (raw + uintptr(len(buf)) - base) &^ (maxSpanSize - 1)

	maxOrder := bits.TrailingZeros(maxSpanSize) - bits.TrailingZeros(minSpanSize)
	s := &ArenaSupplier{
		arena:     buf,
		start:     unsafe.Add(unsafe.Pointer(&buf[0]), base-raw),
		base:      base,
		limit:     base + usable,
		freeLists: make([][]uintptr, maxOrder+1),
		maxOrder:  maxOrder,
	}
	for off := uintptr(0); off < usable; off += maxSpanSize {
		s.freeLists[maxOrder] = append(s.freeLists[maxOrder], off)
	}
	return s, nil
}

// spanOrder returns the buddy order for a span of at least size bytes,
// or false if it exceeds maxSpanSize.
func spanOrder(size int) (int, bool) {
	if size > maxSpanSize {
		return 0, false
	}
	if size <= minSpanSize {
		return 0, true
	}
	return bits.Len(uint(size-1)) - bits.TrailingZeros(minSpanSize), true
}

// AcquireSpan returns a span of at least size bytes whose address is a
// multiple of the rounded-up power-of-two span size (callers never pass
// align beyond that; see Supplier). Returns nil when the arena is
// exhausted or the request exceeds maxSpanSize.
func (s *ArenaSupplier) AcquireSpan(size, align int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	order, ok := spanOrder(size)
	if !ok {
		return nil
	}
	if align > minSpanSize<<order {
		// span granularity cannot satisfy the alignment
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	off, ok := s.pop(order)
	if !ok {
		return nil
	}
	return unsafe.Add(s.start, off)
}

// ReleaseSpan returns a span obtained from AcquireSpan with the same size.
// Panics on spans this supplier never handed out.
func (s *ArenaSupplier) ReleaseSpan(p unsafe.Pointer, size int) {
	order, ok := spanOrder(size)
	if !ok {
		panic("arena: invalid span size")
	}
	addr := uintptr(p)
	if addr < s.base || addr >= s.limit {
		panic("arena: span not in arena")
	}
	off := addr - s.base
	spanSize := uintptr(minSpanSize) << order
	if off&(spanSize-1) != 0 {
		panic("arena: misaligned span")
	}
	s.mu.Lock()
	s.freeLists[order] = append(s.freeLists[order], off)
	if order < s.maxOrder {
		s.needsCoalesce = true
	}
	s.mu.Unlock()
}

// Available returns the total free bytes. Fragmentation may keep a span
// request failing even with Available() >= size.
func (s *ArenaSupplier) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for o, fl := range s.freeLists {
		total += len(fl) * (minSpanSize << o)
	}
	return total
}

// pop takes a free span of exactly order, splitting a larger one or
// coalescing buddies when the order's list is empty.
func (s *ArenaSupplier) pop(order int) (uintptr, bool) {
	found := -1
	for o := order; o <= s.maxOrder; o++ {
		if len(s.freeLists[o]) > 0 {
			found = o
			break
		}
	}
	if found == -1 {
		if !s.needsCoalesce {
			return 0, false
		}
		found = s.coalesceUntil(order)
		if found == -1 {
			s.needsCoalesce = false
			return 0, false
		}
	}

	fl := s.freeLists[found]
	off := fl[len(fl)-1]
	s.freeLists[found] = fl[:len(fl)-1]

	// split down; the left half keeps the offset, the right half goes on
	// the lower order's list
	for found > order {
		found--
		right := off + uintptr(minSpanSize)<<found
		s.freeLists[found] = append(s.freeLists[found], right)
	}
	return off, true
}

// coalesceUntil merges free buddies bottom-up until some order >=
// targetOrder has a span. Returns that order, or -1.
func (s *ArenaSupplier) coalesceUntil(targetOrder int) int {
	for order := 0; order < targetOrder; order++ {
		fl := s.freeLists[order]
		if len(fl) < 2 {
			continue
		}
		// insertion sort; free lists are short and nearly sorted
		for i := 1; i < len(fl); i++ {
			for j := i; j > 0 && fl[j] < fl[j-1]; j-- {
				fl[j], fl[j-1] = fl[j-1], fl[j]
			}
		}
		spanSize := uintptr(minSpanSize) << order
		n := 0
		for i := 0; i < len(fl); {
			if i+1 < len(fl) && fl[i+1] == fl[i]^spanSize {
				s.freeLists[order+1] = append(s.freeLists[order+1], fl[i]&^spanSize)
				i += 2
			} else {
				fl[n] = fl[i]
				n++
				i++
			}
		}
		s.freeLists[order] = fl[:n]
	}
	for o := targetOrder; o <= s.maxOrder; o++ {
		if len(s.freeLists[o]) > 0 {
			return o
		}
	}
	return -1
}
