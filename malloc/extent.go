package malloc

import (
	"unsafe"

	"github.com/cloudwego/slabx/container/bitmap"
)

// classLarge marks an extent backing a single large object instead of a
// bin's slots.
const classLarge = -1

// extent exclusively owns one contiguous backing span for its lifetime.
// Bin extents carve the span into fixed-size slots of a single class;
// large extents cover exactly one allocation. Ownership of the span moves
// back to the supplier only at reclaim.
type extent struct {
	birth uint64 // creation order, tie-break for the nonfull queue
	class int
	base  unsafe.Pointer // span start; handed-out pointers derive from it
	addr  uintptr        // mirrors base, for index and offset arithmetic
	size  int            // ExtentSize for bin extents, full span size for large

	// slot tracking, bin extents only. The bitmap words live here in
	// metadata rather than in the leading bytes of the span, so a 14KiB
	// class still gets its one slot out of a 16KiB span.
	slots     bitmap.Bitmap
	capacity  int
	used      int
	firstFree int // search hint only, never authoritative

	// retained counts toward its bin's empty-extent budget until the
	// extent serves an allocation again.
	retained bool
}

func newExtent(birth uint64, class int, p unsafe.Pointer) *extent {
	capacity := ExtentSize / sizeClasses[class]
	words := make([]uint64, bitmap.WordsFor(capacity))
	return &extent{
		birth:    birth,
		class:    class,
		base:     p,
		addr:     uintptr(p),
		size:     ExtentSize,
		slots:    bitmap.Make(words, capacity),
		capacity: capacity,
	}
}

func newLargeExtent(birth uint64, p unsafe.Pointer, size int) *extent {
	return &extent{
		birth: birth,
		class: classLarge,
		base:  p,
		addr:  uintptr(p),
		size:  size,
	}
}

// less orders extents by (birth, addr) ascending. The nonfull queue pops
// the smallest, so allocations concentrate in the oldest extents and newer
// ones get a chance to drain and be reclaimed.
func (e *extent) less(o *extent) bool {
	if e.birth != o.birth {
		return e.birth < o.birth
	}
	return e.addr < o.addr
}

// takeSlot claims the first free slot at or after the hint and returns a
// pointer to it. Returns false when the extent is saturated.
func (e *extent) takeSlot() (unsafe.Pointer, bool) {
	i, ok := e.slots.FindFirstUnset(e.firstFree)
	if !ok && e.firstFree > 0 {
		i, ok = e.slots.FindFirstUnset(0)
	}
	if !ok {
		return nil, false
	}
	e.slots.Set(i)
	e.firstFree = i + 1
	e.used++
	return unsafe.Add(e.base, i*sizeClasses[e.class]), true
}

// releaseSlot clears the slot covering addr.
// Panics on an interior or already-free slot: either means the caller
// handed back a pointer this extent never handed out.
func (e *extent) releaseSlot(addr uintptr) {
	off := int(addr - e.addr)
	slotSize := sizeClasses[e.class]
	if off%slotSize != 0 || off/slotSize >= e.capacity {
		panic("malloc: free of interior pointer")
	}
	i := off / slotSize
	if !e.slots.Get(i) {
		panic("malloc: double free")
	}
	e.slots.Clear(i)
	e.used--
	if i < e.firstFree {
		e.firstFree = i
	}
}
