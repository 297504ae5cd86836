// Package malloc implements a size-class slab allocator over raw memory
// spans obtained from a Supplier.
//
// Small requests are rounded up to one of a fixed set of size classes and
// served from 16KiB extents; larger requests get a dedicated span. Every
// owned page is registered in a radix index so Free can recover ownership
// from the pointer alone.
package malloc

import "sort"

const (
	// ExtentSize is the span unit backing every bin-managed extent.
	ExtentSize = 16 << 10

	// pageSize is the granularity of the radix index.
	pageSize  = 4 << 10
	pageShift = 12
)

// sizeClasses is the fixed allocation size table. Strictly increasing;
// sizes above the last entry take the large-object path.
var sizeClasses = [...]int{
	0x8, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70,
	0x80, 0xA0, 0xC0, 0xE0, 0x100, 0x140, 0x180, 0x1C0,
	0x200, 0x280, 0x300, 0x380, 0x400, 0x500, 0x600, 0x700,
	0x800, 0xA00, 0xC00, 0xE00, 0x1000, 0x1400, 0x1800, 0x1C00,
	0x2000, 0x2800, 0x3000, 0x3800,
}

const numClasses = len(sizeClasses)

// MaxClassSize is the largest bin-managed allocation size (14KiB).
const MaxClassSize = 0x3800

// classForSize returns the index of the smallest class >= size,
// or false if size exceeds the table.
func classForSize(size int) (int, bool) {
	if size > MaxClassSize {
		return 0, false
	}
	i := sort.Search(numClasses, func(i int) bool { return sizeClasses[i] >= size })
	return i, true
}

// classForLayout maps a (size, align) request to a class whose slots
// naturally satisfy the alignment. align must be a power of two.
// Alignments up to 8 are free: every class size is a multiple of 8 and
// extents are ExtentSize-aligned. Larger alignments need a class size that
// is a multiple of align, which exists for any power of two up to 8KiB.
func classForLayout(size, align int) (int, bool) {
	i, ok := classForSize(size)
	if !ok {
		return 0, false
	}
	if align <= 8 {
		return i, true
	}
	for ; i < numClasses; i++ {
		if sizeClasses[i]%align == 0 {
			return i, true
		}
	}
	return 0, false
}

func roundUp(n, unit int) int {
	return (n + unit - 1) &^ (unit - 1)
}
