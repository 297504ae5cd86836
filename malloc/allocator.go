package malloc

import (
	"sync/atomic"
	"unsafe"
)

// Allocator is the top-level dispatcher. Requests within the size-class
// table are served by per-class bins; anything larger gets a dedicated
// span. Construct isolated instances with New; a process-wide one is
// available via Default.
type Allocator struct {
	supplier Supplier
	radix    radixIndex
	bins     [numClasses]bin

	// birth orders extents for reuse. Lock-free; increment order across
	// goroutines only needs to be consistent, not wall-clock accurate.
	birth atomic.Uint64

	retainEmpty int

	largeSpans atomic.Int64
	largeBytes atomic.Int64
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithRetainEmpty sets how many fully drained extents each bin keeps
// around instead of returning them to the supplier. Zero reclaims
// aggressively; the default of 1 avoids supplier churn on
// alloc/free-heavy workloads.
func WithRetainEmpty(n int) Option {
	return func(a *Allocator) {
		if n >= 0 {
			a.retainEmpty = n
		}
	}
}

// New returns an allocator drawing spans from supplier.
func New(supplier Supplier, opts ...Option) *Allocator {
	a := &Allocator{supplier: supplier, retainEmpty: 1}
	for i := range a.bins {
		a.bins[i].init(i)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Alloc returns a pointer to size bytes aligned to align, or nil when the
// supplier is out of memory or the layout cannot be satisfied.
// align must be a power of two; zero means no requirement.
func (a *Allocator) Alloc(size, align int) unsafe.Pointer {
	if size <= 0 || align < 0 || align&(align-1) != 0 {
		return nil
	}
	if class, ok := classForLayout(size, align); ok {
		return a.allocSlot(&a.bins[class])
	}
	return a.allocLarge(size, align)
}

// Free releases ptr, which must have been returned by a prior Alloc with
// the same size and align and not freed since. Anything else panics:
// continuing past a double free or a foreign pointer would corrupt
// unrelated memory.
func (a *Allocator) Free(ptr unsafe.Pointer, size, align int) {
	if ptr == nil {
		panic("malloc: free of nil pointer")
	}
	e := a.radix.lookup(uintptr(ptr))
	if e == nil {
		panic("malloc: free of unallocated pointer")
	}
	if e.class == classLarge {
		a.freeLarge(e, ptr, size, align)
		return
	}
	class, ok := classForLayout(size, align)
	if !ok || class != e.class {
		panic("malloc: free layout mismatch")
	}
	a.freeSlot(&a.bins[class], e, uintptr(ptr))
}

// allocLarge serves a request beyond the class table (or beyond any class
// alignment) with a span of its own. No bitmap, no bin; the radix entry
// alone records ownership. The supplier call holds no allocator lock.
func (a *Allocator) allocLarge(size, align int) unsafe.Pointer {
	span, align := largeSpan(size, align)
	p := a.supplier.AcquireSpan(span, align)
	if p == nil {
		return nil
	}
	e := newLargeExtent(a.birth.Add(1), p, span)
	a.radix.insert(e)
	a.largeSpans.Add(1)
	a.largeBytes.Add(int64(span))
	return p
}

// largeSpan rounds a large request to page granularity and keeps
// align <= span, so the span size alone determines the supplier block and
// Free can recompute it from the caller's layout.
func largeSpan(size, align int) (span, spanAlign int) {
	span = roundUp(size, pageSize)
	if align < pageSize {
		align = pageSize
	}
	if span < align {
		span = align
	}
	return span, align
}

func (a *Allocator) freeLarge(e *extent, ptr unsafe.Pointer, size, align int) {
	if uintptr(ptr) != e.addr {
		panic("malloc: free of interior pointer")
	}
	if span, _ := largeSpan(size, align); span != e.size {
		panic("malloc: free layout mismatch")
	}
	a.radix.remove(e)
	a.supplier.ReleaseSpan(ptr, e.size)
	a.largeSpans.Add(-1)
	a.largeBytes.Add(-int64(e.size))
}

// Stats is a point-in-time usage snapshot.
type Stats struct {
	LiveObjects int   // outstanding bin-managed allocations
	LiveBytes   int64 // bytes of those allocations, rounded to class sizes
	Extents     int   // extents currently owned by bins
	LargeSpans  int   // outstanding large allocations
	LargeBytes  int64 // span bytes of those, rounded to page size
}

// Stats collects usage counters. Takes each bin lock in turn, so the
// snapshot is per-bin consistent rather than globally atomic.
func (a *Allocator) Stats() Stats {
	var s Stats
	for i := range a.bins {
		b := &a.bins[i]
		b.mu.Lock()
		n := b.nonfull.Len() + len(b.full)
		if b.curr != nil {
			n++
		}
		s.Extents += n
		s.LiveObjects += b.liveSlots
		s.LiveBytes += int64(b.liveSlots) * int64(sizeClasses[i])
		b.mu.Unlock()
	}
	s.LargeSpans = int(a.largeSpans.Load())
	s.LargeBytes = a.largeBytes.Load()
	return s
}
