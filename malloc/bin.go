package malloc

import (
	"sync"
	"unsafe"

	"github.com/cloudwego/slabx/container/pairheap"
)

// bin is the per-size-class state machine. An extent is in exactly one
// place: curr (the active allocation target), the nonfull queue, or the
// full set. One lock protects all of it; a call into the supplier may run
// under this lock but never under the radix lock.
type bin struct {
	mu        sync.Mutex
	class     int
	curr      *extent
	nonfull   *pairheap.Heap[*extent]
	full      map[*extent]struct{}
	liveSlots int
	empties   int // retained empty extents, bounded by the allocator knob
}

func (b *bin) init(class int) {
	b.class = class
	b.nonfull = pairheap.New[*extent]((*extent).less)
	b.full = make(map[*extent]struct{})
}

// allocSlot returns the address of a free slot in one of the bin's
// extents, creating a fresh extent from the supplier when none has room.
// Returns nil only when the supplier is out of memory.
func (a *Allocator) allocSlot(b *bin) unsafe.Pointer {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.curr == nil {
			if e, ok := b.nonfull.Pop(); ok {
				b.curr = e
			} else {
				span := a.supplier.AcquireSpan(ExtentSize, ExtentSize)
				if span == nil {
					return nil
				}
				e := newExtent(a.birth.Add(1), b.class, span)
				a.radix.insert(e)
				b.curr = e
			}
		}
		e := b.curr
		p, ok := e.takeSlot()
		if !ok {
			// exhausted; park it and retry with another extent
			b.full[e] = struct{}{}
			b.curr = nil
			continue
		}
		if e.retained && e.used == 1 {
			e.retained = false
			b.empties--
		}
		b.liveSlots++
		return p
	}
}

// freeSlot clears the slot covering addr and updates the extent's place in
// the bin. e was resolved through the radix index, so addr is covered by
// e's span; releaseSlot still panics if the slot itself is bogus.
func (a *Allocator) freeSlot(b *bin, e *extent, addr uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e.releaseSlot(addr)
	b.liveSlots--

	if _, wasFull := b.full[e]; wasFull {
		delete(b.full, e)
		if e.used == 0 {
			// single-slot class: full straight to empty
			a.retireEmpty(b, e, false)
		} else {
			b.nonfull.Push(e)
		}
		return
	}
	if e.used == 0 && e == b.curr {
		a.retireEmpty(b, e, true)
	}
	// An extent that drains to empty while queued in the nonfull heap is
	// always kept: the heap has no delete-by-key, and birth ordering makes
	// it an early reuse candidate anyway.
}

// retireEmpty applies the retention policy to an empty extent the bin can
// reach. A retained extent goes into the nonfull queue rather than staying
// current, so birth ordering decides when it serves again and the oldest
// extent always wins the next refill. Beyond the budget the span goes back
// to the supplier and its index entries are dropped. fromCurr tells
// whether the extent occupies the curr slot.
func (a *Allocator) retireEmpty(b *bin, e *extent, fromCurr bool) {
	if fromCurr {
		b.curr = nil
	}
	if b.empties < a.retainEmpty {
		b.empties++
		e.retained = true
		b.nonfull.Push(e)
		return
	}
	a.radix.remove(e)
	a.supplier.ReleaseSpan(e.base, e.size)
}
