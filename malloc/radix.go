package malloc

import "sync"

const (
	// 36 significant page-number bits split into three 12-bit segments,
	// covering 48 bits of address space at 4KiB granularity.
	radixBits  = 12
	radixSlots = 1 << radixBits
	radixMask  = radixSlots - 1

	l1CacheSlots = 64
	l2CacheSlots = 8
)

type radixLeaf [radixSlots]*extent
type radixMid [radixSlots]*radixLeaf

// cacheSlot caches one page-number -> extent mapping.
// Page number 0 doubles as "empty": address zero is never owned.
type cacheSlot struct {
	page uintptr
	ext  *extent
}

// radixIndex maps every owned 4KiB page back to the extent covering it.
// A fixed-depth trie over the page-number bits, fronted by a direct-mapped
// L1 and a small move-to-front L2 to make repeated hits on hot pages O(1).
// One lock guards the trie and both caches. Lookups never allocate;
// intermediate tables are built at insert time and left in place after
// remove.
type radixIndex struct {
	mu   sync.Mutex
	root [radixSlots]*radixMid
	l1   [l1CacheSlots]cacheSlot
	l2   [l2CacheSlots]cacheSlot
}

// l1Hash spreads page numbers over the L1 slots. Fibonacci hashing on the
// full page number; neighbouring pages land in different slots.
func l1Hash(pn uintptr) int {
	return int(uint64(pn) * 0x9E3779B97F4A7C15 >> (64 - 6)) // 6 = log2(l1CacheSlots)
}

// lookup resolves addr to its owning extent, or nil if no owned page
// covers addr.
func (r *radixIndex) lookup(addr uintptr) *extent {
	pn := addr >> pageShift
	r.mu.Lock()
	e := r.lookupLocked(pn)
	r.mu.Unlock()
	return e
}

func (r *radixIndex) lookupLocked(pn uintptr) *extent {
	s := &r.l1[l1Hash(pn)]
	if s.page == pn {
		return s.ext
	}
	for i := range r.l2 {
		if r.l2[i].page != pn {
			continue
		}
		// promote to L1; the displaced L1 occupant moves to the front
		// of L2, shifting the slots above the hit down over it
		hit := r.l2[i]
		copy(r.l2[1:i+1], r.l2[:i])
		r.l2[0] = *s
		*s = hit
		return hit.ext
	}
	e := r.walk(pn)
	if e != nil {
		r.fill(pn, e)
	}
	return e
}

// walk is the trie fallback: three indexed loads, no search.
func (r *radixIndex) walk(pn uintptr) *extent {
	if pn>>(3*radixBits) != 0 {
		return nil
	}
	mid := r.root[pn>>(2*radixBits)&radixMask]
	if mid == nil {
		return nil
	}
	leaf := mid[pn>>radixBits&radixMask]
	if leaf == nil {
		return nil
	}
	return leaf[pn&radixMask]
}

// fill installs pn in L1 after a trie hit, spilling the displaced occupant
// into L2's front.
func (r *radixIndex) fill(pn uintptr, e *extent) {
	s := &r.l1[l1Hash(pn)]
	if s.page != 0 {
		copy(r.l2[1:], r.l2[:l2CacheSlots-1])
		r.l2[0] = *s
	}
	*s = cacheSlot{page: pn, ext: e}
}

// insert registers every page of e's span. Called once per extent, after
// the span has been obtained from the supplier; the supplier call itself
// never runs under this lock.
func (r *radixIndex) insert(e *extent) {
	first := e.addr >> pageShift
	last := (e.addr + uintptr(e.size) - 1) >> pageShift
	if last>>(3*radixBits) != 0 {
		panic("malloc: span beyond indexable address range")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for pn := first; pn <= last; pn++ {
		hi := pn >> (2 * radixBits) & radixMask
		mid := r.root[hi]
		if mid == nil {
			mid = new(radixMid)
			r.root[hi] = mid
		}
		leaf := mid[pn>>radixBits&radixMask]
		if leaf == nil {
			leaf = new(radixLeaf)
			mid[pn>>radixBits&radixMask] = leaf
		}
		leaf[pn&radixMask] = e
	}
}

// remove drops every page of e's span and purges both cache tiers.
// Must run before the span is returned to the supplier.
func (r *radixIndex) remove(e *extent) {
	first := e.addr >> pageShift
	last := (e.addr + uintptr(e.size) - 1) >> pageShift
	r.mu.Lock()
	defer r.mu.Unlock()
	for pn := first; pn <= last; pn++ {
		mid := r.root[pn>>(2*radixBits)&radixMask]
		if mid == nil {
			continue
		}
		leaf := mid[pn>>radixBits&radixMask]
		if leaf == nil {
			continue
		}
		leaf[pn&radixMask] = nil
		if s := &r.l1[l1Hash(pn)]; s.page == pn {
			*s = cacheSlot{}
		}
		for i := range r.l2 {
			if r.l2[i].page == pn {
				r.l2[i] = cacheSlot{}
			}
		}
	}
}
