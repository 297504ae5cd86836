//go:build unix

package malloc

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapSupplier draws every span from an anonymous mapping of its own, so
// released memory goes straight back to the OS. Alignments beyond the OS
// page are met by over-mapping and handing out an aligned base inside the
// mapping; the mapping is kept whole and unmapped in one piece at release,
// so Munmap always sees the exact slice Mmap returned.
//
// Safe for concurrent use.
type MmapSupplier struct {
	mu    sync.Mutex
	spans map[uintptr][]byte // span base -> backing mapping
}

// NewMmapSupplier returns a supplier backed by anonymous mmap.
func NewMmapSupplier() *MmapSupplier {
	return &MmapSupplier{spans: make(map[uintptr][]byte)}
}

// AcquireSpan maps size bytes aligned to align. Returns nil if the
// mapping fails (memory pressure or rlimit).
func (s *MmapSupplier) AcquireSpan(size, align int) unsafe.Pointer {
	if size <= 0 || align&(align-1) != 0 {
		return nil
	}
	pagesz := unix.Getpagesize()
	length := roundUp(size, pagesz)
	if align > pagesz {
		// over-map so an aligned base exists inside the mapping
		length += align
	}
	b, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil
	}
	p := unsafe.Pointer(&b[0])
	if align > pagesz {
		if rem := int(uintptr(p) % uintptr(align)); rem != 0 {
			p = unsafe.Add(p, align-rem)
		}
	}
	s.mu.Lock()
	s.spans[uintptr(p)] = b
	s.mu.Unlock()
	return p
}

// ReleaseSpan unmaps the span returned by AcquireSpan at p.
// Panics on addresses this supplier never handed out.
func (s *MmapSupplier) ReleaseSpan(p unsafe.Pointer, size int) {
	s.mu.Lock()
	b, ok := s.spans[uintptr(p)]
	delete(s.spans, uintptr(p))
	s.mu.Unlock()
	if !ok {
		panic("mmap: release of span not mapped by this supplier")
	}
	if err := unix.Munmap(b); err != nil {
		panic(err)
	}
}
