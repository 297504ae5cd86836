package malloc

import (
	"sync"
	"sync/atomic"
)

// The process-wide allocator is built lazily and lives until exit.
// Everything it needs is injectable through New; Default exists for
// callers that just want a heap.
var (
	defaultOnce  sync.Once
	defaultAlloc *Allocator
	defaultArena atomic.Int64
)

// SetDefaultArenaSize overrides the arena size used by Default.
// It has no effect once Default has been called.
func SetDefaultArenaSize(n int) {
	defaultArena.Store(int64(n))
}

// Default returns the process-wide allocator, constructing it on first
// use over an ArenaSupplier of the configured size.
func Default() *Allocator {
	defaultOnce.Do(func() {
		size := int(defaultArena.Load())
		if size == 0 {
			size = DefaultArenaSize
		}
		s, err := NewArenaSupplier(size)
		if err != nil {
			panic(err)
		}
		defaultAlloc = New(s)
	})
	return defaultAlloc
}
