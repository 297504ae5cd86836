//go:build unix

package malloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMmapSupplier(t *testing.T) {
	s := NewMmapSupplier()

	p := s.AcquireSpan(ExtentSize, ExtentSize)
	require.NotNil(t, p)
	assert.Zero(t, uintptr(p)%ExtentSize)

	// mapped memory is writable end to end
	b := unsafe.Slice((*byte)(p), ExtentSize)
	b[0], b[ExtentSize-1] = 1, 2
	assert.Equal(t, byte(1), b[0])
	assert.Equal(t, byte(2), b[ExtentSize-1])

	s.ReleaseSpan(p, ExtentSize)
}

func TestMmapSupplierAlignment(t *testing.T) {
	s := NewMmapSupplier()

	for _, align := range []int{1 << 16, 1 << 20, 4 << 20} {
		p := s.AcquireSpan(ExtentSize, align)
		require.NotNil(t, p, "align=%d", align)
		assert.Zero(t, uintptr(p)%uintptr(align), "align=%d", align)

		b := unsafe.Slice((*byte)(p), ExtentSize)
		b[0], b[ExtentSize-1] = 1, 2
		s.ReleaseSpan(p, ExtentSize)
	}

	assert.Nil(t, s.AcquireSpan(ExtentSize, 3<<16)) // not a power of two
	assert.Nil(t, s.AcquireSpan(0, 8))
}

func TestMmapSupplierInterleaved(t *testing.T) {
	s := NewMmapSupplier()

	// several aligned spans live at once, released out of order; every
	// release must find its own mapping
	p1 := s.AcquireSpan(ExtentSize, ExtentSize)
	p2 := s.AcquireSpan(ExtentSize, ExtentSize)
	p3 := s.AcquireSpan(1<<20, 1<<20)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	require.NotNil(t, p3)
	assert.NotEqual(t, p1, p2)

	s.ReleaseSpan(p2, ExtentSize)
	s.ReleaseSpan(p1, ExtentSize)
	s.ReleaseSpan(p3, 1<<20)
}

func TestMmapSupplierForeignRelease(t *testing.T) {
	s := NewMmapSupplier()
	foreign := new([ExtentSize]byte)
	assert.Panics(t, func() {
		s.ReleaseSpan(unsafe.Pointer(foreign), ExtentSize)
	})

	// a released span cannot be released again
	p := s.AcquireSpan(ExtentSize, ExtentSize)
	require.NotNil(t, p)
	s.ReleaseSpan(p, ExtentSize)
	assert.Panics(t, func() { s.ReleaseSpan(p, ExtentSize) })
}

func TestMmapSupplierWithAllocator(t *testing.T) {
	a := New(NewMmapSupplier())

	p1 := a.Alloc(100, 8)
	require.NotNil(t, p1)
	p2 := a.Alloc(1<<20, 4096)
	require.NotNil(t, p2)
	assert.Zero(t, uintptr(p2)%4096)

	a.Free(p1, 100, 8)
	a.Free(p2, 1<<20, 4096)

	st := a.Stats()
	assert.Equal(t, 0, st.LiveObjects)
	assert.Equal(t, 0, st.LargeSpans)
}
