package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClassTable(t *testing.T) {
	// strictly increasing, multiples of 8, bounded by the extent unit
	for i := 1; i < numClasses; i++ {
		assert.Greater(t, sizeClasses[i], sizeClasses[i-1])
	}
	for _, c := range sizeClasses {
		assert.Zero(t, c%8, "class=%d", c)
		assert.LessOrEqual(t, c, ExtentSize)
	}
	assert.Equal(t, MaxClassSize, sizeClasses[numClasses-1])
}

func TestClassForSize(t *testing.T) {
	// exhaustive: smallest class >= size for everything in range
	for size := 1; size <= MaxClassSize; size++ {
		i, ok := classForSize(size)
		require.True(t, ok, "size=%d", size)
		require.GreaterOrEqual(t, sizeClasses[i], size)
		if i > 0 {
			require.Less(t, sizeClasses[i-1], size)
		}
	}

	_, ok := classForSize(MaxClassSize + 1)
	assert.False(t, ok)
	_, ok = classForSize(1_000_000)
	assert.False(t, ok)

	// 9 rounds up to the 16-byte class
	i, ok := classForSize(9)
	require.True(t, ok)
	assert.Equal(t, 16, sizeClasses[i])
}

func TestClassForLayout(t *testing.T) {
	tests := []struct {
		size, align int
		wantClass   int // class size; -1 means large path
	}{
		{9, 0, 16},
		{9, 8, 16},
		{24, 8, 32},
		{9, 16, 16},
		{24, 16, 32},
		{40, 16, 48},      // 40 -> 48, already a multiple of 16
		{40, 32, 64},      // 48 skipped, not a multiple of 32
		{100, 4096, 4096}, // alignment dominates
		{5000, 4096, 8192},
		{9000, 4096, 12288},
		{13000, 4096, -1}, // no class >= 13000 is a multiple of 4096
		{100, 16384, -1}, // beyond any class
		{MaxClassSize, 8, MaxClassSize},
		{MaxClassSize + 1, 8, -1},
	}
	for _, tt := range tests {
		i, ok := classForLayout(tt.size, tt.align)
		if tt.wantClass == -1 {
			assert.False(t, ok, "size=%d align=%d", tt.size, tt.align)
			continue
		}
		require.True(t, ok, "size=%d align=%d", tt.size, tt.align)
		assert.Equal(t, tt.wantClass, sizeClasses[i], "size=%d align=%d", tt.size, tt.align)
	}
}
