package heap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConfigureBeforeFirstUse must run before any other test in this
// package touches the heap (Allocate/Calloc/Reallocate/Free): the
// process heap configures once, on first touch, and Configure refuses
// to apply afterward.
func TestConfigureBeforeFirstUse(t *testing.T) {
	err := Configure(WithInitialRegionSize(8192), WithMinBlockSize(64))
	require.NoError(t, err)

	off, err := Allocate(16)
	require.NoError(t, err)
	Free(off)

	err = Configure(WithInitialRegionSize(4096))
	require.Error(t, err)
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	off, err := Allocate(64)
	require.NoError(t, err)

	ptr := PointerAt(off)
	require.NotNil(t, ptr)
	require.Equal(t, off, OffsetOf(ptr))

	Free(off)
}

func TestGrowsBeyondInitialRegion(t *testing.T) {
	off, err := Allocate(DefaultInitialRegionSize * 2)
	require.NoError(t, err)
	Free(off)
}

func TestConcurrentAllocateFree(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			off, err := Allocate(48)
			require.NoError(t, err)
			Free(off)
		}()
	}
	wg.Wait()
}
