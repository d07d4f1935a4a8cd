package arena

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/buddyalloc/engine"
)

func TestInitRoundsDownToPowerOfTwo(t *testing.T) {
	mem := make([]byte, 1000)
	a, err := Init(mem)
	require.NoError(t, err)
	require.EqualValues(t, 512, a.Len())
}

func TestInitRejectsTooSmallRegion(t *testing.T) {
	mem := make([]byte, 8)
	_, err := Init(mem)
	require.ErrorIs(t, err, engine.ErrRegionTooSmall)
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	mem := make([]byte, 1024)
	a, err := Init(mem)
	require.NoError(t, err)

	ptr, err := a.Allocate(100)
	require.NoError(t, err)
	require.NotNil(t, ptr)

	a.Free(ptr)
}

func TestArenaExhaustionReturnsOutOfMemory(t *testing.T) {
	mem := make([]byte, 128)
	a, err := Init(mem)
	require.NoError(t, err)

	_, err = a.Allocate(100)
	require.NoError(t, err)

	_, err = a.Allocate(100)
	require.ErrorIs(t, err, engine.ErrOutOfMemory)
}

func TestReallocateGrowsAndPreservesData(t *testing.T) {
	mem := make([]byte, 1024)
	a, err := Init(mem)
	require.NoError(t, err)

	ptr, err := a.Allocate(8)
	require.NoError(t, err)

	buf := unsafe.Slice((*byte)(ptr), 8)
	copy(buf, []byte("buddyalc"))

	grown, err := a.Reallocate(ptr, 400)
	require.NoError(t, err)

	grownBuf := unsafe.Slice((*byte)(grown), 8)
	require.Equal(t, []byte("buddyalc"), grownBuf)
}

func TestFreeNilIsNoOp(t *testing.T) {
	mem := make([]byte, 1024)
	a, err := Init(mem)
	require.NoError(t, err)

	a.Free(nil)
}

func TestReallocateNilBehavesAsAllocate(t *testing.T) {
	mem := make([]byte, 1024)
	a, err := Init(mem)
	require.NoError(t, err)

	ptr, err := a.Reallocate(nil, 32)
	require.NoError(t, err)
	require.NotNil(t, ptr)
}

func TestInitWithWithMinBlockSizeOption(t *testing.T) {
	mem := make([]byte, 1024)
	a, err := Init(mem, WithMinBlockSize(64))
	require.NoError(t, err)

	ptr, err := a.Allocate(4)
	require.NoError(t, err)
	require.NotNil(t, ptr)
}

func TestCallocZeroesAndSizesCorrectly(t *testing.T) {
	mem := make([]byte, 1024)
	a, err := Init(mem)
	require.NoError(t, err)

	ptr, err := a.Calloc(4, 16)
	require.NoError(t, err)
	buf := unsafe.Slice((*byte)(ptr), 64)
	for _, b := range buf {
		require.EqualValues(t, 0, b)
	}
}
