package engine

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func newTestArena(t *testing.T, size int) *Engine {
	t.Helper()
	mem := make([]byte, size)
	e, err := NewArena(mem)
	require.NoError(t, err)
	return e
}

func TestAllocateBasic(t *testing.T) {
	e := newTestArena(t, 1024)

	off, err := e.Allocate(10)
	require.NoError(t, err)
	require.Equal(t, uintptr(0), off)

	h := e.region.header(off)
	require.EqualValues(t, DefaultMinBlockSize, h.size)
	require.EqualValues(t, 1, h.used)
}

func TestAllocateSplitsDownToFit(t *testing.T) {
	e := newTestArena(t, 1024)

	// A 1024-byte region, HEADER_SIZE=16, MIN_BLOCK_SIZE=32: requesting a
	// payload that only fits in a 64-byte block must leave the buddy
	// halves above it (128, 256, 512) intact as separate free blocks.
	off, err := e.Allocate(40)
	require.NoError(t, err)
	require.Equal(t, uintptr(0), off)
	require.EqualValues(t, 64, e.region.header(0).size)

	require.EqualValues(t, 64, e.region.header(64).size)
	require.EqualValues(t, 0, e.region.header(64).used)
	require.EqualValues(t, 128, e.region.header(128).size)
	require.EqualValues(t, 0, e.region.header(128).used)
	require.EqualValues(t, 256, e.region.header(256).size)
	require.EqualValues(t, 0, e.region.header(256).used)
	require.EqualValues(t, 512, e.region.header(512).size)
	require.EqualValues(t, 0, e.region.header(512).used)
}

func TestZeroSizeAllocationFails(t *testing.T) {
	e := newTestArena(t, 1024)
	_, err := e.Allocate(0)
	require.ErrorIs(t, err, ErrZeroSize)
}

func TestOutOfMemoryWhenNoGrower(t *testing.T) {
	e := newTestArena(t, 64)
	_, err := e.Allocate(1000)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestFreeRejoinsBuddies(t *testing.T) {
	e := newTestArena(t, 1024)

	a, err := e.Allocate(10)
	require.NoError(t, err)
	b, err := e.Allocate(10)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	e.Free(a)
	e.Free(b)

	// Every block should have rejoined back into the single original
	// free block spanning the whole region.
	h := e.region.header(0)
	require.EqualValues(t, 1024, h.size)
	require.EqualValues(t, 0, h.used)
}

func TestFreeDoesNotJoinAcrossUsedBuddy(t *testing.T) {
	e := newTestArena(t, 1024)

	a, err := e.Allocate(10)
	require.NoError(t, err)
	b, err := e.Allocate(10)
	require.NoError(t, err)

	e.Free(a)

	h := e.region.header(a)
	require.EqualValues(t, DefaultMinBlockSize, h.size)
	require.EqualValues(t, 0, h.used)

	bh := e.region.header(b)
	require.EqualValues(t, 1, bh.used)
}

func TestReallocateShrinksInPlace(t *testing.T) {
	e := newTestArena(t, 1024)

	off, err := e.Allocate(100)
	require.NoError(t, err)
	require.EqualValues(t, 128, e.region.header(off).size)

	newOff, err := e.Reallocate(off, 10)
	require.NoError(t, err)
	require.Equal(t, off, newOff)
	require.EqualValues(t, DefaultMinBlockSize, e.region.header(newOff).size)
}

func TestReallocateAbsorbsRightNeighbor(t *testing.T) {
	e := newTestArena(t, 1024)

	a, err := e.Allocate(10)
	require.NoError(t, err)
	require.EqualValues(t, 0, a)

	grown, err := e.Reallocate(a, 40)
	require.NoError(t, err)
	require.Equal(t, a, grown)
	require.EqualValues(t, 64, e.region.header(a).size)
}

func TestReallocateRelocatesWhenNeighborBusy(t *testing.T) {
	e := newTestArena(t, 1024)

	a, err := e.Allocate(10)
	require.NoError(t, err)
	b, err := e.Allocate(10)
	require.NoError(t, err)
	require.Equal(t, e.nextBlock(a), b)

	payload := e.region.bytesAt(a, 10)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	moved, err := e.Reallocate(a, 500)
	require.NoError(t, err)
	require.NotEqual(t, a, moved)

	movedPayload := e.region.bytesAt(moved, 10)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, movedPayload)

	bh := e.region.header(b)
	require.EqualValues(t, 1, bh.used)
}

func TestCallocZeroesMemory(t *testing.T) {
	e := newTestArena(t, 1024)

	off, err := e.Allocate(64)
	require.NoError(t, err)
	payload := e.region.bytesAt(off, 64)
	for i := range payload {
		payload[i] = 0xFF
	}
	e.Free(off)

	off, err = e.Calloc(8, 8)
	require.NoError(t, err)
	buf := e.region.bytesAt(off, 64)
	for _, b := range buf {
		require.EqualValues(t, 0, b)
	}
}

func TestCallocOverflowRejected(t *testing.T) {
	e := newTestArena(t, 1024)
	_, err := e.Calloc(^uintptr(0), 2)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

// stubGrower mimics the reserve-then-commit shape of the real program-break
// primitive (internal/sysbreak): the backing array is reserved up front at
// fixed capacity so Extend only ever advances a length within it, never
// relocates it the way append() would.
type stubGrower struct {
	reserved []byte
	length   uintptr
}

func (g *stubGrower) Extend(n uintptr) (uintptr, error) {
	g.length += n
	return g.length, nil
}

func TestHeapGrowsSoleBlockRegime(t *testing.T) {
	g := &stubGrower{reserved: make([]byte, 4096), length: 128}
	e, err := NewHeap(unsafe.Pointer(&g.reserved[0]), 128, g)
	require.NoError(t, err)

	off, err := e.Allocate(200)
	require.NoError(t, err)
	require.Equal(t, uintptr(0), off)
	require.Equal(t, uintptr(256), e.region.len())
}

func TestWithMinBlockSizeOption(t *testing.T) {
	mem := make([]byte, 1024)
	e, err := NewArena(mem, WithMinBlockSize(128))
	require.NoError(t, err)

	off, err := e.Allocate(4)
	require.NoError(t, err)
	require.EqualValues(t, 128, e.region.header(off).size)
}

func TestInvalidMinBlockSizeRejected(t *testing.T) {
	mem := make([]byte, 1024)

	_, err := NewArena(mem, WithMinBlockSize(24))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewArena(mem, WithMinBlockSize(0))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPointerRoundTrip(t *testing.T) {
	e := newTestArena(t, 1024)
	off, err := e.Allocate(16)
	require.NoError(t, err)

	ptr := e.PointerAt(off)
	require.Equal(t, off, e.OffsetOf(ptr))
}
