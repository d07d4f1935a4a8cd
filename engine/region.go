package engine

import "unsafe"

const (
	// MaxAlign is the platform's maximum fundamental scalar alignment.
	// Every payload address the engine hands out satisfies this bound.
	MaxAlign = 16

	// HeaderSize is the offset from a block's base to its payload. It is
	// a multiple of MaxAlign so that payload addresses inherit the
	// header's alignment.
	HeaderSize = 16

	// DefaultMinBlockSize is the smallest total block size (header +
	// payload) an Engine hands out when no WithMinBlockSize Option
	// overrides it. Must be a power of two and satisfy HeaderSize +
	// wordSize <= MinBlockSize; 32 holds a 16-byte payload, enough for
	// one machine word on any platform. This is the MIN_BLOCK_SIZE
	// build-time configuration knob.
	DefaultMinBlockSize = 32
)

// blockHeader is the on-region representation of a block. It is written
// directly into the managed memory at every block boundary; there is no
// separate shadow structure. size is the block's full extent (header +
// payload) and is always a power of two >= the owning Engine's minBlock.
type blockHeader struct {
	size uint64
	used uint32
	_    uint32 // padding to MaxAlign; reserved for future use (e.g. a generation counter)
}

func init() {
	if unsafe.Sizeof(blockHeader{}) != HeaderSize {
		panic("engine: blockHeader size does not match HeaderSize")
	}
}

// region is the raw, byte-addressed memory the engine manages. All unsafe
// pointer arithmetic in the engine is confined to this file; everything
// above operates on plain uintptr offsets from region.base.
type region struct {
	base   unsafe.Pointer
	length uintptr
}

func newRegion(base unsafe.Pointer, length uintptr) region {
	return region{base: base, length: length}
}

func (r *region) len() uintptr {
	return r.length
}

func (r *region) setLen(n uintptr) {
	r.length = n
}

// header returns the block header at the given offset from region start.
func (r *region) header(offset uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Add(r.base, offset))
}

// payload returns a pointer to the usable memory following the header at
// offset.
func (r *region) payload(offset uintptr) unsafe.Pointer {
	return unsafe.Add(r.base, offset+HeaderSize)
}

// bytesAt views n bytes of payload starting at offset as a Go slice, for
// copying and zeroing. The slice must not outlive the engine call that
// produced it, and must never be resliced past n.
func (r *region) bytesAt(offset, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(r.payload(offset)), int(n))
}

// offsetOf converts a live payload pointer back to its block's offset
// from region start. The caller is responsible for the pointer actually
// belonging to this region; a foreign pointer produces undefined offsets
// per spec §7 kind 5.
func (r *region) offsetOf(ptr unsafe.Pointer) uintptr {
	return uintptr(ptr) - uintptr(r.base) - HeaderSize
}

func (r *region) pointerOf(offset uintptr) unsafe.Pointer {
	return r.payload(offset)
}

// payloadSize returns the usable bytes of a block of the given total size.
func payloadSize(blockSize uintptr) uintptr {
	return blockSize - HeaderSize
}

// halfPayload returns the usable bytes of the left half of a block of the
// given total size, once split. Callers must guard blockSize/2 >= HeaderSize
// before trusting the result as non-negative.
func halfPayload(blockSize uintptr) uintptr {
	return blockSize/2 - HeaderSize
}
