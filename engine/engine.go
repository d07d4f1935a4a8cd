package engine

import "unsafe"

// Engine is the block-structured buddy engine: the data layout of blocks
// within a region, and the search/split/join/growth protocols that
// operate on it. It is not safe for concurrent use by itself — the arena
// variant requires external synchronization (§5), and the heap-
// replacement variant wraps an Engine with its own mutex rather than
// re-entering these methods from within themselves, so no internal
// locking belongs here (see design notes on recursive locking).
type Engine struct {
	region    region
	hasCursor bool
	cursor    uintptr
	grower    Growable
	minBlock  uintptr
}

// newEngine wraps a region of the given length in an Engine without
// writing any block header; its callers (NewArena and NewHeap) install the
// single free block covering [0, length) afterwards. hasCursor selects the
// rotating-cursor heap search strategy over the arena's stateless linear
// scan; grower is nil for a non-growing arena.
func newEngine(base unsafe.Pointer, length uintptr, hasCursor bool, grower Growable, minBlock uintptr) *Engine {
	return &Engine{
		region:    newRegion(base, length),
		hasCursor: hasCursor,
		grower:    grower,
		minBlock:  minBlock,
	}
}

// NewArena builds a non-growing Engine over mem, installing one free
// block spanning the whole slice. Callers (package arena) are responsible
// for rounding the slice down to a power of two first, using the same
// MIN_BLOCK_SIZE opts select (see ResolveMinBlockSize).
func NewArena(mem []byte, opts ...Option) (*Engine, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	if uintptr(len(mem)) < cfg.minBlockSize {
		return nil, ErrRegionTooSmall
	}

	base := unsafe.Pointer(&mem[0])
	e := newEngine(base, uintptr(len(mem)), false, nil, cfg.minBlockSize)
	h := e.region.header(0)
	h.size = uint64(len(mem))
	h.used = 0
	return e, nil
}

// NewHeap builds a growable Engine over an already-extended region of the
// given length, with one free block installed spanning it. base must
// remain valid as grower.Extend grows the region monotonically from it.
func NewHeap(base unsafe.Pointer, initialLength uintptr, grower Growable, opts ...Option) (*Engine, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	if initialLength < cfg.minBlockSize {
		return nil, ErrRegionTooSmall
	}

	e := newEngine(base, initialLength, true, grower, cfg.minBlockSize)
	h := e.region.header(0)
	h.size = uint64(initialLength)
	h.used = 0
	return e, nil
}

// Base returns the address of the region's first block header.
func (e *Engine) Base() unsafe.Pointer {
	return e.region.base
}

// Len returns the region's current total length in bytes.
func (e *Engine) Len() uintptr {
	return e.region.len()
}

// PointerAt converts a block offset to the live payload address.
func (e *Engine) PointerAt(offset uintptr) unsafe.Pointer {
	return e.region.pointerOf(offset)
}

// OffsetOf converts a live payload address back to its block's offset.
func (e *Engine) OffsetOf(ptr unsafe.Pointer) uintptr {
	return e.region.offsetOf(ptr)
}

// maxPayload bounds the largest payload any block could ever hold: one
// bit below the width of uintptr, so that rounding a request up to a
// power-of-two block size can never overflow.
const maxPayload = (^uintptr(0))>>1 - HeaderSize

// Allocate implements §4.7: search, split down to fit, mark used.
func (e *Engine) Allocate(n uintptr) (uintptr, error) {
	if n == 0 {
		return 0, ErrZeroSize
	}
	if n > maxPayload {
		return 0, ErrRequestTooLarge
	}

	offset, err := e.findFit(n)
	if err != nil {
		return 0, err
	}

	offset = e.splitDown(offset, n)
	h := e.region.header(offset)
	h.used = 1
	e.advanceCursorPast(offset)

	Debug("allocated %d bytes at offset %d (block size %d)", n, offset, h.size)
	return offset, nil
}

// splitDown repeatedly halves the block at offset while the left half
// would still fit n bytes and be no smaller than the engine's MIN_BLOCK_SIZE
// (§4.5 "best fit by repeated splitting").
func (e *Engine) splitDown(offset, n uintptr) uintptr {
	h := e.region.header(offset)
	for halfPayload(uintptr(h.size)) >= n && uintptr(h.size) > e.minBlock {
		e.split(offset)
		h = e.region.header(offset)
	}
	return offset
}

func (e *Engine) advanceCursorPast(offset uintptr) {
	if !e.hasCursor {
		return
	}
	e.cursor = e.nextBlock(offset)
	if e.cursor == e.region.len() {
		e.cursor = 0
	}
}

// Free implements §4.8: join with free buddies, then update the cursor to
// the resulting block. ptr validity is the caller's responsibility per
// §7 kind 5 — double-free and foreign pointers are undefined behavior.
func (e *Engine) Free(offset uintptr) {
	h := e.region.header(offset)
	h.used = 0
	joined := e.join(offset)
	if e.hasCursor {
		e.cursor = joined
	}
	Debug("freed block, offset after join %d", joined)
}

// Reallocate implements §4.9's three phases, with the Open Question
// resolutions from SPEC_FULL.md §CORE SPEC applied: absorption is
// probed before it is committed, and relocation allocates the
// replacement before freeing the original.
func (e *Engine) Reallocate(offset, n uintptr) (uintptr, error) {
	if n == 0 {
		e.Free(offset)
		return 0, ErrZeroSize
	}

	h := e.region.header(offset)
	oldSize := uintptr(h.size)
	oldPayload := payloadSize(oldSize)

	// Phase 1: shrink in place.
	if oldPayload >= n {
		offset = e.splitDown(offset, n)
		h = e.region.header(offset)
		h.used = 1
		e.advanceCursorPast(offset)
		return offset, nil
	}

	// Phase 2: rightward absorption.
	if newSize, ok := e.tryAbsorb(offset, oldSize, n); ok {
		h = e.region.header(offset)
		h.size = uint64(newSize)
		h.used = 1
		e.advanceCursorPast(offset)
		Debug("reallocate absorbed neighbors, block at %d now size %d", offset, newSize)
		return offset, nil
	}

	// Phase 3: relocate. Allocate the replacement first so the original
	// block — still marked used — can never be handed back out as the
	// new block; this is what makes the subsequent copy non-overlapping.
	newOffset, err := e.Allocate(n)
	if err != nil {
		return 0, ErrOutOfMemory
	}
	e.copyPayload(newOffset, offset, oldPayload)
	e.Free(offset)
	return newOffset, nil
}

// tryAbsorb probes whether offset's block can grow rightward to hold n
// payload bytes by absorbing successive free right-side buddies, without
// mutating any header. It returns the achievable block size and true only
// if that size satisfies n; callers commit the result themselves.
func (e *Engine) tryAbsorb(offset, size, n uintptr) (uintptr, bool) {
	virtual := size
	for payloadSize(virtual) < n {
		if !isLeft(offset, virtual) {
			return 0, false
		}
		bOff := offset + virtual
		if bOff >= e.region.len() {
			return 0, false
		}
		bh := e.region.header(bOff)
		if bh.used != 0 || uintptr(bh.size) != virtual {
			return 0, false
		}
		virtual *= 2
	}
	return virtual, true
}

func (e *Engine) copyPayload(dstOffset, srcOffset, n uintptr) {
	dst := e.region.bytesAt(dstOffset, n)
	src := e.region.bytesAt(srcOffset, n)
	copy(dst, src)
}

// Calloc implements §4.10: nItems*itemSize bytes, zero-initialized. Go is
// a checked platform in the spec's sense, so the product is guarded
// against overflow rather than left to wrap silently.
func (e *Engine) Calloc(nItems, itemSize uintptr) (uintptr, error) {
	if nItems != 0 && itemSize > ^uintptr(0)/nItems {
		return 0, ErrOutOfMemory
	}
	total := nItems * itemSize
	offset, err := e.Allocate(total)
	if err != nil {
		return 0, err
	}
	buf := e.region.bytesAt(offset, total)
	for i := range buf {
		buf[i] = 0
	}
	return offset, nil
}
