package engine

// Growable is the capability an Engine uses when a search exhausts the
// region without finding a fit. The arena variant supplies no Growable
// (nil); the heap-replacement variant supplies one backed by the program
// break (see internal/sysbreak and package heap).
//
// Extend must commit n additional contiguous bytes immediately following
// the current region and return the region's new total length. It is the
// engine, not the Growable, that decides how many bytes to request and
// how to tile the new space into block headers (§4.6); the Growable only
// performs the underlying OS-level extension (§6.4).
type Growable interface {
	Extend(n uintptr) (newTotal uintptr, err error)
}

// findFit locates a free block able to hold n payload bytes, growing the
// region if necessary and possible. It does not split or mark the block;
// callers must do that.
func (e *Engine) findFit(n uintptr) (uintptr, error) {
	if !e.hasCursor {
		return e.scanFrom(0, e.region.len(), n)
	}

	start := e.cursor
	off := start
	for {
		h := e.region.header(off)
		if h.used == 0 && payloadSize(uintptr(h.size)) >= n {
			return off, nil
		}
		off = e.nextBlock(off)
		if off == e.region.len() {
			off = 0
		}
		if off == start {
			break
		}
	}

	reqBlockSize := n + HeaderSize
	offset, ok := e.grow(reqBlockSize)
	if !ok {
		return 0, ErrOutOfMemory
	}
	return offset, nil
}

// scanFrom performs the arena variant's stateless linear scan: walk from
// start to end once, skipping used or too-small blocks. No wraparound, no
// growth.
func (e *Engine) scanFrom(start, end, n uintptr) (uintptr, error) {
	for off := start; off < end; {
		h := e.region.header(off)
		size := uintptr(h.size)
		if h.used == 0 && payloadSize(size) >= n {
			return off, nil
		}
		off += size
	}
	return 0, ErrOutOfMemory
}

// grow implements §4.6's two growth regimes. It returns the offset of a
// block able to satisfy reqBlockSize, or ok=false if the engine has no
// Growable or the OS refused the extension.
func (e *Engine) grow(reqBlockSize uintptr) (uintptr, bool) {
	if e.grower == nil {
		return 0, false
	}

	end := e.region.len()
	first := e.region.header(0)

	// Regime 1: sole free block at the tail.
	if end == uintptr(first.size) && first.used == 0 {
		newSize := uintptr(first.size)
		for newSize < reqBlockSize {
			newSize *= 2
		}
		delta := newSize - uintptr(first.size)
		total, err := e.grower.Extend(delta)
		if err != nil {
			Error("growth (sole block) refused: %v", err)
			return 0, false
		}
		e.region.setLen(total)
		first = e.region.header(0)
		first.size = uint64(newSize)
		Info("grew sole region block to %d bytes", newSize)
		return 0, true
	}

	// Regime 2: general case — double the region by installing a new
	// block at the old end, repeating until the new block is large enough.
	for {
		currentSize := end
		total, err := e.grower.Extend(currentSize)
		if err != nil {
			Error("growth refused at size %d: %v", currentSize, err)
			return 0, false
		}
		e.region.setLen(total)

		newBlock := e.region.header(end)
		newBlock.size = uint64(currentSize)
		newBlock.used = 0
		installed := end

		Info("installed new region block at %d, size %d", installed, currentSize)

		end = total
		if currentSize >= reqBlockSize {
			return installed, true
		}
	}
}
