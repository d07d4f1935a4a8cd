package engine

// isLeft reports whether a block at the given offset (measured from
// region start) and size is the left member of its buddy pair, per
// Invariant 3: offset mod (2*size) == 0. Since size is always a power of
// two and offset is always a multiple of size, this reduces to a single
// bit test on offset.
func isLeft(offset, size uintptr) bool {
	return offset&size == 0
}

// buddyOffset returns the offset of b's sibling, without checking whether
// a block actually exists there.
func buddyOffset(offset, size uintptr) uintptr {
	if isLeft(offset, size) {
		return offset + size
	}
	return offset - size
}

// nextBlock returns the offset immediately following the block at offset.
func (e *Engine) nextBlock(offset uintptr) uintptr {
	return offset + uintptr(e.region.header(offset).size)
}

// split halves a free block, installing a new free block header for the
// right half. Preconditions (caller-enforced): the block at offset is
// free and its size is >= 2*MinBlockSize.
func (e *Engine) split(offset uintptr) {
	h := e.region.header(offset)
	newSize := uintptr(h.size) / 2
	h.size = uint64(newSize)

	right := e.region.header(offset + newSize)
	right.size = uint64(newSize)
	right.used = 0

	Debug("split block at %d into two halves of size %d", offset, newSize)
}

// join coalesces a just-freed block upward with successive free buddies of
// equal size, stopping at the first buddy that doesn't exist, isn't free,
// or isn't the same size. It returns the offset of the resulting block,
// which is always marked free on return.
func (e *Engine) join(offset uintptr) uintptr {
	h := e.region.header(offset)
	size := uintptr(h.size)

	for {
		bOff := buddyOffset(offset, size)
		if bOff >= e.region.len() {
			break
		}
		bh := e.region.header(bOff)
		if bh.used != 0 || uintptr(bh.size) != size {
			break
		}

		if bOff < offset {
			offset = bOff
		}
		size *= 2
		h = e.region.header(offset)
		h.size = uint64(size)

		Debug("joined buddy at %d into block at %d, new size %d", bOff, offset, size)
	}

	h = e.region.header(offset)
	h.used = 0
	return offset
}
