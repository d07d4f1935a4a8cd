// Package arena implements the caller-supplied-region variant of the
// buddy engine: a fixed memory block is handed to Init once, never
// grows, and every operation is a stateless linear scan from the start
// of the region. Callers are responsible for their own synchronization;
// an Arena has no internal lock, matching the variant's single-threaded
// or externally-synchronized usage model.
package arena

import (
	"math/bits"
	"unsafe"

	"github.com/shenjiangwei/buddyalloc/engine"
)

// Option customizes an Arena's build-time tunables (§6.3). It is an
// alias of engine.Option so WithMinBlockSize applies identically to both
// variants, following the functional-options idiom used across the pack.
type Option = engine.Option

// WithMinBlockSize overrides engine.DefaultMinBlockSize for this Arena.
var WithMinBlockSize = engine.WithMinBlockSize

// Arena manages allocation within a single, caller-owned memory region.
// The zero value is not usable; create one with Init.
type Arena struct {
	eng *engine.Engine
}

// Init carves an Arena out of mem. Per §6.1, the usable region is rounded
// down to the largest power of two that fits within len(mem); any
// remainder at the tail is left untouched and never handed out.
func Init(mem []byte, opts ...Option) (*Arena, error) {
	minBlock, err := engine.ResolveMinBlockSize(opts...)
	if err != nil {
		return nil, err
	}
	if uintptr(len(mem)) < minBlock {
		return nil, engine.ErrRegionTooSmall
	}

	usable := 1 << bits.Len(uint(len(mem)-1))
	if usable > len(mem) {
		usable >>= 1
	}
	if uintptr(usable) < minBlock {
		return nil, engine.ErrRegionTooSmall
	}

	eng, err := engine.NewArena(mem[:usable], opts...)
	if err != nil {
		return nil, err
	}
	engine.Info("arena initialized: %d bytes usable of %d supplied", usable, len(mem))
	return &Arena{eng: eng}, nil
}

// Len returns the number of bytes under management (after power-of-two
// rounding), not the original slice length passed to Init.
func (a *Arena) Len() uintptr {
	return a.eng.Len()
}

// Allocate reserves at least n bytes and returns a pointer to them, or
// engine.ErrOutOfMemory if no block in the region can satisfy the
// request and engine.ErrZeroSize if n is zero.
func (a *Arena) Allocate(n uintptr) (unsafe.Pointer, error) {
	off, err := a.eng.Allocate(n)
	if err != nil {
		return nil, err
	}
	return a.eng.PointerAt(off), nil
}

// Calloc reserves nItems*itemSize bytes, zero-initialized.
func (a *Arena) Calloc(nItems, itemSize uintptr) (unsafe.Pointer, error) {
	off, err := a.eng.Calloc(nItems, itemSize)
	if err != nil {
		return nil, err
	}
	return a.eng.PointerAt(off), nil
}

// Reallocate resizes the block at ptr to n bytes, possibly relocating it.
// ptr must have been returned by a prior Allocate/Calloc/Reallocate call
// on this Arena and not already freed; violating this is undefined
// behavior per §7. Per §4.9, ptr == nil behaves as Allocate(n).
func (a *Arena) Reallocate(ptr unsafe.Pointer, n uintptr) (unsafe.Pointer, error) {
	if ptr == nil {
		return a.Allocate(n)
	}

	off := a.eng.OffsetOf(ptr)
	newOff, err := a.eng.Reallocate(off, n)
	if err != nil {
		return nil, err
	}
	return a.eng.PointerAt(newOff), nil
}

// Free releases the block at ptr back to the arena. ptr must have been
// returned by a prior Allocate/Calloc/Reallocate call on this Arena and
// not already freed; double-free is undefined behavior per §7 kind 5.
// Per §4.8, ptr == nil is a no-op.
func (a *Arena) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	a.eng.Free(a.eng.OffsetOf(ptr))
}
