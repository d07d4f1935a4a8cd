// Package engine implements the block-structured buddy engine shared by
// the arena and heap-replacement variants: region layout, buddy
// arithmetic, split/join, search & fit, and the growth protocol.
package engine

import "errors"

// Error definitions. Recoverable conditions return one of these sentinels;
// caller protocol violations (double-free, foreign-pointer free) are
// undefined behavior and are not detected here.
var (
	// ErrZeroSize is returned for a zero-byte allocation request.
	ErrZeroSize = errors.New("engine: zero-sized allocation")
	// ErrOutOfMemory is returned when no block can satisfy a request and
	// the region cannot be grown (or is not growable).
	ErrOutOfMemory = errors.New("engine: out of memory")
	// ErrRequestTooLarge is returned when a request exceeds the largest
	// block the engine could ever produce.
	ErrRequestTooLarge = errors.New("engine: requested size exceeds largest possible block")
	// ErrRegionTooSmall is returned when a region is initialized below
	// the effective MIN_BLOCK_SIZE.
	ErrRegionTooSmall = errors.New("engine: region smaller than MIN_BLOCK_SIZE")
	// ErrInvalidConfig is returned when an Option selects a MIN_BLOCK_SIZE
	// (or other build-time tunable) that violates §6.3's constraints,
	// e.g. a non-power-of-two or a value too small to hold a header plus
	// one machine word.
	ErrInvalidConfig = errors.New("engine: invalid build-time configuration")
)
