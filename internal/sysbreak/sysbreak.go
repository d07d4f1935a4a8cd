//go:build linux || darwin
// +build linux darwin

// Package sysbreak synthesizes the "program break" primitive the
// heap-replacement variant needs (§6.4) on platforms that have no sbrk
// equivalent exposed to Go. A large address range is reserved once with
// PROT_NONE (never backed by physical pages), and each Extend call
// commits the next stretch of it with mprotect, so the region's base
// address never moves — the same invariant sbrk gives the variants that
// do have it.
package sysbreak

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// reservationSize bounds how much address space a single Break reserves
// up front. It is never backed by physical memory until committed, so
// this is cheap; it only needs to exceed the largest heap the process
// will ever grow to.
const reservationSize = 16 << 30 // 16 GiB

// Break is a monotonically growing, fixed-base memory region backed by
// an anonymous mmap reservation and mprotect-committed a page range at a
// time. It implements engine.Growable.
type Break struct {
	base      []byte
	committed uintptr
}

// New reserves the address range and returns a Break with zero bytes
// committed. Call Extend to commit the initial region before use.
func New() (*Break, error) {
	base, err := unix.Mmap(-1, 0, reservationSize, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("sysbreak: reserve %d bytes: %w", reservationSize, err)
	}
	return &Break{base: base}, nil
}

// Base returns the fixed address of the reservation's first byte. It
// never changes for the lifetime of the Break.
func (b *Break) Base() []byte {
	return b.base
}

// Extend commits n additional bytes immediately following the
// currently-committed range and returns the new total committed length.
// It fails if doing so would exceed the reservation. n and the
// currently-committed length must both be page-size multiples; package
// heap extends first by its initial region size and afterwards only by
// multiples of it, so this holds whenever that size is a page multiple.
func (b *Break) Extend(n uintptr) (uintptr, error) {
	newTotal := b.committed + n
	if newTotal > uintptr(len(b.base)) {
		return 0, fmt.Errorf("sysbreak: extend by %d would exceed %d-byte reservation", n, len(b.base))
	}

	region := b.base[b.committed:newTotal]
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, fmt.Errorf("sysbreak: commit %d bytes: %w", n, err)
	}

	b.committed = newTotal
	return newTotal, nil
}

// Close releases the entire reservation. Any outstanding pointers into
// the committed range become invalid.
func (b *Break) Close() error {
	return unix.Munmap(b.base)
}
