// Package heap implements the process-wide heap-replacement variant of
// the buddy engine (§5, §6.2): a single lazily-initialized region backed
// by internal/sysbreak, grown on demand, with one non-recursive mutex
// guarding every operation. There is exactly one heap per process; it is
// reached through the package-level functions, not a constructor, since
// a second independent heap would contend with the process's only
// program-break reservation.
package heap

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/shenjiangwei/buddyalloc/engine"
	"github.com/shenjiangwei/buddyalloc/internal/sysbreak"
)

// DefaultInitialRegionSize is the number of bytes committed the first
// time the heap is touched, absent a WithInitialRegionSize Option. It is
// a page multiple so every subsequent doubling handed to
// sysbreak.Break.Extend stays page-aligned. This is the
// INITIAL_REGION_SIZE build-time configuration knob from §6.3.
const DefaultInitialRegionSize = 4096

// heapConfig holds the heap's §6.3 build-time tunables.
type heapConfig struct {
	initialRegionSize uintptr
	engineOpts        []engine.Option
}

// Option customizes the process heap. Options only take effect if
// passed to Configure before the first Allocate/Calloc/Reallocate/Free
// call; the heap-replacement region, once born, never reconfigures.
type Option func(*heapConfig)

// WithInitialRegionSize overrides DefaultInitialRegionSize. n must be a
// power of two.
func WithInitialRegionSize(n uintptr) Option {
	return func(c *heapConfig) { c.initialRegionSize = n }
}

// WithMinBlockSize overrides engine.DefaultMinBlockSize for the process
// heap.
func WithMinBlockSize(n uintptr) Option {
	return func(c *heapConfig) { c.engineOpts = append(c.engineOpts, engine.WithMinBlockSize(n)) }
}

var (
	once sync.Once
	mu   sync.Mutex
	eng  *engine.Engine
	brk  *sysbreak.Break

	configMu     sync.Mutex
	pendingOpts  []Option
	configLocked bool
)

// Configure stages options to apply the first time the heap is touched.
// It returns an error if the heap has already been initialized — the
// region's shape is fixed for the life of the process once born.
func Configure(opts ...Option) error {
	configMu.Lock()
	defer configMu.Unlock()
	if configLocked {
		return fmt.Errorf("heap: already initialized, cannot configure")
	}
	pendingOpts = append(pendingOpts, opts...)
	return nil
}

// lazyInit performs the one-time heap setup described in §6.2: reserve
// the address range, commit the initial region, and install a single
// free block spanning it. It runs under sync.Once rather than mu because
// mu is not yet meaningful until eng exists.
//
// Per §7 kind 4, bootstrap failure here is fatal: there is no usable
// heap to recover to, so this panics instead of returning an error that
// every caller would otherwise have to keep re-checking forever.
func lazyInit() {
	once.Do(func() {
		configMu.Lock()
		cfg := heapConfig{initialRegionSize: DefaultInitialRegionSize}
		for _, opt := range pendingOpts {
			opt(&cfg)
		}
		configLocked = true
		configMu.Unlock()

		b, err := sysbreak.New()
		if err != nil {
			panic(fmt.Sprintf("heap: bootstrap failed reserving address space: %v", err))
		}
		if _, err := b.Extend(cfg.initialRegionSize); err != nil {
			panic(fmt.Sprintf("heap: bootstrap failed committing initial region: %v", err))
		}

		e, err := engine.NewHeap(unsafe.Pointer(&b.Base()[0]), cfg.initialRegionSize, b, cfg.engineOpts...)
		if err != nil {
			panic(fmt.Sprintf("heap: bootstrap failed: %v", err))
		}

		brk = b
		eng = e
	})
}

// Allocate reserves at least n bytes from the process heap.
func Allocate(n uintptr) (uintptr, error) {
	lazyInit()
	mu.Lock()
	defer mu.Unlock()
	return eng.Allocate(n)
}

// Calloc reserves nItems*itemSize bytes from the process heap,
// zero-initialized.
func Calloc(nItems, itemSize uintptr) (uintptr, error) {
	lazyInit()
	mu.Lock()
	defer mu.Unlock()
	return eng.Calloc(nItems, itemSize)
}

// Reallocate resizes the block at offset to n bytes, possibly relocating
// it. offset must have been returned by a prior call on this heap and
// not already freed.
func Reallocate(offset, n uintptr) (uintptr, error) {
	lazyInit()
	mu.Lock()
	defer mu.Unlock()
	return eng.Reallocate(offset, n)
}

// Free releases the block at offset. Double-free is undefined behavior
// per §7 kind 5.
func Free(offset uintptr) {
	lazyInit()
	mu.Lock()
	defer mu.Unlock()
	eng.Free(offset)
}

// PointerAt converts a heap offset to a live pointer, and OffsetOf
// converts it back. Both require the heap to already be initialized;
// calling them before any Allocate is a programmer error.
func PointerAt(offset uintptr) unsafe.Pointer {
	return eng.PointerAt(offset)
}

func OffsetOf(ptr unsafe.Pointer) uintptr {
	return eng.OffsetOf(ptr)
}
