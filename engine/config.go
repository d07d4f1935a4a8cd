package engine

import "math/bits"

// config holds the engine's build-time tunables (§6.3 MIN_BLOCK_SIZE).
// Go has no preprocessor macros, so these are resolved once at
// construction time via functional options instead, the same idiom
// other_examples' arena.Option and cloudwego-gopkg's gopool.Option use.
type config struct {
	minBlockSize uintptr
}

// Option customizes an Engine at construction time.
type Option func(*config)

// WithMinBlockSize overrides DefaultMinBlockSize. n must be a power of
// two large enough to hold a header plus one machine word; NewArena and
// NewHeap reject an invalid n with ErrInvalidConfig.
func WithMinBlockSize(n uintptr) Option {
	return func(c *config) {
		c.minBlockSize = n
	}
}

func buildConfig(opts []Option) (config, error) {
	c := config{minBlockSize: DefaultMinBlockSize}
	for _, opt := range opts {
		opt(&c)
	}
	if c.minBlockSize == 0 || bits.OnesCount64(uint64(c.minBlockSize)) != 1 {
		return config{}, ErrInvalidConfig
	}
	if c.minBlockSize < HeaderSize+8 {
		return config{}, ErrInvalidConfig
	}
	return c, nil
}

// ResolveMinBlockSize validates opts and returns the MIN_BLOCK_SIZE they
// select, without constructing an Engine. Callers that must size or
// round a region before calling NewArena/NewHeap (package arena's
// power-of-two rounding) use this to apply the same value consistently.
func ResolveMinBlockSize(opts ...Option) (uintptr, error) {
	c, err := buildConfig(opts)
	if err != nil {
		return 0, err
	}
	return c.minBlockSize, nil
}
