// Command buddybench drives the arena and heap-replacement engines under
// synthetic load, for manual inspection and CPU/heap profiling during
// development. It is not part of the public API.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"sync"
	"unsafe"

	"github.com/shenjiangwei/buddyalloc/arena"
	"github.com/shenjiangwei/buddyalloc/engine"
	"github.com/shenjiangwei/buddyalloc/heap"
)

var (
	mode       = flag.String("mode", "arena", "workload: arena | heap | stress10t | stress100t")
	regionSize = flag.Int("region", 1<<20, "arena region size in bytes")
	iterations = flag.Int("iterations", 100000, "allocate/free iterations per goroutine")
	minSize    = flag.Int("min-size", 8, "minimum allocation payload size")
	maxSize    = flag.Int("max-size", 4096, "maximum allocation payload size")
	cpuProfile = flag.String("cpuprofile", "", "write CPU profile to file")
	memProfile = flag.String("memprofile", "", "write heap profile to file")
	logLevel   = flag.String("log-level", "error", "engine log verbosity: none | error | info | debug")
	verbose    = flag.Bool("v", false, "print per-run summary")
)

func main() {
	flag.Parse()
	configureLogging()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "buddybench:", err)
			os.Exit(1)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	switch *mode {
	case "arena":
		runArena(*regionSize, *iterations)
	case "heap":
		runHeap(1, *iterations)
	case "stress10t":
		runHeap(10, *iterations)
	case "stress100t":
		runHeap(100, *iterations)
	default:
		fmt.Fprintf(os.Stderr, "buddybench: unknown mode %q\n", *mode)
		os.Exit(1)
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "buddybench:", err)
			os.Exit(1)
		}
		defer f.Close()
		pprof.WriteHeapProfile(f)
	}
}

func configureLogging() {
	switch *logLevel {
	case "none":
		engine.SetLogLevel(engine.LogLevelNone)
	case "info":
		engine.SetLogLevel(engine.LogLevelInfo)
	case "debug":
		engine.SetLogLevel(engine.LogLevelDebug)
	default:
		engine.SetLogLevel(engine.LogLevelError)
	}
}

// randomSize returns a request size in [minSize, maxSize], rounded up to
// the next power of two the way a realistic caller population would
// cluster requests (teacher's generateRandomSize/p2roundup shape).
func randomSize(r *rand.Rand) uintptr {
	n := *minSize + r.Intn(*maxSize-*minSize+1)
	p := 1
	for p < n {
		p <<= 1
	}
	return uintptr(p)
}

func runArena(size, iters int) {
	mem := make([]byte, size)
	a, err := arena.Init(mem)
	if err != nil {
		fmt.Fprintln(os.Stderr, "buddybench: arena init:", err)
		os.Exit(1)
	}

	r := rand.New(rand.NewSource(1))
	live := make([]unsafe.Pointer, 0, 1024)
	var allocs, failures int

	for i := 0; i < iters; i++ {
		if len(live) > 0 && r.Intn(2) == 0 {
			idx := r.Intn(len(live))
			a.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		ptr, err := a.Allocate(randomSize(r))
		allocs++
		if err != nil {
			failures++
			continue
		}
		live = append(live, ptr)
	}

	if *verbose {
		fmt.Printf("arena: %d allocations attempted, %d failed, %d live at exit\n", allocs, failures, len(live))
	}
}

func runHeap(goroutines, itersEach int) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var totalAllocs, totalFailures int

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			live := make([]uintptr, 0, 256)
			var allocs, failures int

			for i := 0; i < itersEach; i++ {
				if len(live) > 0 && r.Intn(2) == 0 {
					idx := r.Intn(len(live))
					heap.Free(live[idx])
					live[idx] = live[len(live)-1]
					live = live[:len(live)-1]
					continue
				}
				off, err := heap.Allocate(randomSize(r))
				allocs++
				if err != nil {
					failures++
					continue
				}
				live = append(live, off)
			}

			for _, off := range live {
				heap.Free(off)
			}

			mu.Lock()
			totalAllocs += allocs
			totalFailures += failures
			mu.Unlock()
		}(int64(g + 1))
	}
	wg.Wait()

	if *verbose {
		fmt.Printf("heap: %d goroutines, %d allocations attempted, %d failed\n", goroutines, totalAllocs, totalFailures)
	}
}
