// ring_bench_test.go
//
// Benchmarks for three scenarios:
//   - Push       – producer-only enqueue latency
//   - PushPop    – round-trip inside one goroutine
//   - CrossCore  – producer & consumer on two pinned CPUs
//
// A 1 Ki-slot ring keeps every benchmark cache-resident. When a path would
// fail (full/empty) the loop performs the opposite operation once and retries.

package ring

import (
	"runtime"
	"testing"

	"netlatlab/sched"
)

const benchCap = 1024

type benchEntry struct {
	a, b, c uint64
}

func BenchmarkRing_Push(b *testing.B) {
	q := New[benchEntry](benchCap)
	v := benchEntry{1, 2, 3}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !q.Push(v) {
			q.Pop()
			_ = q.Push(v)
		}
	}
}

func BenchmarkRing_PushPop(b *testing.B) {
	q := New[benchEntry](benchCap)
	for i := 0; i < benchCap/2; i++ {
		q.Push(benchEntry{})
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Pop()
		_ = q.Push(benchEntry{a: uint64(i)})
	}
}

func BenchmarkRing_CrossCore(b *testing.B) {
	q := New[benchEntry](benchCap)
	ready := make(chan struct{})
	done := make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		_ = sched.PinToCore(1)
		close(ready)
		for i := 0; i < b.N; i++ {
			for {
				if _, ok := q.Front(); ok {
					q.Pop()
					break
				}
				sched.Relax()
			}
		}
		close(done)
	}()

	<-ready
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	_ = sched.PinToCore(0)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for !q.Push(benchEntry{a: uint64(i)}) {
			sched.Relax()
		}
	}
	<-done
	b.StopTimer()
}
