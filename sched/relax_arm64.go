//go:build arm64 && cgo && !noasm

package sched

/*
static inline void cpu_yield() {
    __asm__ __volatile__("yield" ::: "memory");
}
*/
import "C"

// Relax emits a single YIELD.
func Relax() {
	C.cpu_yield()
}
