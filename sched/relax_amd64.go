//go:build amd64 && cgo && !noasm

// relax_amd64.go
//
// Spin-wait hint for x86-64. PAUSE delays the next instruction by a few
// dozen cycles and lets the sibling hyperthread make progress while a loop
// polls the ring.

package sched

/*
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
*/
import "C"

// Relax emits a single PAUSE.
func Relax() {
	C.cpu_pause()
}
