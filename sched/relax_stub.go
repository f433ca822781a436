//go:build !cgo || noasm || (!amd64 && !arm64)

package sched

// Relax is a no-op where no spin hint instruction is wired up.
func Relax() {}
