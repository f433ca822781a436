package sched

import (
	"runtime"
	"testing"
	"time"
)

func TestPinToCoreNegativeIsNoop(t *testing.T) {
	if err := PinToCore(-1); err != nil {
		t.Fatalf("PinToCore(-1) = %v, want nil", err)
	}
}

// TestPinToCoreZero pins to CPU 0, which exists on every host. Hosts that
// forbid affinity changes (restricted containers) are skipped.
func TestPinToCoreZero(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := PinToCore(0); err != nil {
		t.Skipf("affinity not permitted here: %v", err)
	}
}

func TestSetRealtimePriorityZeroIsNoop(t *testing.T) {
	if err := SetRealtimePriority(0); err != nil {
		t.Fatalf("SetRealtimePriority(0) = %v, want nil", err)
	}
}

func TestSpinFor(t *testing.T) {
	start := time.Now()
	SpinFor(2 * time.Millisecond)
	if el := time.Since(start); el < 2*time.Millisecond {
		t.Fatalf("SpinFor returned after %v", el)
	}
	SpinFor(0)
	SpinFor(-time.Second)
}

func TestSleepUntil(t *testing.T) {
	deadline := time.Now().Add(5 * time.Millisecond)
	SleepUntil(deadline, time.Millisecond, 200*time.Microsecond)
	if time.Now().Before(deadline) {
		t.Fatal("SleepUntil returned before the deadline")
	}
}
