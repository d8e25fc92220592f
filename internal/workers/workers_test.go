package workers

import (
	"os"
	"testing"
)

func TestCountRespectsLimit(t *testing.T) {
	if got := Count(2.0, 1); got != 1 {
		t.Errorf("Count(2.0, 1) = %d, want 1", got)
	}
}

func TestCountMinimumOne(t *testing.T) {
	if got := Count(0.01, 0); got < 1 {
		t.Errorf("Count(0.01, 0) = %d, want >= 1", got)
	}
}

func TestCountOverride(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "3")
	if got := Count(1.0, 0); got != 3 {
		t.Errorf("Count with SCAN_WORKERS=3 = %d, want 3", got)
	}
	if got := Count(1.0, 2); got != 2 {
		t.Errorf("Count with SCAN_WORKERS=3 and limit 2 = %d, want 2", got)
	}
}

func TestCountInvalidOverride(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "not-a-number")
	if got := Count(1.0, 0); got < 1 {
		t.Errorf("Count with invalid override = %d, want >= 1", got)
	}
	os.Unsetenv("SCAN_WORKERS")
}

func TestForCPUAndForIO(t *testing.T) {
	cpu := ForCPU(0)
	io := ForIO(0)
	if cpu < 1 || io < 1 {
		t.Fatalf("ForCPU=%d ForIO=%d, want both >= 1", cpu, io)
	}
	if io < cpu {
		t.Errorf("ForIO (%d) should be >= ForCPU (%d)", io, cpu)
	}
}
