package clock

import (
	"testing"
	"time"
)

func TestMonotonicAdvances(t *testing.T) {
	c := NewMonotonic()
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	b := c.Now()
	if b <= a {
		t.Errorf("Now() did not advance: %v then %v", a, b)
	}
	if a < 0 {
		t.Errorf("Now() = %v, want >= 0", a)
	}
}

func TestManualAdvanceAndSet(t *testing.T) {
	c := NewManual(1.5)
	if got := c.Now(); got != 1.5 {
		t.Fatalf("Now() = %v, want 1.5", got)
	}

	c.Advance(250 * time.Millisecond)
	if got := c.Now(); got != 1.75 {
		t.Errorf("after Advance Now() = %v, want 1.75", got)
	}

	c.Set(1.0)
	if got := c.Now(); got != 1.75 {
		t.Errorf("Set backwards moved the clock to %v", got)
	}

	c.Set(3)
	if got := c.Now(); got != 3 {
		t.Errorf("Now() = %v, want 3", got)
	}

	c.Advance(-time.Second)
	if got := c.Now(); got != 3 {
		t.Errorf("negative Advance moved the clock to %v", got)
	}
}
