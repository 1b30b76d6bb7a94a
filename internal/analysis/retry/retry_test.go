package retry

import (
	"context"
	"testing"
	"time"
)

func TestDelayBounds(t *testing.T) {
	p := Policy{
		MaxAttempts:    5,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.1,
	}

	for attempt := 0; attempt < 6; attempt++ {
		expected := p.BaseDelay << attempt
		if expected > p.MaxDelay {
			expected = p.MaxDelay
		}
		upper := expected + time.Duration(float64(expected)*0.1)

		for i := 0; i < 50; i++ {
			d := p.Delay(attempt)
			if d < expected || d > upper {
				t.Fatalf("Delay(%d) = %v, want within [%v, %v]", attempt, d, expected, upper)
			}
		}
	}
}

func TestDelayMonotonicBase(t *testing.T) {
	p := Policy{BaseDelay: 50 * time.Millisecond, MaxDelay: 5 * time.Second}

	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		// Strip jitter by comparing lower bounds
		base := p.BaseDelay << attempt
		if base > p.MaxDelay {
			base = p.MaxDelay
		}
		if base < prev {
			t.Fatalf("base delay decreased at attempt %d: %v < %v", attempt, base, prev)
		}
		prev = base
	}
}

func TestDelayCapped(t *testing.T) {
	p := Policy{BaseDelay: 1 * time.Second, MaxDelay: 4 * time.Second, JitterFraction: 0}

	if d := p.Delay(10); d != 4*time.Second {
		t.Errorf("Delay(10) = %v, want %v", d, 4*time.Second)
	}
}

func TestDelayZeroJitterDeterministic(t *testing.T) {
	p := Policy{BaseDelay: 200 * time.Millisecond, MaxDelay: time.Minute, JitterFraction: 0}

	for i := 0; i < 10; i++ {
		if d := p.Delay(2); d != 800*time.Millisecond {
			t.Errorf("Delay(2) = %v, want 800ms", d)
		}
	}
}

func TestWaitRespectsCancellation(t *testing.T) {
	p := Policy{BaseDelay: 10 * time.Second, MaxDelay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := p.Wait(ctx, 3)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait did not return promptly on cancelled context")
	}
}
