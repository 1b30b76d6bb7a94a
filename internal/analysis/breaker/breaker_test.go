package breaker

import (
	"sync"
	"testing"
	"time"
)

func newTestBreaker(threshold int, recovery time.Duration) (*Breaker, *time.Time) {
	b := New(Config{FailureThreshold: threshold, RecoveryTimeout: recovery})
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, 30*time.Second)

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("breaker denied call before threshold (failure %d)", i)
		}
		b.RecordFailure()
	}
	if b.Snapshot().State != StateClosed {
		t.Fatal("breaker opened before threshold")
	}

	b.RecordFailure()
	if b.Snapshot().State != StateOpen {
		t.Fatal("breaker did not open at threshold")
	}
	if b.Allow() {
		t.Fatal("open breaker admitted a call before recovery timeout")
	}
}

func TestHalfOpenAfterRecovery(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("open breaker admitted a call")
	}

	*now = now.Add(29 * time.Second)
	if b.Allow() {
		t.Fatal("breaker admitted a call before recovery timeout elapsed")
	}

	*now = now.Add(2 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker denied the half-open trial after recovery timeout")
	}
	if b.Snapshot().State != StateHalfOpen {
		t.Fatalf("state = %v, want half_open", b.Snapshot().State)
	}

	// Second call during the trial window is still rejected.
	if b.Allow() {
		t.Fatal("breaker admitted a second call during half-open trial")
	}
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b, now := newTestBreaker(2, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	*now = now.Add(11 * time.Second)

	if !b.Allow() {
		t.Fatal("trial denied")
	}
	b.RecordSuccess()

	snap := b.Snapshot()
	if snap.State != StateClosed {
		t.Fatalf("state = %v, want closed", snap.State)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("consecutive failures = %d, want 0", snap.ConsecutiveFailures)
	}
	if !b.Allow() {
		t.Fatal("closed breaker denied a call")
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1, 10*time.Second)

	b.RecordFailure()
	openedAt := b.Snapshot().OpenedAt

	*now = now.Add(11 * time.Second)
	if !b.Allow() {
		t.Fatal("trial denied")
	}
	b.RecordFailure()

	snap := b.Snapshot()
	if snap.State != StateOpen {
		t.Fatalf("state = %v, want open", snap.State)
	}
	if !snap.OpenedAt.After(openedAt) {
		t.Fatal("opened_at was not reset after failed trial")
	}
	if b.Allow() {
		t.Fatal("reopened breaker admitted a call immediately")
	}
}

func TestReleaseReturnsTrialSlot(t *testing.T) {
	b, now := newTestBreaker(1, 10*time.Second)

	b.RecordFailure()
	*now = now.Add(11 * time.Second)

	if !b.Allow() {
		t.Fatal("trial denied")
	}
	// Caller cancelled: neither success nor failure.
	b.Release()

	if !b.Allow() {
		t.Fatal("breaker denied a new trial after the previous one was released")
	}
}

func TestConcurrentHalfOpenSingleTrial(t *testing.T) {
	b, now := newTestBreaker(1, 10*time.Second)

	b.RecordFailure()
	*now = now.Add(11 * time.Second)

	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("admitted %d concurrent trials, want exactly 1", admitted)
	}
}

func TestConcurrentFailureCounting(t *testing.T) {
	b, _ := newTestBreaker(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 99; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()

	snap := b.Snapshot()
	if snap.ConsecutiveFailures != 99 {
		t.Fatalf("consecutive failures = %d, want 99", snap.ConsecutiveFailures)
	}
	if snap.State != StateClosed {
		t.Fatal("breaker opened below threshold")
	}
}
