package engine

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeyedLockMutualExclusion(t *testing.T) {
	l := NewKeyedLock()
	ctx := context.Background()

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "item:1")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	if maxInCritical != 1 {
		t.Fatalf("lock admitted %d holders", maxInCritical)
	}
}

func TestAcquireTimesOut(t *testing.T) {
	l := NewKeyedLock()
	release, err := l.Acquire(context.Background(), "item:1")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "item:1")
	if CodeOf(err) != CodeLockTimeout {
		t.Fatalf("expected lock_timeout, got %v", err)
	}
	if !Retryable(err) {
		t.Fatalf("lock_timeout should be retryable")
	}
}

func TestAcquireManyReleasesOnFailure(t *testing.T) {
	l := NewKeyedLock()
	release, err := l.Acquire(context.Background(), "request:9")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// The first key succeeds, the second blocks and times out; the first must
	// be released so a later caller can take it.
	_, err = l.AcquireMany(ctx, "item:9", "request:9")
	if CodeOf(err) != CodeLockTimeout {
		t.Fatalf("expected lock_timeout, got %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	r2, err := l.Acquire(ctx2, "item:9")
	if err != nil {
		t.Fatalf("item lock leaked: %v", err)
	}
	r2()
	release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := NewKeyedLock()
	release, err := l.Acquire(context.Background(), "item:1")
	if err != nil {
		t.Fatal(err)
	}
	release()
	release() // second call is a no-op

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r2, err := l.Acquire(ctx, "item:1")
	if err != nil {
		t.Fatalf("reacquire after double release: %v", err)
	}
	r2()
}
