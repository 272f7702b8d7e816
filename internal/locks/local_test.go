package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalAcquireRelease(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()

	lock, err := m.Acquire(ctx, "tournament:t1", 0)
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}

	// reacquirable after release
	lock2, err := m.Acquire(ctx, "tournament:t1", 0)
	if err != nil {
		t.Fatalf("expected reacquire to succeed, got %v", err)
	}
	lock2.Release(ctx)
}

func TestLocalAcquireContendedTimesOut(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()

	lock, err := m.Acquire(ctx, "tournament:t1", 0)
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	defer lock.Release(ctx)

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(cancelCtx, "tournament:t1", 0)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestLocalIndependentKeys(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()

	l1, err := m.Acquire(ctx, "tournament:t1", 0)
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	defer l1.Release(ctx)

	l2, err := m.Acquire(ctx, "tournament:t2", 0)
	if err != nil {
		t.Fatalf("locks on different keys must not contend: %v", err)
	}
	l2.Release(ctx)
}

func TestLocalDoubleReleaseFails(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()

	lock, _ := m.Acquire(ctx, "tournament:t1", 0)
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if err := lock.Release(ctx); !errors.Is(err, ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld on double release, got %v", err)
	}
}

func TestLocalMutualExclusion(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := m.Acquire(ctx, "tournament:t1", 0)
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
			lock.Release(ctx)
		}()
	}
	wg.Wait()

	if counter != 20 {
		t.Fatalf("lost update under lock: counter = %d", counter)
	}
}
